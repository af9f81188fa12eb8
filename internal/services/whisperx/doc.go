// Package whisperx transcribes extracted audio with WhisperX, run through
// uvx so no Python environment has to be managed by hand.
//
// Service implements transcript.Provider. WhisperX writes a JSON file with
// sentence segments and aligned words; each word's alignment score becomes
// its recognition probability, which the silence detector uses to ignore
// low-confidence speech.
//
// Model, CUDA and VAD selection come from the [transcription] config section.
package whisperx
