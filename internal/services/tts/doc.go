// Package tts turns description text into audio clips for the compositor.
//
// Synthesizer implements compose.SpeechSynthesizer on top of an Engine that
// renders speech to a file. Whatever the engine produces is normalized by
// ffmpeg to the sample rate and channel layout of the original track, so the
// compositor always mixes matching PCM.
//
// Engines:
//   - OpenAI: openai-go audio speech endpoint, WAV output
//   - Command: an external binary such as espeak-ng writing a WAV file
//
// Stub skips the engine entirely and returns silence sized by the speaking
// rate, which keeps the whole pipeline runnable without credentials.
package tts
