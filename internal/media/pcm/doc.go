// Package pcm holds decoded audio as interleaved float samples and moves it
// in and out of 16-bit WAV files.
//
// WAV coding uses github.com/go-audio/wav; anything else (container audio,
// TTS output in other codecs, resampling) goes through ffmpeg via Extractor.
// RMS and DBFS provide the level measurements used for ducking and
// amplitude-based silence detection.
package pcm
