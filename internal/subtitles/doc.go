// Package subtitles builds UNE 153010 subtitle cues from a speech transcript
// and reads, writes and validates SRT files.
//
// Cues hold at most MaxLines lines of MaxCharsPerLine characters, stay on
// screen between MinDuration and MaxDuration seconds, and are given enough
// time to be read at CharsPerSecond. Known transcription artifacts such as
// music notation or sign-off phrases in isolation are filtered before cues are
// built.
package subtitles
