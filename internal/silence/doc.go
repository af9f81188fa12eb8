// Package silence finds non-speech windows long enough to carry an audio
// description.
//
// The transcript strategy measures gaps from the end of the last confident
// speech segment; the amplitude strategy scans the waveform in 10ms blocks for
// runs below a dBFS threshold. Both coalesce windows separated by less than
// the merge gap and discard windows shorter than the minimum.
package silence
