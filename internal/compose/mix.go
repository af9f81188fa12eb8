package compose

import (
	"adscribe/internal/media/pcm"
)

// DuckDB returns the attenuation for a passage whose RMS is segRMS within a
// track whose RMS is trackRMS: -10 x segRMS/trackRMS, no shallower than
// ceiling and no deeper than floor.
func DuckDB(segRMS, trackRMS, ceiling, floor float64) float64 {
	ratio := 0.0
	if trackRMS > 0 {
		ratio = segRMS / trackRMS
	}
	return max(min(ceiling, -10*ratio), floor)
}

// mix writes clip over out starting at start seconds. Under the clip the
// original sits at the duck level plus the overlay gain, reached over the fade
// length at entry and released over the fade length at exit; the clip fades in
// over the same length. The duck level is measured on original so earlier
// overlays do not skew later ones. It reports false when start leaves no
// room in out, in which case out is untouched.
func (c *Compositor) mix(out, original pcm.Track, trackRMS, start float64, clip pcm.Track) bool {
	first := out.FrameAt(start)
	last := min(first+clip.Frames(), out.Frames())
	if last <= first {
		return false
	}
	channels := out.Channels
	duckDB := DuckDB(pcm.RMS(original.Slice(first, last)), trackRMS, c.opts.DuckCeilingDB, c.opts.DuckFloorDB)
	target := pcm.GainFromDB(duckDB + c.opts.OverlayGainDB)

	length := last - first
	fade := int(c.opts.FadeSeconds * float64(out.SampleRate))
	fade = min(fade, length/2)

	for f := first; f < last; f++ {
		pos := f - first
		originalGain := target
		clipGain := 1.0
		if fade > 0 {
			entry := float64(pos) / float64(fade)
			exit := float64(last-1-pos) / float64(fade)
			if ramp := min(entry, exit); ramp < 1 {
				originalGain = 1 + (target-1)*ramp
			}
			if entry < 1 {
				clipGain = entry
			}
		}
		base := f * channels
		clipBase := pos * channels
		for ch := 0; ch < channels; ch++ {
			mixed := out.Samples[base+ch]*originalGain + clip.Samples[clipBase+ch]*clipGain
			out.Samples[base+ch] = pcm.Clamp(mixed)
		}
	}
	return true
}
