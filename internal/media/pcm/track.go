package pcm

import (
	"math"
)

// Track is decoded PCM audio with interleaved samples in [-1, 1].
type Track struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// NewSilence returns a silent track of the given duration.
func NewSilence(seconds float64, sampleRate, channels int) Track {
	frames := int(math.Round(seconds * float64(sampleRate)))
	if frames < 0 {
		frames = 0
	}
	return Track{
		Samples:    make([]float64, frames*channels),
		SampleRate: sampleRate,
		Channels:   channels,
	}
}

// Frames returns the number of sample frames (samples per channel).
func (t Track) Frames() int {
	if t.Channels <= 0 {
		return 0
	}
	return len(t.Samples) / t.Channels
}

// Duration returns the length in seconds.
func (t Track) Duration() float64 {
	if t.SampleRate <= 0 {
		return 0
	}
	return float64(t.Frames()) / float64(t.SampleRate)
}

// FrameAt converts seconds to a frame offset clamped to the track.
func (t Track) FrameAt(seconds float64) int {
	frame := int(math.Round(seconds * float64(t.SampleRate)))
	if frame < 0 {
		return 0
	}
	if n := t.Frames(); frame > n {
		return n
	}
	return frame
}

// Slice returns the samples between two frame offsets. The result shares
// the underlying array.
func (t Track) Slice(startFrame, endFrame int) []float64 {
	if startFrame < 0 {
		startFrame = 0
	}
	if n := t.Frames(); endFrame > n {
		endFrame = n
	}
	if endFrame <= startFrame {
		return nil
	}
	return t.Samples[startFrame*t.Channels : endFrame*t.Channels]
}

// Clone returns a deep copy.
func (t Track) Clone() Track {
	out := t
	out.Samples = append([]float64(nil), t.Samples...)
	return out
}

// SameFormat reports whether both tracks share sample rate and channel count.
func (t Track) SameFormat(other Track) bool {
	return t.SampleRate == other.SampleRate && t.Channels == other.Channels
}

// RMS returns the root mean square of samples, or 0 for an empty slice.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// DBFS converts an RMS amplitude to decibels relative to full scale.
// Silence maps to -Inf.
func DBFS(rms float64) float64 {
	if rms <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(rms)
}

// GainFromDB converts decibels to a linear amplitude factor.
func GainFromDB(db float64) float64 {
	return math.Pow(10, db/20)
}

// Clamp limits a sample to [-1, 1].
func Clamp(s float64) float64 {
	switch {
	case s > 1:
		return 1
	case s < -1:
		return -1
	default:
		return s
	}
}
