// Package transcript holds timed speech transcription results shared by the
// silence detector and the subtitle builder.
package transcript

import (
	"context"
	"sort"
	"strings"
)

// Word is a single recognized word with its timing and recognition probability.
type Word struct {
	Text        string  `json:"word" msgpack:"word"`
	Start       float64 `json:"start" msgpack:"start"`
	End         float64 `json:"end" msgpack:"end"`
	Probability float64 `json:"probability" msgpack:"probability"`
}

// Segment is a transcribed utterance.
type Segment struct {
	Start float64 `json:"start" msgpack:"start"`
	End   float64 `json:"end" msgpack:"end"`
	Text  string  `json:"text" msgpack:"text"`
	Words []Word  `json:"words,omitempty" msgpack:"words"`
}

// Confidence is the mean word probability, or 0 when the segment has no words.
func (s Segment) Confidence() float64 {
	if len(s.Words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range s.Words {
		sum += w.Probability
	}
	return sum / float64(len(s.Words))
}

// CleanText returns the segment text with surrounding whitespace removed.
func (s Segment) CleanText() string {
	return strings.TrimSpace(s.Text)
}

// Provider transcribes a WAV file. A nil result with a nil error means no
// transcript is available and callers should fall back to waveform analysis.
type Provider interface {
	Transcribe(ctx context.Context, wavPath, language string) ([]Segment, error)
}

// None is the provider used when transcription is disabled.
type None struct{}

// Transcribe always returns no segments.
func (None) Transcribe(context.Context, string, string) ([]Segment, error) {
	return nil, nil
}

// Sorted returns a copy of segments ordered by start time.
func Sorted(segments []Segment) []Segment {
	out := append([]Segment(nil), segments...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}
