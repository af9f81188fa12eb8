package silence

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"adscribe/internal/logging"
	"adscribe/internal/media/pcm"
	"adscribe/internal/transcript"
)

func newDetector(t *testing.T, strategy Strategy) *Detector {
	t.Helper()
	d, err := New(Options{
		Strategy:      strategy,
		MinSilence:    2,
		ThresholdDB:   -40,
		MergeGap:      1,
		MinConfidence: 0.5,
	}, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d
}

func speech(start, end float64, probs ...float64) transcript.Segment {
	seg := transcript.Segment{Start: start, End: end, Text: "hola"}
	for _, p := range probs {
		seg.Words = append(seg.Words, transcript.Word{Text: "hola", Start: start, End: end, Probability: p})
	}
	return seg
}

// mono builds a 1kHz mono track from (seconds, amplitude) spans.
func mono(spans ...[2]float64) pcm.Track {
	track := pcm.Track{SampleRate: 1000, Channels: 1}
	for _, span := range spans {
		n := int(span[0] * 1000)
		for i := 0; i < n; i++ {
			track.Samples = append(track.Samples, span[1])
		}
	}
	return track
}

func TestDetectFromTranscript(t *testing.T) {
	tests := []struct {
		name     string
		segments []transcript.Segment
		duration float64
		want     []Interval
	}{
		{
			name:     "gaps and trailing window",
			segments: []transcript.Segment{speech(5, 8, 0.9), speech(0, 2, 0.9, 0.8)},
			duration: 12,
			want:     []Interval{{Start: 2, End: 5}, {Start: 8, End: 12}},
		},
		{
			name:     "low confidence segment does not end the gap",
			segments: []transcript.Segment{speech(0, 2, 0.9), speech(3, 4, 0.2), speech(6, 8, 0.9)},
			duration: 8,
			want:     []Interval{{Start: 2, End: 6}},
		},
		{
			name:     "segment without words counts as non-speech",
			segments: []transcript.Segment{speech(0, 1, 0.9), speech(2, 3), speech(4, 5, 0.7)},
			duration: 5,
			want:     []Interval{{Start: 1, End: 4}},
		},
		{
			name:     "close windows merge",
			segments: []transcript.Segment{speech(0, 2, 0.9), speech(5, 5.5, 0.9), speech(8, 10, 0.9)},
			duration: 10,
			want:     []Interval{{Start: 2, End: 8}},
		},
		{
			name:     "short gaps ignored",
			segments: []transcript.Segment{speech(0, 2, 0.9), speech(3, 6, 0.9)},
			duration: 7,
			want:     nil,
		},
	}
	d := newDetector(t, StrategyTranscript)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			track := pcm.NewSilence(tc.duration, 100, 1)
			got, err := d.Detect(context.Background(), track, tc.segments)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestDetectFromAmplitude(t *testing.T) {
	tests := []struct {
		name  string
		track pcm.Track
		want  []Interval
	}{
		{
			name:  "single quiet run, short tail dropped",
			track: mono([2]float64{1, 0.5}, [2]float64{2.5, 0}, [2]float64{1, 0.5}, [2]float64{0.5, 0}),
			want:  []Interval{{Start: 1, End: 3.5}},
		},
		{
			name:  "runs separated by a blip merge",
			track: mono([2]float64{2, 0}, [2]float64{0.5, 0.3}, [2]float64{2, 0.001}),
			want:  []Interval{{Start: 0, End: 4.5}},
		},
		{
			name:  "all loud",
			track: mono([2]float64{5, 0.2}),
			want:  nil,
		},
		{
			name:  "empty track",
			track: pcm.Track{SampleRate: 1000, Channels: 1},
			want:  nil,
		},
	}
	d := newDetector(t, StrategyAmplitude)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := d.Detect(context.Background(), tc.track, nil)
			if err != nil {
				t.Fatalf("Detect: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %+v want %+v", got, tc.want)
			}
		})
	}
}

func TestAutoStrategySelection(t *testing.T) {
	d := newDetector(t, StrategyAuto)
	track := mono([2]float64{3, 0}, [2]float64{3, 0.5})

	got, err := d.Detect(context.Background(), track, nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if want := []Interval{{Start: 0, End: 3}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("amplitude fallback: got %+v want %+v", got, want)
	}

	got, err = d.Detect(context.Background(), track, []transcript.Segment{speech(0, 4, 0.9)})
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if want := []Interval{{Start: 4, End: 6}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("transcript preferred: got %+v want %+v", got, want)
	}
}

func TestTranscriptStrategyWithoutSpeechCoversWholeAudio(t *testing.T) {
	d := newDetector(t, StrategyTranscript)
	got, err := d.Detect(context.Background(), pcm.NewSilence(9, 100, 2), nil)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if want := []Interval{{Start: 0, End: 9}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDetectHonoursCancellation(t *testing.T) {
	d := newDetector(t, StrategyAmplitude)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Detect(ctx, mono([2]float64{3, 0}), nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestNewRejectsBadOptions(t *testing.T) {
	if _, err := New(Options{Strategy: "vad", MinSilence: 2}, nil); err == nil {
		t.Fatal("expected unknown strategy error")
	}
	if _, err := New(Options{Strategy: StrategyAuto}, nil); err == nil {
		t.Fatal("expected error for zero minimum window")
	}
}
