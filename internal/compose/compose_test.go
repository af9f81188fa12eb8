package compose

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"adscribe/internal/logging"
	"adscribe/internal/media/pcm"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
	"adscribe/internal/silence"
)

const testRate = 100

func constant(seconds, value float64) pcm.Track {
	track := pcm.NewSilence(seconds, testRate, 1)
	for i := range track.Samples {
		track.Samples[i] = value
	}
	return track
}

func defaultOptions() Options {
	return Options{
		FadeSeconds:       0.5,
		OverlayGainDB:     -2,
		DuckCeilingDB:     -5,
		DuckFloorDB:       -10,
		ShrinkStep:        2,
		MaxShrinkAttempts: 3,
		Voice:             Voice{Language: "es", Name: "alloy", Speed: 1},
	}
}

func newCompositor() *Compositor {
	p := services.DefaultRetryPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	return New(defaultOptions(), logging.NewNop(), WithRetryPolicy(p))
}

// wordPaced speaks every word in secondsPerWord.
func wordPaced(secondsPerWord float64, calls *[]string) SpeechSynthesizer {
	return SynthesizerFunc(func(_ context.Context, text string, _ Voice) (Clip, error) {
		*calls = append(*calls, text)
		words := float64(len(strings.Fields(text)))
		return Clip{Audio: constant(words*secondsPerWord, 0.1)}, nil
	})
}

func tenWordCue(start, end float64) schedule.Cue {
	return schedule.Cue{
		SceneIndex: 1,
		Window:     silence.Interval{Start: start, End: end},
		Text:       "una mujer abre la puerta y entra en la sala.",
		MaxWords:   10,
	}
}

func TestComposeShrinksLongClipIntoWindow(t *testing.T) {
	var calls []string
	result, err := newCompositor().Compose(context.Background(), constant(12, 0.3), []schedule.Cue{tenWordCue(5.5, 9)}, wordPaced(0.42, &calls))
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(calls) != 2 {
		t.Fatalf("expected one shortening retry, got calls %q", calls)
	}
	if got := calls[1]; got != "una mujer abre la puerta y entra en." {
		t.Fatalf("unexpected shortened text %q", got)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
	cue := result.Cues[0]
	if cue.Text != calls[1] || math.Abs(cue.SynthesizedDuration-3.36) > 1e-9 {
		t.Fatalf("cue not updated: %+v", cue)
	}
}

func TestComposeAcceptsOverrunWithWarning(t *testing.T) {
	var calls []string
	synth := SynthesizerFunc(func(_ context.Context, text string, _ Voice) (Clip, error) {
		calls = append(calls, text)
		return Clip{Audio: constant(3, 0.1)}, nil
	})
	result, err := newCompositor().Compose(context.Background(), constant(10, 0.3), []schedule.Cue{tenWordCue(2, 3)}, synth)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(calls) != 4 {
		t.Fatalf("expected initial attempt plus three shortenings, got %d", len(calls))
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != WarningOverrun {
		t.Fatalf("expected overrun warning, got %+v", result.Warnings)
	}
	if result.Placed() != 1 || result.Cues[0].ComplianceWarning == "" {
		t.Fatalf("overrunning cue must still be placed: %+v", result.Cues)
	}
	if words := len(strings.Fields(result.Cues[0].Text)); words != 4 {
		t.Fatalf("expected the shortest attempt to be kept, got %d words", words)
	}
}

func TestComposeKeepsOriginalWhenAllCuesFail(t *testing.T) {
	original := constant(6, 0.25)
	synth := SynthesizerFunc(func(context.Context, string, Voice) (Clip, error) {
		return Clip{}, services.New(services.KindValidation, "tts", services.CodeMissingCredentials, "no key")
	})
	cues := []schedule.Cue{tenWordCue(0, 2), tenWordCue(3, 5)}
	result, err := newCompositor().Compose(context.Background(), original, cues, synth)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if result.Placed() != 0 || len(result.Warnings) != 2 || result.Warnings[0].Code != WarningSynthesisFailed {
		t.Fatalf("unexpected result: %+v", result)
	}
	for i, s := range result.Track.Samples {
		if s != original.Samples[i] {
			t.Fatalf("sample %d changed: %v", i, s)
		}
	}
}

func TestMixDucksFadesAndOverlays(t *testing.T) {
	original := constant(10, 0.5)
	synth := SynthesizerFunc(func(context.Context, string, Voice) (Clip, error) {
		return Clip{Audio: constant(2, 0.2)}, nil
	})
	cue := tenWordCue(4, 6.5)
	result, err := newCompositor().Compose(context.Background(), original, []schedule.Cue{cue}, synth)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	out := result.Track.Samples
	ducked := 0.5 * pcm.GainFromDB(-12)
	tests := []struct {
		name  string
		frame int
		want  float64
	}{
		{"before region", 399, 0.5},
		{"region entry", 400, 0.5},
		{"mid fade", 425, 0.5*(1+(pcm.GainFromDB(-12)-1)*0.5) + 0.2*0.5},
		{"fully ducked", 500, ducked + 0.2},
		{"after region", 600, 0.5},
	}
	for _, tc := range tests {
		if math.Abs(out[tc.frame]-tc.want) > 1e-9 {
			t.Fatalf("%s: sample %d = %v want %v", tc.name, tc.frame, out[tc.frame], tc.want)
		}
	}
	if original.Samples[500] != 0.5 {
		t.Fatal("original must not be modified")
	}
}

func TestMixClampsPeaks(t *testing.T) {
	synth := SynthesizerFunc(func(context.Context, string, Voice) (Clip, error) {
		return Clip{Audio: constant(2, 0.95)}, nil
	})
	result, err := newCompositor().Compose(context.Background(), constant(5, 0.9), []schedule.Cue{tenWordCue(1, 4)}, synth)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	for i, s := range result.Track.Samples {
		if s > 1 || s < -1 {
			t.Fatalf("sample %d out of range: %v", i, s)
		}
	}
	if result.Track.Samples[200] != 1 {
		t.Fatalf("expected clamped peak, got %v", result.Track.Samples[200])
	}
}

func TestComposeRejectsMismatchedFormat(t *testing.T) {
	synth := SynthesizerFunc(func(context.Context, string, Voice) (Clip, error) {
		return Clip{Audio: pcm.NewSilence(1, 48000, 2)}, nil
	})
	result, err := newCompositor().Compose(context.Background(), constant(5, 0.2), []schedule.Cue{tenWordCue(1, 4)}, synth)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if len(result.Warnings) != 1 || result.Warnings[0].Code != WarningFormatMismatch || result.Placed() != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDuckDB(t *testing.T) {
	tests := []struct {
		seg, track float64
		want       float64
	}{
		{0.25, 1, -5},
		{0.8, 1, -8},
		{2, 1, -10},
		{1, 0, -5},
	}
	for _, tc := range tests {
		if got := DuckDB(tc.seg, tc.track, -5, -10); math.Abs(got-tc.want) > 1e-12 {
			t.Fatalf("DuckDB(%v, %v) = %v want %v", tc.seg, tc.track, got, tc.want)
		}
	}
}

func TestMuxInvokesFFmpeg(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "args.txt")
	stub := filepath.Join(dir, "ffmpeg")
	script := "#!/bin/sh\necho \"$@\" > " + record + "\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if err := Mux(context.Background(), stub, "in.mp4", "mix.wav", "out.mp4", ""); err != nil {
		t.Fatalf("Mux: %v", err)
	}
	data, err := os.ReadFile(record)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	want := "-i in.mp4 -i mix.wav -map 0:v -map 1:a -c:v copy -c:a aac -b:a 192k -shortest out.mp4"
	if !strings.Contains(string(data), want) {
		t.Fatalf("unexpected args %q", data)
	}
}

func TestComposeWarnsWhenCueStartsPastTrackEnd(t *testing.T) {
	original := constant(5, 0.2)
	synth := SynthesizerFunc(func(context.Context, string, Voice) (Clip, error) {
		return Clip{Audio: constant(1, 0.1)}, nil
	})
	cues := []schedule.Cue{tenWordCue(1, 3), tenWordCue(5, 7), tenWordCue(6, 8)}
	result, err := newCompositor().Compose(context.Background(), original, cues, synth)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if result.Placed() != 1 {
		t.Fatalf("expected only the in-range cue placed, got %+v", result.Cues)
	}
	if len(result.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %+v", result.Warnings)
	}
	for i, w := range result.Warnings {
		if w.Code != WarningPastEnd {
			t.Fatalf("warning %d: expected %s, got %+v", i, WarningPastEnd, w)
		}
	}
	for _, cue := range result.Cues[1:] {
		if cue.SynthesizedDuration != 0 || cue.ComplianceWarning == "" {
			t.Fatalf("unplaced cue not marked: %+v", cue)
		}
	}
	if len(result.Track.Samples) != len(original.Samples) {
		t.Fatalf("track length changed: %d", len(result.Track.Samples))
	}
}

func TestComposeConsultsGateBeforeEachCue(t *testing.T) {
	var order []string
	synth := SynthesizerFunc(func(context.Context, string, Voice) (Clip, error) {
		order = append(order, "synthesize")
		return Clip{Audio: constant(1, 0.1)}, nil
	})
	p := services.DefaultRetryPolicy()
	p.Sleep = func(context.Context, time.Duration) error { return nil }
	gate := func(context.Context) error {
		order = append(order, "gate")
		return nil
	}
	c := New(defaultOptions(), logging.NewNop(), WithRetryPolicy(p), WithGate(gate))
	cues := []schedule.Cue{tenWordCue(1, 3), tenWordCue(4, 6)}
	if _, err := c.Compose(context.Background(), constant(8, 0.2), cues, synth); err != nil {
		t.Fatalf("Compose: %v", err)
	}
	want := []string{"gate", "synthesize", "gate", "synthesize"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("got call order %v want %v", order, want)
	}

	held := errors.New("held")
	c = New(defaultOptions(), logging.NewNop(), WithRetryPolicy(p), WithGate(func(context.Context) error { return held }))
	if _, err := c.Compose(context.Background(), constant(8, 0.2), cues, synth); !errors.Is(err, held) {
		t.Fatalf("expected gate error, got %v", err)
	}
}
