package pcm

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWAVRoundTrip(t *testing.T) {
	track := Track{SampleRate: 8000, Channels: 2}
	for i := 0; i < 800; i++ {
		v := 0.5 * math.Sin(float64(i)/10)
		track.Samples = append(track.Samples, v, -v)
	}
	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := WriteWAV(path, track); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}
	got, err := ReadWAV(path)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if !got.SameFormat(track) || got.Frames() != 800 {
		t.Fatalf("format mismatch: %d Hz %d ch %d frames", got.SampleRate, got.Channels, got.Frames())
	}
	for i := range track.Samples {
		if math.Abs(got.Samples[i]-track.Samples[i]) > 1.0/16000 {
			t.Fatalf("sample %d: got %v want %v", i, got.Samples[i], track.Samples[i])
		}
	}
	if got.Duration() != 0.1 {
		t.Fatalf("unexpected duration %v", got.Duration())
	}
}

func TestReadWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := WriteWAV(path, Track{}); err == nil {
		t.Fatal("expected format error for empty track")
	}
	if _, err := ReadWAV(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected open error")
	}
}

func TestLevels(t *testing.T) {
	if RMS(nil) != 0 || !math.IsInf(DBFS(0), -1) {
		t.Fatal("silence should have zero rms and -inf dBFS")
	}
	if db := DBFS(RMS([]float64{1, -1, 1, -1})); math.Abs(db) > 1e-9 {
		t.Fatalf("full scale square wave should be 0 dBFS, got %v", db)
	}
	if g := GainFromDB(-20); math.Abs(g-0.1) > 1e-12 {
		t.Fatalf("GainFromDB(-20) = %v", g)
	}
	if Clamp(1.5) != 1 || Clamp(-2) != -1 || Clamp(0.25) != 0.25 {
		t.Fatal("clamp")
	}
}

func TestTrackSlicing(t *testing.T) {
	track := NewSilence(1, 100, 2)
	if track.Frames() != 100 || len(track.Samples) != 200 {
		t.Fatalf("unexpected silence track: %d frames", track.Frames())
	}
	if track.FrameAt(2) != 100 || track.FrameAt(-1) != 0 || track.FrameAt(0.5) != 50 {
		t.Fatal("FrameAt clamping")
	}
	if got := len(track.Slice(10, 20)); got != 20 {
		t.Fatalf("slice length %d", got)
	}
	if track.Slice(50, 10) != nil {
		t.Fatal("inverted slice should be nil")
	}
	clone := track.Clone()
	clone.Samples[0] = 1
	if track.Samples[0] != 0 {
		t.Fatal("clone shares samples")
	}
}
