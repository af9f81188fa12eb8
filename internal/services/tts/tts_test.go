package tts

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"adscribe/internal/compose"
	"adscribe/internal/media/pcm"
	"adscribe/internal/services"
)

var trackFormat = pcm.Format{SampleRate: 8000, Channels: 2}

// fakeNormalize ignores the source and writes a clip of seconds at format,
// after checking the engine produced something.
func fakeNormalize(t *testing.T, seconds float64) NormalizeFunc {
	t.Helper()
	return func(_ context.Context, src, dest string, format pcm.Format) error {
		if info, err := os.Stat(src); err != nil || info.Size() == 0 {
			t.Errorf("engine output missing: %v", err)
		}
		return pcm.WriteWAV(dest, pcm.NewSilence(seconds, format.SampleRate, format.Channels))
	}
}

type fileEngine struct{ texts []string }

func (f *fileEngine) Name() string { return "fake" }

func (f *fileEngine) Render(_ context.Context, text string, _ compose.Voice, dest string) error {
	f.texts = append(f.texts, text)
	return os.WriteFile(dest, []byte("audio"), 0o644)
}

func TestSynthesizerNormalizesEngineOutput(t *testing.T) {
	dir := t.TempDir()
	engine := &fileEngine{}
	synth := New(engine, fakeNormalize(t, 1.5), trackFormat, dir, nil)

	clip, err := synth.Synthesize(context.Background(), "  Una mujer entra. ", compose.Voice{Language: "es"})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if clip.Audio.SampleRate != 8000 || clip.Audio.Channels != 2 || math.Abs(clip.Duration()-1.5) > 1e-3 {
		t.Fatalf("unexpected clip %dHz/%dch %.3fs", clip.Audio.SampleRate, clip.Audio.Channels, clip.Duration())
	}
	if len(engine.texts) != 1 || engine.texts[0] != "Una mujer entra." {
		t.Fatalf("unexpected engine input %q", engine.texts)
	}
	leftovers, _ := filepath.Glob(filepath.Join(dir, "tts-*"))
	if len(leftovers) != 0 {
		t.Fatalf("scratch dirs left behind: %v", leftovers)
	}
	if _, err := synth.Synthesize(context.Background(), "  ", compose.Voice{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("empty text should be a validation error, got %v", err)
	}
}

func TestStubLengthFollowsSpeakingRate(t *testing.T) {
	stub := Stub{WordsPerSecond: 2.5, Format: trackFormat}
	tests := []struct {
		text  string
		speed float64
		want  float64
	}{
		{"una dos tres cuatro cinco", 1, 2},
		{"una dos tres cuatro cinco", 2, 1},
		{"uno", 0, 0.4},
	}
	for _, tc := range tests {
		clip, err := stub.Synthesize(context.Background(), tc.text, compose.Voice{Speed: tc.speed})
		if err != nil {
			t.Fatalf("Synthesize: %v", err)
		}
		if math.Abs(clip.Duration()-tc.want) > 1e-3 || !clip.Audio.SameFormat(pcm.NewSilence(0, 8000, 2)) {
			t.Fatalf("%q at %.1fx: got %.3fs", tc.text, tc.speed, clip.Duration())
		}
	}
}

func TestOpenAIRendersWAV(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF....WAVE"))
	}))
	defer server.Close()

	engine, err := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: server.URL + "/v1/", Model: "tts-1-hd"})
	if err != nil {
		t.Fatalf("NewOpenAI: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "raw.audio")
	if err := engine.Render(context.Background(), "Hola.", compose.Voice{Name: "nova", Speed: 1.25}, dest); err != nil {
		t.Fatalf("Render: %v", err)
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "RIFF....WAVE" {
		t.Fatalf("unexpected body %q", data)
	}
	if body["model"] != "tts-1-hd" || body["voice"] != "nova" || body["response_format"] != "wav" || body["speed"] != 1.25 {
		t.Fatalf("unexpected request %v", body)
	}
}

func TestOpenAIClassifiesErrors(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusUnauthorized, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadRequest, false},
	}
	for _, tc := range tests {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"x"}}`))
		}))
		engine, _ := NewOpenAI(OpenAIConfig{APIKey: "key", BaseURL: server.URL + "/v1/"})
		err := engine.Render(context.Background(), "Hola.", compose.Voice{Name: "alloy"}, filepath.Join(t.TempDir(), "x"))
		server.Close()
		if err == nil || services.Retryable(err) != tc.retryable {
			t.Fatalf("status %d: retryable=%v err=%v", tc.status, services.Retryable(err), err)
		}
	}
	if _, err := NewOpenAI(OpenAIConfig{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("missing key should fail validation, got %v", err)
	}
}

func TestCommandExpandsPlaceholdersAndRuns(t *testing.T) {
	dir := t.TempDir()
	record := filepath.Join(dir, "args.txt")
	script := filepath.Join(dir, "speak")
	body := "#!/bin/sh\necho \"$@\" > " + record + "\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	engine := Command{Binary: script}
	dest := filepath.Join(dir, "out.wav")
	if err := engine.Render(context.Background(), "Un gato duerme.", compose.Voice{Language: "es-ES", Speed: 1.2}, dest); err != nil {
		t.Fatalf("Render: %v", err)
	}
	got, _ := os.ReadFile(record)
	want := "-v es -s 210 -w " + dest + " Un gato duerme."
	if strings.TrimSpace(string(got)) != want {
		t.Fatalf("args = %q want %q", strings.TrimSpace(string(got)), want)
	}

	missing := Command{Binary: filepath.Join(dir, "absent")}
	err := missing.Render(context.Background(), "x", compose.Voice{}, dest)
	if code, _ := services.Details(err); code != services.CodeMissingBinary {
		t.Fatalf("expected missing binary, got %v", err)
	}
}
