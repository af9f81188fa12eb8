package providers

import (
	"context"
	"errors"
	"strings"
	"testing"

	"adscribe/internal/compose"
	"adscribe/internal/config"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
	"adscribe/internal/services/llm"
	"adscribe/internal/services/tts"
	"adscribe/internal/services/whisperx"
	"adscribe/internal/transcript"
)

func TestBuildDefaultsToOfflineProviders(t *testing.T) {
	cfg := config.Default()
	set, err := Build(context.Background(), &cfg, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer set.Close()

	if _, ok := set.Generator.(StubGenerator); !ok {
		t.Fatalf("expected stub generator, got %T", set.Generator)
	}
	if _, ok := set.Transcriber.(transcript.None); !ok {
		t.Fatalf("expected no transcriber, got %T", set.Transcriber)
	}
	stub, ok := set.Synthesizer.(tts.Stub)
	if !ok || stub.Format.SampleRate != cfg.Compose.SampleRate || stub.Format.Channels != cfg.Compose.Channels {
		t.Fatalf("expected stub synthesizer in track format, got %#v", set.Synthesizer)
	}
}

func TestSelectsConfiguredProviders(t *testing.T) {
	cfg := config.Default()
	cfg.AI.Provider = OpenRouter
	cfg.AI.APIKey = "key"
	cfg.Transcription.Provider = WhisperX
	cfg.TTS.Provider = Command
	cfg.TTS.Command = "espeak-ng"

	set, err := Build(context.Background(), &cfg, t.TempDir(), nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := set.Generator.(*llm.Generator); !ok {
		t.Fatalf("expected openrouter generator, got %T", set.Generator)
	}
	if _, ok := set.Transcriber.(*whisperx.Service); !ok {
		t.Fatalf("expected whisperx, got %T", set.Transcriber)
	}
	if _, ok := set.Synthesizer.(*tts.Synthesizer); !ok {
		t.Fatalf("expected command synthesizer, got %T", set.Synthesizer)
	}
	var _ compose.SpeechSynthesizer = set.Synthesizer
}

func TestMissingCredentialsSurface(t *testing.T) {
	cfg := config.Default()
	cfg.TTS.Provider = OpenAI
	cfg.TTS.APIKey = ""
	_, err := Build(context.Background(), &cfg, t.TempDir(), nil)
	if code, _ := services.Details(err); code != services.CodeMissingCredentials {
		t.Fatalf("expected missing credentials, got %v", err)
	}

	cfg = config.Default()
	cfg.AI.Provider = "mystery"
	if _, err := Build(context.Background(), &cfg, t.TempDir(), nil); err == nil {
		t.Fatal("unknown provider should fail")
	}
}

func TestStubGeneratorIsDeterministic(t *testing.T) {
	gen := StubGenerator{}
	sc := schedule.SceneContext{Index: 2, Language: "es-ES"}
	first, err := gen.Generate(context.Background(), sc)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	again, _ := gen.Generate(context.Background(), sc)
	if first != again || !strings.HasPrefix(first, "Escena 3:") {
		t.Fatalf("unexpected stub text %q / %q", first, again)
	}
	sc.Language = "en"
	if text, _ := gen.Generate(context.Background(), sc); !strings.HasPrefix(text, "Scene 3:") {
		t.Fatalf("unexpected english stub %q", text)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := gen.Generate(ctx, sc); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
