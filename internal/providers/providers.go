// Package providers builds the external collaborators selected in config:
// the description generator, the transcriber and the speech synthesizer.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"adscribe/internal/compose"
	"adscribe/internal/config"
	"adscribe/internal/language"
	"adscribe/internal/media/pcm"
	"adscribe/internal/schedule"
	"adscribe/internal/services/gemini"
	"adscribe/internal/services/llm"
	"adscribe/internal/services/tts"
	"adscribe/internal/services/whisperx"
	"adscribe/internal/transcript"
)

// Provider names accepted in config.
const (
	Stub       = "stub"
	None       = "none"
	OpenRouter = "openrouter"
	Gemini     = "gemini"
	WhisperX   = "whisperx"
	OpenAI     = "openai"
	Command    = "command"
)

// Set is one job's collaborators.
type Set struct {
	Generator   schedule.DescriptionGenerator
	Transcriber transcript.Provider
	Synthesizer compose.SpeechSynthesizer
	closers     []io.Closer
}

// Close releases provider clients.
func (s *Set) Close() error {
	if s == nil {
		return nil
	}
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Build constructs every provider. workDir holds synthesizer scratch files.
func Build(ctx context.Context, cfg *config.Config, workDir string, logger *slog.Logger) (*Set, error) {
	set := &Set{}
	gen, closer, err := NewGenerator(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		set.closers = append(set.closers, closer)
	}
	set.Generator = gen
	set.Transcriber = NewTranscriber(cfg, logger)
	synth, err := NewSynthesizer(cfg, workDir, logger)
	if err != nil {
		_ = set.Close()
		return nil, err
	}
	set.Synthesizer = synth
	return set, nil
}

// NewGenerator returns the configured description generator and, when the
// client holds resources, a closer for it.
func NewGenerator(ctx context.Context, cfg *config.Config, logger *slog.Logger) (schedule.DescriptionGenerator, io.Closer, error) {
	switch strings.ToLower(cfg.AI.Provider) {
	case OpenRouter:
		client := llm.NewClient(llm.Config{
			APIKey:         cfg.AI.APIKey,
			BaseURL:        cfg.AI.BaseURL,
			Model:          cfg.AI.Model,
			Referer:        cfg.AI.Referer,
			Title:          cfg.AI.Title,
			TimeoutSeconds: cfg.AI.TimeoutSeconds,
		})
		return llm.NewGenerator(client, logger), nil, nil
	case Gemini:
		gen, err := gemini.New(ctx, gemini.Config{APIKey: cfg.AI.GeminiAPIKey, Model: cfg.AI.GeminiModel}, logger)
		if err != nil {
			return nil, nil, err
		}
		return gen, gen, nil
	case Stub, "":
		return StubGenerator{}, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown ai provider %q", cfg.AI.Provider)
	}
}

// NewTranscriber returns the configured transcription provider.
func NewTranscriber(cfg *config.Config, logger *slog.Logger) transcript.Provider {
	if strings.ToLower(cfg.Transcription.Provider) == WhisperX {
		return whisperx.NewService(whisperx.Config{
			Model:       cfg.Transcription.Model,
			CUDAEnabled: cfg.Transcription.CUDAEnabled,
			VADMethod:   cfg.Transcription.VADMethod,
			HFToken:     cfg.Transcription.HFToken,
		}, logger)
	}
	return transcript.None{}
}

// NewSynthesizer returns the configured speech synthesizer producing clips in
// the compose track format.
func NewSynthesizer(cfg *config.Config, workDir string, logger *slog.Logger) (compose.SpeechSynthesizer, error) {
	format := pcm.Format{SampleRate: cfg.Compose.SampleRate, Channels: cfg.Compose.Channels}
	normalize := pcm.NewExtractor(cfg.Media.FFmpegBinary).Normalize
	switch strings.ToLower(cfg.TTS.Provider) {
	case OpenAI:
		engine, err := tts.NewOpenAI(tts.OpenAIConfig{APIKey: cfg.TTS.APIKey, BaseURL: cfg.TTS.BaseURL, Model: cfg.TTS.Model})
		if err != nil {
			return nil, err
		}
		return tts.New(engine, normalize, format, workDir, logger), nil
	case Command:
		return tts.New(tts.Command{Binary: cfg.TTS.Command, Args: cfg.TTS.Args}, normalize, format, workDir, logger), nil
	case Stub, "":
		return tts.Stub{WordsPerSecond: cfg.TTS.WordsPerSecond, Format: format}, nil
	default:
		return nil, fmt.Errorf("unknown tts provider %q", cfg.TTS.Provider)
	}
}

var stubTemplates = map[string]string{
	"es": "Escena %d: la acción continúa en pantalla mientras los personajes se mueven por el lugar.",
	"en": "Scene %d: the action continues on screen as the characters move through the place.",
	"ca": "Escena %d: l'acció continua a la pantalla mentre els personatges es mouen per l'espai.",
}

// StubGenerator returns deterministic template text; the scheduler trims it
// to the window's word budget.
type StubGenerator struct{}

// Generate implements schedule.DescriptionGenerator.
func (StubGenerator) Generate(ctx context.Context, sc schedule.SceneContext) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	template, ok := stubTemplates[language.Base(sc.Language)]
	if !ok {
		template = stubTemplates["es"]
	}
	return fmt.Sprintf(template, sc.Index+1), nil
}
