package tts

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"adscribe/internal/compose"
	"adscribe/internal/logging"
	"adscribe/internal/media/pcm"
	"adscribe/internal/services"
)

// Engine renders text to an audio file at dest.
type Engine interface {
	Name() string
	Render(ctx context.Context, text string, voice compose.Voice, dest string) error
}

// NormalizeFunc converts src into a WAV with format at dest.
type NormalizeFunc func(ctx context.Context, src, dest string, format pcm.Format) error

// Synthesizer implements compose.SpeechSynthesizer through an Engine.
type Synthesizer struct {
	engine    Engine
	normalize NormalizeFunc
	format    pcm.Format
	workDir   string
	logger    *slog.Logger
}

// New returns a Synthesizer writing scratch files under workDir and
// normalizing clips to format.
func New(engine Engine, normalize NormalizeFunc, format pcm.Format, workDir string, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		engine:    engine,
		normalize: normalize,
		format:    format,
		workDir:   workDir,
		logger:    logging.NewComponentLogger(logger, "tts"),
	}
}

// Synthesize implements compose.SpeechSynthesizer.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, voice compose.Voice) (compose.Clip, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return compose.Clip{}, services.New(services.KindValidation, "tts", "", "empty text")
	}
	if err := os.MkdirAll(s.workDir, 0o755); err != nil {
		return compose.Clip{}, services.Wrap(services.KindSystem, "tts", "", "ensure work dir", err)
	}
	scratch, err := os.MkdirTemp(s.workDir, "tts-")
	if err != nil {
		return compose.Clip{}, services.Wrap(services.KindSystem, "tts", "", "create scratch dir", err)
	}
	defer os.RemoveAll(scratch)

	raw := filepath.Join(scratch, "raw.audio")
	if err := s.engine.Render(ctx, text, voice, raw); err != nil {
		return compose.Clip{}, err
	}
	normalized := filepath.Join(scratch, "clip.wav")
	if err := s.normalize(ctx, raw, normalized, s.format); err != nil {
		return compose.Clip{}, err
	}
	track, err := pcm.ReadWAV(normalized)
	if err != nil {
		return compose.Clip{}, services.Wrap(services.KindAudioProcessing, "tts", "", "decode synthesized clip", err)
	}
	s.logger.DebugContext(ctx, "clip synthesized",
		logging.String("engine", s.engine.Name()),
		logging.Int("words", len(strings.Fields(text))),
		logging.Float64("seconds", track.Duration()),
	)
	return compose.Clip{Audio: track}, nil
}

// Stub returns silent clips whose length follows a fixed speaking rate.
type Stub struct {
	WordsPerSecond float64
	Format         pcm.Format
}

// Synthesize implements compose.SpeechSynthesizer.
func (s Stub) Synthesize(ctx context.Context, text string, voice compose.Voice) (compose.Clip, error) {
	if err := ctx.Err(); err != nil {
		return compose.Clip{}, err
	}
	rate := s.WordsPerSecond
	if rate <= 0 {
		rate = 2.5
	}
	if voice.Speed > 0 {
		rate *= voice.Speed
	}
	words := len(strings.Fields(text))
	if words == 0 {
		return compose.Clip{}, services.New(services.KindValidation, "tts", "", "empty text")
	}
	return compose.Clip{Audio: pcm.NewSilence(float64(words)/rate, s.Format.SampleRate, s.Format.Channels)}, nil
}
