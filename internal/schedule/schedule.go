package schedule

import (
	"context"
	"log/slog"
	"strings"

	"adscribe/internal/config"
	"adscribe/internal/logging"
	"adscribe/internal/scene"
	"adscribe/internal/services"
	"adscribe/internal/silence"
)

// Description styles.
const (
	StyleNeutral  = "neutral"
	StyleDetailed = "detailed"
)

// SceneContext is everything a generator gets for one scene.
type SceneContext struct {
	Index    int
	Scene    scene.Interval
	Window   silence.Interval
	Keyframe []byte
	Language string
	Style    string
	MaxWords int
}

// DescriptionGenerator produces a description for one scene.
type DescriptionGenerator interface {
	Generate(ctx context.Context, sc SceneContext) (string, error)
}

// GeneratorFunc adapts a function to DescriptionGenerator.
type GeneratorFunc func(ctx context.Context, sc SceneContext) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, sc SceneContext) (string, error) {
	return f(ctx, sc)
}

// KeyframeFunc returns a JPEG of the video at the given time.
type KeyframeFunc func(ctx context.Context, seconds float64) ([]byte, error)

// Cue is a scheduled audio description.
type Cue struct {
	SceneIndex          int              `json:"scene_index" msgpack:"scene_index"`
	Scene               scene.Interval   `json:"scene" msgpack:"scene"`
	Window              silence.Interval `json:"window" msgpack:"window"`
	Text                string           `json:"text" msgpack:"text"`
	MaxWords            int              `json:"max_words" msgpack:"max_words"`
	SynthesizedDuration float64          `json:"synthesized_duration,omitempty" msgpack:"synthesized_duration,omitempty"`
	ComplianceWarning   string           `json:"compliance_warning,omitempty" msgpack:"compliance_warning,omitempty"`
}

// End is where the spoken description finishes: the synthesized length when
// known, otherwise the window end.
func (c Cue) End() float64 {
	if c.SynthesizedDuration > 0 {
		return c.Window.Start + c.SynthesizedDuration
	}
	return c.Window.End
}

// Options configures scheduling.
type Options struct {
	WordRate          float64
	Limits            Limits
	ValidationRetries int
	MatchTolerance    float64
	Language          string
	Style             string
}

// OptionsFromConfig maps the schedule and media config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WordRate: cfg.Schedule.WordRate,
		Limits: Limits{
			CharsPerSecond: cfg.Schedule.CharsPerSecond,
			MinReadingTime: cfg.Schedule.MinReadingTime,
			MaxWPM:         cfg.Schedule.MaxWPM,
		},
		ValidationRetries: cfg.Schedule.ValidationRetries,
		MatchTolerance:    cfg.Schedule.MatchTolerance,
		Language:          cfg.Media.Language,
		Style:             cfg.Schedule.Style,
	}
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithKeyframes supplies scene images to the generator.
func WithKeyframes(fn KeyframeFunc) Option {
	return func(s *Scheduler) { s.keyframes = fn }
}

// WithRateLimiter throttles generator calls.
func WithRateLimiter(l *services.RateLimiter) Option {
	return func(s *Scheduler) { s.limiter = l }
}

// WithRetryPolicy overrides the retry policy for generator calls.
func WithRetryPolicy(p services.RetryPolicy) Option {
	return func(s *Scheduler) { s.retry = p }
}

// WithProgress observes each finished scene.
func WithProgress(fn func(done, total int)) Option {
	return func(s *Scheduler) { s.progress = fn }
}

// WithGate installs a check run before each scene is described. It may
// block; an error stops scheduling.
func WithGate(gate func(context.Context) error) Option {
	return func(s *Scheduler) { s.gate = gate }
}

// Scheduler turns scenes and windows into description cues.
type Scheduler struct {
	opts      Options
	gate      func(context.Context) error
	keyframes KeyframeFunc
	limiter   *services.RateLimiter
	retry     services.RetryPolicy
	progress  func(done, total int)
	logger    *slog.Logger
}

// New returns a Scheduler.
func New(opts Options, logger *slog.Logger, options ...Option) *Scheduler {
	if opts.Style == "" {
		opts.Style = StyleNeutral
	}
	s := &Scheduler{
		opts:   opts,
		retry:  services.DefaultRetryPolicy(),
		logger: logging.NewComponentLogger(logger, "schedule"),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Schedule matches scenes to windows, asks gen for each description, and
// returns the cues that survive fitting, sorted by window start. Generator
// failures skip the scene; only cancellation and gate errors are returned.
func (s *Scheduler) Schedule(ctx context.Context, scenes []scene.Interval, windows []silence.Interval, gen DescriptionGenerator) ([]Cue, error) {
	matches := MatchWindows(scenes, windows, s.opts.MatchTolerance)
	s.logger.InfoContext(ctx, "scenes matched to silence windows",
		logging.Int("scenes", len(scenes)),
		logging.Int("windows", len(windows)),
		logging.Int("matched", len(matches)),
	)

	cues := make([]Cue, 0, len(matches))
	for i, m := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.gate != nil {
			if err := s.gate(ctx); err != nil {
				return nil, err
			}
		}
		cue, ok, err := s.scheduleOne(ctx, m, gen)
		if err != nil {
			return nil, err
		}
		if ok {
			cues = append(cues, cue)
		}
		if s.progress != nil {
			s.progress(i+1, len(matches))
		}
	}
	return cues, nil
}

func (s *Scheduler) scheduleOne(ctx context.Context, m Match, gen DescriptionGenerator) (Cue, bool, error) {
	maxWords := MaxWords(m.Window.Duration(), s.opts.WordRate)
	sceneAttrs := []logging.Attr{
		logging.Int("scene_index", m.SceneIndex),
		logging.Float64("window_start", m.Window.Start),
		logging.Float64("window_seconds", m.Window.Duration()),
		logging.Int("max_words", maxWords),
	}
	if maxWords == 0 {
		s.logger.DebugContext(ctx, "window too short for any words", logging.Args(sceneAttrs...)...)
		return Cue{}, false, nil
	}

	sc := SceneContext{
		Index:    m.SceneIndex,
		Scene:    m.Scene,
		Window:   m.Window,
		Language: s.opts.Language,
		Style:    s.opts.Style,
		MaxWords: maxWords,
	}
	if s.keyframes != nil {
		midpoint := m.Scene.Start + m.Scene.Duration()/2
		img, err := s.keyframes(ctx, midpoint)
		if err != nil {
			if ctx.Err() != nil {
				return Cue{}, false, ctx.Err()
			}
			logging.WarnWithContext(s.logger, "keyframe unavailable; describing without image", "keyframe_failed",
				append(sceneAttrs,
					logging.Error(err),
					logging.String(logging.FieldErrorHint, "check ffmpeg can seek in the source video"),
					logging.String(logging.FieldImpact, "description generated from text context only"),
				)...,
			)
		}
		sc.Keyframe = img
	}

	text, err := services.RetryValue(ctx, s.retry, func(ctx context.Context) (string, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", err
		}
		return gen.Generate(ctx, sc)
	})
	if err != nil {
		if ctx.Err() != nil {
			return Cue{}, false, ctx.Err()
		}
		_, hint := services.Details(err)
		if hint == "" {
			hint = "check the description provider configuration and credentials"
		}
		logging.WarnWithContext(s.logger, "description generation failed; skipping scene", "description_skipped",
			append(sceneAttrs,
				logging.Error(err),
				logging.String(logging.FieldErrorHint, hint),
				logging.String(logging.FieldImpact, "scene has no audio description"),
			)...,
		)
		return Cue{}, false, nil
	}

	raw := strings.TrimSpace(text)
	fitted, reason := Fit(raw, maxWords, m.Window.Duration(), s.opts.Limits, s.opts.ValidationRetries)
	if reason != "" {
		logging.WarnWithContext(s.logger, "description dropped by validation", "description_dropped",
			append(sceneAttrs,
				logging.String("reason", reason),
				logging.String("text", raw),
				logging.String(logging.FieldErrorHint, "lower schedule.min_reading_time or allow longer silence windows"),
				logging.String(logging.FieldImpact, "scene has no audio description"),
			)...,
		)
		return Cue{}, false, nil
	}
	if fitted != raw {
		s.logger.DebugContext(ctx, "description truncated to budget",
			logging.Args(append(sceneAttrs,
				logging.Int("generated_words", len(strings.Fields(raw))),
				logging.Int("kept_words", len(strings.Fields(fitted))),
			)...)...,
		)
	}
	return Cue{
		SceneIndex: m.SceneIndex,
		Scene:      m.Scene,
		Window:     m.Window,
		Text:       fitted,
		MaxWords:   maxWords,
	}, true, nil
}
