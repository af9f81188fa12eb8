package compose

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"adscribe/internal/config"
	"adscribe/internal/logging"
	"adscribe/internal/media/pcm"
	"adscribe/internal/schedule"
	"adscribe/internal/services"
)

// fitSlack tolerates sub-millisecond rounding when comparing clip and window lengths.
const fitSlack = 0.001

// Voice selects how descriptions are spoken.
type Voice struct {
	Language string
	Name     string
	Speed    float64
}

// Clip is synthesized speech in the track format.
type Clip struct {
	Audio pcm.Track
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	return c.Audio.Duration()
}

// SpeechSynthesizer turns text into a clip already converted to the format
// the synthesizer was configured for.
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string, voice Voice) (Clip, error)
}

// SynthesizerFunc adapts a function to SpeechSynthesizer.
type SynthesizerFunc func(ctx context.Context, text string, voice Voice) (Clip, error)

// Synthesize calls f.
func (f SynthesizerFunc) Synthesize(ctx context.Context, text string, voice Voice) (Clip, error) {
	return f(ctx, text, voice)
}

// Warning codes.
const (
	WarningOverrun         = "overrun"
	WarningSynthesisFailed = "synthesis_failed"
	WarningFormatMismatch  = "format_mismatch"
	WarningPastEnd         = "past_end"
)

// ComplianceWarning records a cue that could not be placed as scheduled.
type ComplianceWarning struct {
	SceneIndex  int     `json:"scene_index"`
	WindowStart float64 `json:"window_start"`
	Code        string  `json:"code"`
	Message     string  `json:"message"`
}

func (w ComplianceWarning) String() string {
	return fmt.Sprintf("scene %d at %.2fs: %s", w.SceneIndex, w.WindowStart, w.Message)
}

// Options configures fitting and mixing.
type Options struct {
	FadeSeconds       float64
	OverlayGainDB     float64
	DuckCeilingDB     float64
	DuckFloorDB       float64
	ShrinkStep        int
	MaxShrinkAttempts int
	Voice             Voice
}

// OptionsFromConfig maps the compose and tts config sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		FadeSeconds:       float64(cfg.Compose.FadeMS) / 1000,
		OverlayGainDB:     cfg.Compose.OverlayGainDB,
		DuckCeilingDB:     cfg.Compose.DuckCeilingDB,
		DuckFloorDB:       cfg.Compose.DuckFloorDB,
		ShrinkStep:        cfg.Compose.ShrinkStep,
		MaxShrinkAttempts: cfg.Compose.MaxShrinkAttempts,
		Voice: Voice{
			Language: cfg.Media.Language,
			Name:     cfg.TTS.Voice,
			Speed:    cfg.TTS.Speed,
		},
	}
}

// Result is the composed track plus the cues as placed.
type Result struct {
	Track    pcm.Track
	Cues     []schedule.Cue
	Warnings []ComplianceWarning
}

// Placed counts cues whose audio made it into the track.
func (r Result) Placed() int {
	n := 0
	for _, cue := range r.Cues {
		if cue.SynthesizedDuration > 0 {
			n++
		}
	}
	return n
}

// Option customizes a Compositor.
type Option func(*Compositor)

// WithRetryPolicy overrides the retry policy for synthesis calls.
func WithRetryPolicy(p services.RetryPolicy) Option {
	return func(c *Compositor) { c.retry = p }
}

// WithRateLimiter throttles synthesis calls.
func WithRateLimiter(l *services.RateLimiter) Option {
	return func(c *Compositor) { c.limiter = l }
}

// WithProgress observes each finished cue.
func WithProgress(fn func(done, total int)) Option {
	return func(c *Compositor) { c.progress = fn }
}

// WithGate installs a check run before each cue is synthesized. It may
// block; an error stops composition.
func WithGate(gate func(context.Context) error) Option {
	return func(c *Compositor) { c.gate = gate }
}

// Compositor places synthesized descriptions over an original track.
type Compositor struct {
	opts     Options
	gate     func(context.Context) error
	retry    services.RetryPolicy
	limiter  *services.RateLimiter
	progress func(done, total int)
	logger   *slog.Logger
}

// New returns a Compositor.
func New(opts Options, logger *slog.Logger, options ...Option) *Compositor {
	if opts.ShrinkStep <= 0 {
		opts.ShrinkStep = 1
	}
	c := &Compositor{
		opts:   opts,
		retry:  services.DefaultRetryPolicy(),
		logger: logging.NewComponentLogger(logger, "compose"),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Compose synthesizes every cue and mixes the clips into a copy of original.
// Cues that cannot be synthesized are skipped with a warning; when none can
// be, the original is returned unchanged. Only cancellation and gate errors
// are returned.
func (c *Compositor) Compose(ctx context.Context, original pcm.Track, cues []schedule.Cue, synth SpeechSynthesizer) (Result, error) {
	ordered := append([]schedule.Cue(nil), cues...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Window.Start < ordered[j].Window.Start })

	result := Result{Track: original.Clone()}
	trackRMS := pcm.RMS(original.Samples)
	for i, cue := range ordered {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if c.gate != nil {
			if err := c.gate(ctx); err != nil {
				return Result{}, err
			}
		}
		placed, clip, warning, err := c.fit(ctx, cue, synth)
		if err != nil {
			return Result{}, err
		}
		if warning != nil {
			result.Warnings = append(result.Warnings, *warning)
			placed.ComplianceWarning = warning.Message
		}
		if clip != nil {
			var rejected *ComplianceWarning
			switch {
			case !clip.Audio.SameFormat(original):
				rejected = &ComplianceWarning{
					Code: WarningFormatMismatch,
					Message: fmt.Sprintf("clip is %dHz/%dch, track is %dHz/%dch",
						clip.Audio.SampleRate, clip.Audio.Channels, original.SampleRate, original.Channels),
				}
			case !c.mix(result.Track, original, trackRMS, cue.Window.Start, clip.Audio):
				rejected = &ComplianceWarning{
					Code:    WarningPastEnd,
					Message: fmt.Sprintf("window starts at %.2fs, at or past the end of the %.2fs track", cue.Window.Start, original.Duration()),
				}
				logging.WarnWithContext(c.logger, "description starts past the end of the audio; skipping cue", "cue_past_end",
					logging.Int("scene_index", cue.SceneIndex),
					logging.Float64("window_start", cue.Window.Start),
					logging.Float64("track_seconds", original.Duration()),
					logging.String(logging.FieldImpact, "scene has no audio description"),
				)
			}
			if rejected != nil {
				rejected.SceneIndex = cue.SceneIndex
				rejected.WindowStart = cue.Window.Start
				result.Warnings = append(result.Warnings, *rejected)
				placed.ComplianceWarning = rejected.Message
				placed.SynthesizedDuration = 0
			}
		}
		result.Cues = append(result.Cues, placed)
		if c.progress != nil {
			c.progress(i+1, len(ordered))
		}
	}

	attrs := []logging.Attr{
		logging.Int("cues", len(ordered)),
		logging.Int("placed", result.Placed()),
		logging.Int("warnings", len(result.Warnings)),
	}
	if len(ordered) > 0 && result.Placed() == 0 {
		logging.WarnWithContext(c.logger, "no description could be synthesized; keeping original audio", "compose_all_failed",
			append(attrs,
				logging.String(logging.FieldErrorHint, "check the tts provider configuration"),
				logging.String(logging.FieldImpact, "output audio has no descriptions"),
			)...,
		)
		return result, nil
	}
	c.logger.InfoContext(ctx, "descriptions mixed", logging.Args(attrs...)...)
	return result, nil
}

// fit synthesizes cue text, shrinking the word budget while the clip is
// longer than the window. A nil clip means the cue was dropped.
func (c *Compositor) fit(ctx context.Context, cue schedule.Cue, synth SpeechSynthesizer) (schedule.Cue, *Clip, *ComplianceWarning, error) {
	window := cue.Window.Duration()
	words := len(strings.Fields(cue.Text))
	text := cue.Text
	for attempt := 0; ; attempt++ {
		clip, err := services.RetryValue(ctx, c.retry, func(ctx context.Context) (Clip, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return Clip{}, err
			}
			return synth.Synthesize(ctx, text, c.opts.Voice)
		})
		if err != nil {
			if ctx.Err() != nil {
				return cue, nil, nil, ctx.Err()
			}
			logging.WarnWithContext(c.logger, "speech synthesis failed; skipping cue", "synthesis_failed",
				logging.Int("scene_index", cue.SceneIndex),
				logging.Error(err),
				logging.String(logging.FieldImpact, "scene has no audio description"),
			)
			return cue, nil, &ComplianceWarning{
				SceneIndex:  cue.SceneIndex,
				WindowStart: cue.Window.Start,
				Code:        WarningSynthesisFailed,
				Message:     fmt.Sprintf("synthesis failed: %v", err),
			}, nil
		}

		cue.Text = text
		cue.SynthesizedDuration = clip.Duration()
		if clip.Duration() <= window+fitSlack {
			return cue, &clip, nil, nil
		}

		budget := words - c.opts.ShrinkStep*(attempt+1)
		if attempt >= c.opts.MaxShrinkAttempts || budget < 1 {
			msg := fmt.Sprintf("clip %.2fs exceeds window %.2fs after %d shortening attempts", clip.Duration(), window, attempt)
			logging.WarnWithContext(c.logger, "description overruns its window", "description_overrun",
				logging.Int("scene_index", cue.SceneIndex),
				logging.Float64("clip_seconds", clip.Duration()),
				logging.Float64("window_seconds", window),
				logging.String(logging.FieldErrorHint, "lower tts.speed or schedule.word_rate"),
				logging.String(logging.FieldImpact, "description ends after the silence window"),
			)
			return cue, &clip, &ComplianceWarning{
				SceneIndex:  cue.SceneIndex,
				WindowStart: cue.Window.Start,
				Code:        WarningOverrun,
				Message:     msg,
			}, nil
		}
		c.logger.DebugContext(ctx, "clip longer than window; shortening",
			logging.Int("scene_index", cue.SceneIndex),
			logging.Float64("clip_seconds", clip.Duration()),
			logging.Float64("window_seconds", window),
			logging.Int("word_budget", budget),
		)
		text = schedule.Truncate(cue.Text, budget)
	}
}
