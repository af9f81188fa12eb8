package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"adscribe/internal/compose"
	"adscribe/internal/logging"
	"adscribe/internal/schedule"
	"adscribe/internal/stage"
)

func (j *job) schedule(ctx context.Context) error {
	return j.runner.Run(ctx, stage.Schedule, j.describe)
}

func (j *job) compose(ctx context.Context) error {
	return j.runner.Run(ctx, stage.Compose, j.mix)
}

// describe generates and fits one description per matched scene. Finished
// cue lists are spooled to the cache so a re-run skips the generator.
func (j *job) describe(ctx context.Context, logger *slog.Logger, report func(float64)) error {
	cfg := j.p.cfg
	opts := schedule.OptionsFromConfig(cfg)
	key := j.cacheKey("descriptions", j.analysisKey,
		cfg.AI.Provider, cfg.AI.Model, cfg.AI.GeminiModel, fmt.Sprintf("%+v", opts))

	if cues, ok := j.loadCues(ctx, logger, key); ok {
		j.cues = cues
		logger.Info("descriptions loaded from cache", logging.Int("cues", len(cues)))
		return nil
	}

	scheduler := schedule.New(opts, logger,
		schedule.WithKeyframes(func(ctx context.Context, seconds float64) ([]byte, error) {
			return j.p.media.Keyframe(ctx, j.req.VideoPath, seconds)
		}),
		schedule.WithRateLimiter(j.p.describeLimiter),
		schedule.WithRetryPolicy(j.p.retry),
		schedule.WithGate(j.p.memory.WaitIfPaused),
		schedule.WithProgress(func(done, total int) { report(float64(done) / float64(total)) }),
	)
	cues, err := scheduler.Schedule(ctx, j.analysis.Scenes, j.analysis.Silences, j.set.Generator)
	if err != nil {
		return err
	}
	j.cues = cues
	j.storeCues(ctx, logger, key, cues)
	logger.Info("descriptions scheduled",
		logging.Int("scenes", len(j.analysis.Scenes)),
		logging.Int("cues", len(cues)),
	)
	return nil
}

func (j *job) loadCues(ctx context.Context, logger *slog.Logger, key string) ([]schedule.Cue, bool) {
	if key == "" {
		return nil, false
	}
	reader, ok, err := j.p.cache.OpenChunks(ctx, key)
	if err != nil {
		logger.Debug("description cache read failed", logging.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}
	defer reader.Close()
	var cues []schedule.Cue
	for {
		var cue schedule.Cue
		err := reader.Decode(&cue)
		if errors.Is(err, io.EOF) {
			return cues, true
		}
		if err != nil {
			logger.Debug("description cache entry unreadable", logging.Error(err))
			return nil, false
		}
		cues = append(cues, cue)
	}
}

func (j *job) storeCues(ctx context.Context, logger *slog.Logger, key string, cues []schedule.Cue) {
	if key == "" {
		return
	}
	spool, err := j.p.cache.NewSpool(key, "descriptions")
	if err == nil {
		for _, cue := range cues {
			if err = spool.Append(cue); err != nil {
				break
			}
		}
	}
	if err == nil {
		err = spool.Commit(ctx)
	} else {
		spool.Abort()
	}
	if err != nil {
		logging.WarnWithContext(logger, "descriptions not cached", "cache_write_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check cache.dir permissions and free space"),
			logging.String(logging.FieldImpact, "the next run calls the description provider again"),
		)
	}
}

// mix synthesizes each cue and places it over the original track.
func (j *job) mix(ctx context.Context, logger *slog.Logger, report func(float64)) error {
	compositor := compose.New(compose.OptionsFromConfig(j.p.cfg), logger,
		compose.WithRateLimiter(j.p.speechLimiter),
		compose.WithRetryPolicy(j.p.retry),
		compose.WithGate(j.p.memory.WaitIfPaused),
		compose.WithProgress(func(done, total int) { report(float64(done) / float64(total)) }),
	)
	result, err := compositor.Compose(ctx, j.track, j.cues, j.set.Synthesizer)
	if err != nil {
		return err
	}
	j.composed = result
	for _, w := range result.Warnings {
		logger.Info("compliance warning", logging.String("code", w.Code), logging.String("detail", w.String()))
	}
	return nil
}
