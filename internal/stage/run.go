package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"adscribe/internal/logging"
	"adscribe/internal/services"
)

// ProgressFunc receives overall job progress (0..100) and the current step.
type ProgressFunc func(percent float64, step string)

// Func is the body of a stage. report takes the fraction of the stage done.
type Func func(ctx context.Context, logger *slog.Logger, report func(fraction float64)) error

// Runner executes the stages of one job.
type Runner struct {
	Logger *slog.Logger
	// Overrides maps stage names to minimum log levels.
	Overrides map[string]string
	Plan      Plan
	Progress  ProgressFunc
	// Gate blocks before each stage, for example while memory is under pressure.
	Gate func(ctx context.Context) error

	sampler *logging.ProgressSampler
}

// Run executes fn as stage name. Cancellation is checked before the stage
// starts and failures are logged with the stage attached.
func (r *Runner) Run(ctx context.Context, name Name, fn Func) error {
	if err := ctx.Err(); err != nil {
		return cancelled(name, err)
	}
	if r.Gate != nil {
		if err := r.Gate(ctx); err != nil {
			return cancelled(name, err)
		}
	}
	if r.sampler == nil {
		r.sampler = logging.NewProgressSampler(10)
	}

	stageCtx := services.WithStage(ctx, string(name))
	logger := logging.ForStage(r.Logger, string(name), r.Overrides)
	label := Label(name)

	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	r.report(logger, name, label, 0)
	started := time.Now()

	err := fn(stageCtx, logger, func(fraction float64) { r.report(logger, name, label, fraction) })
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(name, ctx.Err())
		}
		code, hint := services.Details(err)
		logger.Error("stage failed",
			logging.String(logging.FieldEventType, "stage_failure"),
			logging.String("error_code", code),
			logging.String(logging.FieldErrorHint, hint),
			logging.Error(err),
		)
		return err
	}

	r.report(logger, name, label, 1)
	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("duration", time.Since(started)),
	)
	return nil
}

func (r *Runner) report(logger *slog.Logger, name Name, label string, fraction float64) {
	percent := r.Plan.Percent(name, fraction)
	if r.Progress != nil {
		r.Progress(percent, label)
	}
	if r.sampler.ShouldLog(percent, label) {
		logger.Debug("progress", logging.Float64("percent", percent))
	}
}

func cancelled(name Name, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.KindSystem, string(name), services.CodeCancelled,
			fmt.Sprintf("job stopped before %s", name), err)
	}
	return err
}
