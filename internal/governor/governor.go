package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"adscribe/internal/config"
	"adscribe/internal/logging"
	"adscribe/internal/queue"
	"adscribe/internal/services"
)

// ProgressFunc records job progress (0-100) and the current step.
type ProgressFunc func(percent float64, step string)

// Runner executes one claimed job and returns the JSON result stored on success.
type Runner interface {
	Run(ctx context.Context, job *queue.Job, progress ProgressFunc) (string, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, job *queue.Job, progress ProgressFunc) (string, error)

// Run implements Runner.
func (f RunnerFunc) Run(ctx context.Context, job *queue.Job, progress ProgressFunc) (string, error) {
	return f(ctx, job, progress)
}

// Option configures optional Governor behavior.
type Option func(*Governor)

// WithMemoryMonitor gates job claims on memory backpressure.
func WithMemoryMonitor(m *MemoryMonitor) Option {
	return func(g *Governor) { g.memory = m }
}

// WithMetrics records worker and queue metrics.
func WithMetrics(m *Metrics) Option {
	return func(g *Governor) { g.metrics = m }
}

// WithExclusiveOwnership re-queues every processing job at Start. Use it only
// when a process lock guarantees no other worker shares the queue.
func WithExclusiveOwnership() Option {
	return func(g *Governor) { g.exclusive = true }
}

// Governor runs queued jobs on a bounded pool of workers.
type Governor struct {
	store     *queue.Store
	runner    Runner
	logger    *slog.Logger
	memory    *MemoryMonitor
	metrics   *Metrics
	heartbeat *heartbeatMonitor

	workers       int
	pollInterval  time.Duration
	retryInterval time.Duration
	exclusive     bool

	wake chan struct{}

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	active    map[string]context.CancelFunc
	cancelled map[string]struct{}
}

// New constructs a governor from the governor config section.
func New(cfg *config.Config, store *queue.Store, runner Runner, logger *slog.Logger, opts ...Option) *Governor {
	logger = logging.NewComponentLogger(logger, "governor")
	workers := cfg.Governor.MaxConcurrent
	if workers <= 0 {
		workers = 1
	}
	g := &Governor{
		store:  store,
		runner: runner,
		logger: logger,
		heartbeat: &heartbeatMonitor{
			store:    store,
			logger:   logger.With(logging.String(logging.FieldComponent, "heartbeat")),
			interval: time.Duration(cfg.Governor.HeartbeatInterval) * time.Second,
			timeout:  time.Duration(cfg.Governor.HeartbeatTimeout) * time.Second,
		},
		workers:       workers,
		pollInterval:  time.Duration(cfg.Governor.PollInterval) * time.Second,
		retryInterval: 2 * time.Second,
		wake:          make(chan struct{}, workers),
		active:        make(map[string]context.CancelFunc),
		cancelled:     make(map[string]struct{}),
	}
	if g.pollInterval <= 0 {
		g.pollInterval = time.Second
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// MemoryConfigFrom maps the governor config section to monitor settings.
func MemoryConfigFrom(cfg *config.Config) MemoryConfig {
	return MemoryConfig{
		LimitBytes:      int64(cfg.Governor.MemoryLimitMB) * 1024 * 1024,
		HighWatermark:   cfg.Governor.HighWatermark,
		ResumeWatermark: cfg.Governor.ResumeWatermark,
		CheckInterval:   time.Duration(cfg.Governor.CheckIntervalMS) * time.Millisecond,
	}
}

// Submit enqueues a video and wakes an idle worker.
func (g *Governor) Submit(ctx context.Context, videoPath, outputDir string) (string, error) {
	job, err := g.store.Enqueue(ctx, videoPath, outputDir)
	if err != nil {
		return "", err
	}
	g.logger.Info("job submitted",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("video_path", job.VideoPath),
		logging.String(logging.FieldEventType, "job_submitted"),
	)
	g.signal()
	return job.ID, nil
}

// Status returns the stored job.
func (g *Governor) Status(ctx context.Context, id string) (*queue.Job, error) {
	return g.store.Get(ctx, id)
}

// Start reclaims abandoned jobs and launches the workers.
func (g *Governor) Start(ctx context.Context) error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return errors.New("governor already running")
	}
	if g.runner == nil {
		g.mu.Unlock()
		return errors.New("governor runner not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	g.running = true
	g.mu.Unlock()

	if g.exclusive {
		if reset, err := g.store.ResetProcessing(runCtx); err != nil {
			g.logger.Warn("failed to reset processing jobs",
				logging.Error(err),
				logging.String(logging.FieldEventType, "reset_processing_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "interrupted jobs stay processing until their heartbeat expires"),
			)
		} else if reset > 0 {
			g.logger.Info("re-queued interrupted jobs", logging.Int64("count", reset))
		}
	}
	if _, err := g.heartbeat.reclaimStale(runCtx); err != nil {
		g.logger.Warn("stale job reclaim failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
			logging.String(logging.FieldImpact, "stuck jobs may remain processing"),
		)
	}
	g.memory.Start(runCtx)

	g.logger.Info("governor started", logging.Int("workers", g.workers))
	g.wg.Add(g.workers + 1)
	for i := 0; i < g.workers; i++ {
		go g.worker(runCtx, i)
	}
	go g.maintain(runCtx)
	return nil
}

// Stop cancels running jobs and waits for the workers to exit.
func (g *Governor) Stop() {
	g.mu.Lock()
	if !g.running {
		g.mu.Unlock()
		return
	}
	cancel := g.cancel
	g.running = false
	g.cancel = nil
	g.mu.Unlock()

	cancel()
	g.memory.Stop()
	g.wg.Wait()
	g.logger.Info("governor stopped")
}

// Wait blocks until the queue has no queued or processing jobs, or ctx ends.
func (g *Governor) Wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		summary, err := g.store.Health(ctx)
		if err != nil {
			return err
		}
		if summary.Queued == 0 && summary.Processing == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cancel stops a running job or fails a queued one with the cancelled code.
// A queued job never runs: it moves straight from queued to failed, so no
// processing state or heartbeat is ever recorded for it. It reports false
// when the job is already terminal.
func (g *Governor) Cancel(ctx context.Context, id string) (bool, error) {
	g.mu.Lock()
	cancel, running := g.active[id]
	if running {
		g.cancelled[id] = struct{}{}
	}
	g.mu.Unlock()
	if running {
		cancel()
		return true, nil
	}

	job, err := g.store.Get(ctx, id)
	if err != nil {
		return false, err
	}
	if job.Status.IsTerminal() {
		return false, nil
	}
	err = g.store.Fail(ctx, id, queue.FailureFromError(context.Canceled))
	if errors.Is(err, queue.ErrInvalidTransition) {
		return false, nil
	}
	return err == nil, err
}

// Active returns the ids of jobs currently executing.
func (g *Governor) Active() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ids := make([]string, 0, len(g.active))
	for id := range g.active {
		ids = append(ids, id)
	}
	return ids
}

func (g *Governor) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

func (g *Governor) worker(ctx context.Context, index int) {
	defer g.wg.Done()
	logger := g.logger.With(logging.Int("worker", index))
	for {
		if ctx.Err() != nil {
			return
		}
		if err := g.memory.WaitIfPaused(ctx); err != nil {
			return
		}
		job, err := g.store.ClaimNext(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logger.Error("failed to claim next job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_claim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			_ = services.SleepWithContext(ctx, g.retryInterval)
			continue
		}
		if job == nil {
			g.idle(ctx)
			continue
		}
		g.runJob(ctx, logger, job)
	}
}

func (g *Governor) idle(ctx context.Context) {
	timer := time.NewTimer(g.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-g.wake:
	case <-timer.C:
	}
}

func (g *Governor) runJob(ctx context.Context, workerLogger *slog.Logger, job *queue.Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobCtx = services.WithJobID(jobCtx, job.ID)
	jobCtx = services.WithRequestID(jobCtx, uuid.NewString())
	logger := logging.WithContext(jobCtx, workerLogger)

	g.mu.Lock()
	g.active[job.ID] = cancel
	g.mu.Unlock()
	g.metrics.workerStarted()
	defer func() {
		g.mu.Lock()
		delete(g.active, job.ID)
		delete(g.cancelled, job.ID)
		g.mu.Unlock()
		g.metrics.workerIdle()
	}()

	started := time.Now()
	logger.Info("job started",
		logging.String(logging.FieldEventType, "job_start"),
		logging.String("video_path", job.VideoPath),
		logging.Int("attempt", job.Attempts),
	)

	hbCtx, hbCancel := context.WithCancel(jobCtx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go g.heartbeat.loop(hbCtx, &hbWG, job.ID)

	progress := func(percent float64, step string) {
		if err := g.store.UpdateProgress(jobCtx, job.ID, percent, step); err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("progress update failed", logging.Error(err))
		}
	}
	result, runErr := g.runner.Run(jobCtx, job, progress)
	hbCancel()
	hbWG.Wait()

	// Terminal writes must land even when the job context was cancelled.
	persistCtx := context.WithoutCancel(ctx)
	g.mu.Lock()
	_, operatorCancelled := g.cancelled[job.ID]
	g.mu.Unlock()

	switch {
	case runErr == nil:
		if err := g.store.Complete(persistCtx, job.ID, result); err != nil {
			logger.Error("failed to persist job completion", logging.Error(err))
			return
		}
		g.metrics.jobFinished(queue.StatusCompleted, time.Since(started).Seconds())
		logger.Info("job completed",
			logging.String(logging.FieldEventType, "job_complete"),
			logging.Duration("duration", time.Since(started)),
		)
	case ctx.Err() != nil && !operatorCancelled:
		logger.Info("job interrupted by shutdown; it will be re-queued on the next start",
			logging.String("reason", queue.ShutdownReason),
			logging.String(logging.FieldEventType, "job_interrupted"),
		)
	default:
		if operatorCancelled {
			runErr = fmt.Errorf("%s: %w", queue.CancelledReason, context.Canceled)
		}
		details := queue.FailureFromError(runErr)
		if err := g.store.Fail(persistCtx, job.ID, details); err != nil {
			logger.Error("failed to persist job failure", logging.Error(err))
			return
		}
		g.metrics.jobFinished(queue.StatusFailed, time.Since(started).Seconds())
		logger.Error("job failed",
			logging.Error(runErr),
			logging.String("error_code", details.Code),
			logging.String(logging.FieldErrorHint, details.Suggestion),
			logging.String(logging.FieldEventType, "job_failed"),
			logging.Alert("job_failure"),
		)
	}
}

func (g *Governor) maintain(ctx context.Context) {
	defer g.wg.Done()
	interval := g.heartbeat.interval
	if interval <= 0 {
		interval = g.pollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if n, err := g.heartbeat.reclaimStale(ctx); err == nil && n > 0 {
			g.signal()
		}
		if summary, err := g.store.Health(ctx); err == nil {
			g.metrics.observeQueue(summary)
		}
	}
}
