package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus"

	"adscribe/internal/config"
	"adscribe/internal/deps"
	"adscribe/internal/governor"
	"adscribe/internal/logging"
	"adscribe/internal/queue"
	"adscribe/internal/stage"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".mov":  {},
	".avi":  {},
	".webm": {},
	".m4v":  {},
}

// IsVideoFile reports whether path has an extension the worker accepts.
func IsVideoFile(path string) bool {
	_, ok := videoExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// HealthCheck contributes extra readiness records to /healthz.
type HealthCheck func(ctx context.Context) []stage.Health

// Option customizes a Daemon.
type Option func(*Daemon)

// WithGatherer serves reg on /metrics.
func WithGatherer(reg prometheus.Gatherer) Option {
	return func(d *Daemon) { d.gatherer = reg }
}

// WithHealthCheck adds readiness records to the built-in checks.
func WithHealthCheck(check HealthCheck) Option {
	return func(d *Daemon) { d.checks = append(d.checks, check) }
}

// Daemon owns the worker lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *queue.Store
	governor *governor.Governor
	gatherer prometheus.Gatherer
	checks   []HealthCheck

	lockPath string
	lock     *flock.Flock

	inbox *inboxWatcher
	api   *apiServer

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool                `json:"running"`
	PID          int                 `json:"pid"`
	Active       []string            `json:"active"`
	Queue        queue.HealthSummary `json:"queue"`
	QueueDBPath  string              `json:"queue_db_path"`
	LockFilePath string              `json:"lock_file_path"`
	InboxDir     string              `json:"inbox_dir,omitempty"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *queue.Store, gov *governor.Governor, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || gov == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, governor, and logger")
	}
	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		governor: gov,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	if dir := strings.TrimSpace(cfg.Paths.InboxDir); dir != "" {
		d.inbox = newInboxWatcher(dir, d.submitInbox, d.knownVideos, logger)
	}
	api, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = api
	return d, nil
}

// Start acquires the worker lock and launches the governor, inbox watcher
// and HTTP endpoints.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another adscribe worker is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.governor.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start governor: %w", err)
	}
	if err := d.inbox.start(runCtx); err != nil {
		cancel()
		d.governor.Stop()
		_ = d.lock.Unlock()
		return fmt.Errorf("start inbox watcher: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		cancel()
		d.inbox.stop()
		d.governor.Stop()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("adscribe worker started",
		logging.String("lock", d.lockPath),
		logging.String("inbox", d.cfg.Paths.InboxDir),
		logging.String("bind", d.cfg.Paths.MetricsBind),
	)
	return nil
}

// Stop stops background processing and releases the lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.inbox.stop()
	d.governor.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release worker lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("adscribe worker stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// AddFile validates sourcePath and submits it to the governor.
func (d *Daemon) AddFile(ctx context.Context, sourcePath, outputDir string) (*queue.Job, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, errors.New("source path is required")
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat source file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("source path %q is a directory", absPath)
	}
	if !IsVideoFile(absPath) {
		return nil, fmt.Errorf("unsupported file extension %q", filepath.Ext(absPath))
	}
	id, err := d.governor.Submit(ctx, absPath, strings.TrimSpace(outputDir))
	if err != nil {
		return nil, fmt.Errorf("enqueue video: %w", err)
	}
	return d.store.Get(ctx, id)
}

// Health runs the built-in readiness checks followed by the registered ones.
func (d *Daemon) Health(ctx context.Context) []stage.Health {
	records := make([]stage.Health, 0, 8)
	if _, err := d.store.CheckHealth(ctx); err != nil {
		records = append(records, stage.Unhealthy("queue", err.Error()))
	} else {
		records = append(records, stage.Healthy("queue"))
	}
	records = append(records, deps.Health(deps.CheckBinaries(deps.Requirements(d.cfg)))...)
	for _, check := range d.checks {
		records = append(records, check(ctx)...)
	}
	return records
}

// APIAddr returns the address the HTTP endpoints listen on, or "" when
// they are disabled or not started.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	summary, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Debug("queue summary unavailable", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		Active:       d.governor.Active(),
		Queue:        summary,
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		InboxDir:     d.cfg.Paths.InboxDir,
	}
}

func (d *Daemon) submitInbox(ctx context.Context, path string) error {
	job, err := d.AddFile(ctx, path, "")
	if err != nil {
		return err
	}
	d.logger.Info("inbox video queued",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("video_path", job.VideoPath),
		logging.String(logging.FieldEventType, "inbox_submit"),
	)
	return nil
}

// knownVideos returns the absolute paths that already have a job, so a
// restarted worker does not queue inbox files twice.
func (d *Daemon) knownVideos(ctx context.Context) (map[string]struct{}, error) {
	jobs, err := d.store.List(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		known[job.VideoPath] = struct{}{}
	}
	return known, nil
}
