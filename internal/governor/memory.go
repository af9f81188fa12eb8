package governor

import (
	"context"
	"log/slog"
	"math"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"adscribe/internal/logging"
)

// MemoryConfig holds memory backpressure settings.
type MemoryConfig struct {
	// LimitBytes is the budget usage is measured against. Zero falls back to
	// GOMEMLIMIT and then to total system memory.
	LimitBytes      int64
	HighWatermark   float64
	ResumeWatermark float64
	CheckInterval   time.Duration
}

// MemoryMonitor samples heap usage and pauses stage progress while usage is
// above the high watermark. Work is delayed, never dropped.
type MemoryMonitor struct {
	cfg     MemoryConfig
	limit   int64
	logger  *slog.Logger
	metrics *Metrics

	sample func() uint64
	gc     func()

	mu        sync.RWMutex
	current   uint64
	paused    bool
	resumeCh  chan struct{}
	stopOnce  sync.Once
	stopCh    chan struct{}
	startOnce sync.Once
}

// NewMemoryMonitor resolves the memory limit and returns an idle monitor.
func NewMemoryMonitor(cfg MemoryConfig, logger *slog.Logger, metrics *Metrics) *MemoryMonitor {
	logger = logging.NewComponentLogger(logger, "memory")
	limit := cfg.LimitBytes
	source := "config"
	if limit <= 0 {
		if goLimit := debug.SetMemoryLimit(-1); goLimit > 0 && goLimit < math.MaxInt64 {
			limit = goLimit
			source = "GOMEMLIMIT"
		}
	}
	if limit <= 0 {
		limit = systemMemory()
		source = "system"
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Second
	}
	if limit > 0 {
		logger.Info("memory monitor configured",
			logging.String("limit_source", source),
			logging.Float64("limit_mb", float64(limit)/(1024*1024)),
			logging.Float64("high_watermark", cfg.HighWatermark),
			logging.Float64("resume_watermark", cfg.ResumeWatermark),
		)
	} else {
		logger.Warn("memory limit unavailable; backpressure disabled",
			logging.String(logging.FieldEventType, "memory_limit_unknown"),
			logging.String(logging.FieldErrorHint, "set governor.memory_limit_mb or GOMEMLIMIT"),
			logging.String(logging.FieldImpact, "jobs will not pause under memory pressure"),
		)
	}
	return &MemoryMonitor{
		cfg:      cfg,
		limit:    limit,
		logger:   logger,
		metrics:  metrics,
		sample:   heapAlloc,
		gc:       runtime.GC,
		resumeCh: make(chan struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the sampling loop; it ends on Stop or ctx cancellation.
func (m *MemoryMonitor) Start(ctx context.Context) {
	if m == nil || m.limit <= 0 {
		return
	}
	m.startOnce.Do(func() {
		go m.loop(ctx)
	})
}

// Stop ends sampling and releases any waiters.
func (m *MemoryMonitor) Stop() {
	if m == nil {
		return
	}
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *MemoryMonitor) loop(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.check()
		}
	}
}

// check samples usage once and flips the paused state across the watermarks.
func (m *MemoryMonitor) check() {
	if m.limit <= 0 {
		return
	}
	alloc := m.sample()
	usage := float64(alloc) / float64(m.limit)
	m.metrics.setMemoryUsage(usage)

	var triggerGC bool
	m.mu.Lock()
	m.current = alloc
	switch {
	case !m.paused && usage >= m.cfg.HighWatermark:
		m.paused = true
		triggerGC = true
		m.logger.Warn("memory above high watermark; pausing stage progress",
			logging.Float64("usage_percent", usage*100),
			logging.String(logging.FieldEventType, "memory_paused"),
			logging.String(logging.FieldErrorHint, "lower governor.max_concurrent or raise governor.memory_limit_mb"),
			logging.String(logging.FieldImpact, "running jobs wait before their next stage"),
		)
	case m.paused && usage < m.cfg.ResumeWatermark:
		m.paused = false
		close(m.resumeCh)
		m.resumeCh = make(chan struct{})
		m.logger.Info("memory recovered; resuming stage progress", logging.Float64("usage_percent", usage*100))
	}
	paused := m.paused
	m.mu.Unlock()

	m.metrics.setPaused(paused)
	if triggerGC {
		m.gc()
	}
}

// WaitIfPaused blocks while the monitor is paused. It returns ctx.Err() when
// the context ends first; Stop releases waiters with nil.
func (m *MemoryMonitor) WaitIfPaused(ctx context.Context) error {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	if !m.paused {
		m.mu.RUnlock()
		return nil
	}
	resume := m.resumeCh
	m.mu.RUnlock()

	select {
	case <-resume:
		return nil
	case <-m.stopCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Paused reports whether stage progress is currently held.
func (m *MemoryMonitor) Paused() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paused
}

// Usage returns the last sampled usage ratio, or zero without a limit.
func (m *MemoryMonitor) Usage() float64 {
	if m == nil || m.limit <= 0 {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return float64(m.current) / float64(m.limit)
}

// Limit returns the resolved memory limit in bytes.
func (m *MemoryMonitor) Limit() int64 {
	if m == nil {
		return 0
	}
	return m.limit
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.Alloc
}

func systemMemory() int64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return 0
	}
	total := uint64(info.Totalram) * uint64(info.Unit)
	if total > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(total)
}
