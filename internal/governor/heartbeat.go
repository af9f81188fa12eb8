package governor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"adscribe/internal/logging"
	"adscribe/internal/queue"
)

// heartbeatMonitor keeps processing jobs alive and re-queues abandoned ones.
type heartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func (h *heartbeatMonitor) reclaimStale(ctx context.Context) (int64, error) {
	if h.timeout <= 0 {
		return 0, nil
	}
	reclaimed, err := h.store.ReclaimStale(ctx, time.Now().Add(-h.timeout))
	if err != nil {
		return 0, err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale jobs",
			logging.Int64("count", reclaimed),
			logging.String(logging.FieldEventType, "heartbeat_reclaim"),
		)
	}
	return reclaimed, nil
}

// loop refreshes the job heartbeat until ctx ends.
func (h *heartbeatMonitor) loop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	if h.interval <= 0 {
		return
	}
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, h.logger)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.Heartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "heartbeat_failed"),
					logging.String(logging.FieldErrorHint, "check queue database access"),
					logging.String(logging.FieldImpact, "job may be reclaimed by a later worker start"),
				)
			}
		}
	}
}
