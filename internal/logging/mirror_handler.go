package logging

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/samber/lo"
)

// mirrorHandler writes each record to a primary handler and copies it into
// secondary sinks such as a job's log file. Only the primary's error reaches
// the caller; mirror failures are counted so the job can report a gap in its
// own log without losing the main log line.
type mirrorHandler struct {
	primary slog.Handler
	mirrors []slog.Handler
	dropped *atomic.Int64
}

func newMirrorHandler(primary slog.Handler, mirrors ...slog.Handler) slog.Handler {
	mirrors = lo.Filter(mirrors, func(h slog.Handler, _ int) bool { return h != nil })
	if primary == nil {
		if len(mirrors) == 0 {
			return NoopHandler{}
		}
		primary, mirrors = mirrors[0], mirrors[1:]
	}
	if len(mirrors) == 0 {
		return primary
	}
	return &mirrorHandler{primary: primary, mirrors: mirrors, dropped: new(atomic.Int64)}
}

func (h *mirrorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || lo.SomeBy(h.mirrors, func(m slog.Handler) bool {
		return m.Enabled(ctx, level)
	})
}

func (h *mirrorHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, m := range h.mirrors {
		if m.Enabled(ctx, record.Level) && m.Handle(ctx, record.Clone()) != nil {
			h.dropped.Add(1)
		}
	}
	if !h.primary.Enabled(ctx, record.Level) {
		return nil
	}
	return h.primary.Handle(ctx, record)
}

func (h *mirrorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithAttrs(attrs) })
}

func (h *mirrorHandler) WithGroup(name string) slog.Handler {
	return h.derive(func(next slog.Handler) slog.Handler { return next.WithGroup(name) })
}

// derive keeps the drop counter shared so loggers built with With still
// report into the job that created them.
func (h *mirrorHandler) derive(fn func(slog.Handler) slog.Handler) slog.Handler {
	return &mirrorHandler{
		primary: fn(h.primary),
		mirrors: lo.Map(h.mirrors, func(m slog.Handler, _ int) slog.Handler { return fn(m) }),
		dropped: h.dropped,
	}
}

// MirrorLogger returns a logger that writes to base and copies every record
// into mirrors, typically a per-job log file handler.
func MirrorLogger(base *slog.Logger, mirrors ...slog.Handler) *slog.Logger {
	var primary slog.Handler
	if base != nil {
		primary = base.Handler()
	}
	return slog.New(newMirrorHandler(primary, mirrors...))
}

// DroppedMirrorRecords reports how many records the mirrors of a
// MirrorLogger failed to write. Other loggers report zero.
func DroppedMirrorRecords(logger *slog.Logger) int64 {
	if logger == nil {
		return 0
	}
	if h, ok := logger.Handler().(*mirrorHandler); ok {
		return h.dropped.Load()
	}
	return 0
}
