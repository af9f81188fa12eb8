package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"adscribe/internal/logging"
)

// defaultInboxSettle is how long a file must go without writes before it is
// queued; copies into the inbox emit a stream of write events.
const defaultInboxSettle = 2 * time.Second

type submitFunc func(ctx context.Context, path string) error

type knownFunc func(ctx context.Context) (map[string]struct{}, error)

// inboxWatcher queues videos dropped into a directory.
type inboxWatcher struct {
	dir    string
	settle time.Duration
	submit submitFunc
	known  knownFunc
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	pending map[string]*time.Timer
	queued  map[string]struct{}
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func newInboxWatcher(dir string, submit submitFunc, known knownFunc, logger *slog.Logger) *inboxWatcher {
	return &inboxWatcher{
		dir:     dir,
		settle:  defaultInboxSettle,
		submit:  submit,
		known:   known,
		logger:  logging.NewComponentLogger(logger, "inbox"),
		pending: make(map[string]*time.Timer),
		queued:  make(map[string]struct{}),
	}
}

func (w *inboxWatcher) start(ctx context.Context) error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("inbox watcher already running")
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create inbox: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel
	w.running = true

	w.wg.Add(1)
	go w.loop(runCtx)
	w.scanExisting(runCtx)

	w.logger.Info("inbox watcher started", logging.String("dir", w.dir))
	return nil
}

func (w *inboxWatcher) stop() {
	if w == nil {
		return
	}
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	cancel := w.cancel
	watcher := w.watcher
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()

	cancel()
	if err := watcher.Close(); err != nil {
		w.logger.Debug("inbox watcher close failed", logging.Error(err))
	}
	w.wg.Wait()
}

func (w *inboxWatcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(w.logger, "inbox watcher error", "inbox_watch_error",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check the inbox directory still exists"),
				logging.String(logging.FieldImpact, "new videos may need to be submitted manually"),
			)
		}
	}
}

func (w *inboxWatcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !IsVideoFile(event.Name) {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule (re)arms the settle timer for path.
func (w *inboxWatcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.armLocked(ctx, path)
}

func (w *inboxWatcher) armLocked(ctx context.Context, path string) {
	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.queue(ctx, path)
	})
}

func (w *inboxWatcher) queue(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	w.mu.Lock()
	_, done := w.queued[path]
	w.queued[path] = struct{}{}
	w.mu.Unlock()
	if done {
		return
	}
	if err := w.submit(ctx, path); err != nil {
		w.mu.Lock()
		delete(w.queued, path)
		w.mu.Unlock()
		logging.WarnWithContext(w.logger, "inbox video not queued", "inbox_submit_failed",
			logging.String("path", path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "submit the file with 'adscribe submit'"),
			logging.String(logging.FieldImpact, "the video is not processed"),
		)
	}
}

// scanExisting queues videos that arrived while the worker was down. The
// caller holds w.mu.
func (w *inboxWatcher) scanExisting(ctx context.Context) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		w.logger.Debug("inbox scan failed", logging.Error(err))
		return
	}
	known := map[string]struct{}{}
	if w.known != nil {
		if known, err = w.known(ctx); err != nil {
			w.logger.Debug("known job lookup failed", logging.Error(err))
			return
		}
	}
	for _, entry := range entries {
		if entry.IsDir() || !IsVideoFile(entry.Name()) {
			continue
		}
		path := filepath.Join(w.dir, entry.Name())
		if abs, err := filepath.Abs(path); err == nil {
			if _, seen := known[abs]; seen {
				continue
			}
		}
		w.armLocked(ctx, path)
	}
}
