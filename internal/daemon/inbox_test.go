package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"adscribe/internal/logging"
	"adscribe/internal/testsupport"
)

type submissions struct {
	mu    sync.Mutex
	paths []string
}

func (s *submissions) submit(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return nil
}

func (s *submissions) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.paths...)
	sort.Strings(out)
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInboxQueuesNewAndWaitingVideos(t *testing.T) {
	dir := t.TempDir()
	waiting := filepath.Join(dir, "waiting.mp4")
	seen := filepath.Join(dir, "seen.mp4")
	testsupport.WriteVideo(t, waiting, 16)
	testsupport.WriteVideo(t, seen, 16)

	subs := &submissions{}
	known := func(context.Context) (map[string]struct{}, error) {
		return map[string]struct{}{seen: {}}, nil
	}
	w := newInboxWatcher(dir, subs.submit, known, logging.NewNop())
	w.settle = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.stop()

	dropped := filepath.Join(dir, "dropped.mkv")
	testsupport.WriteVideo(t, dropped, 16)
	testsupport.WriteText(t, filepath.Join(dir, "readme.txt"), "drop videos here")

	waitFor(t, "two submissions", func() bool { return len(subs.snapshot()) == 2 })
	got := subs.snapshot()
	want := []string{dropped, waiting}
	if got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("submitted %v, want %v", got, want)
	}

	// Further writes to a queued file do not queue it again.
	if err := os.WriteFile(dropped, []byte("more"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	time.Sleep(100 * time.Millisecond)
	if n := len(subs.snapshot()); n != 2 {
		t.Fatalf("expected no resubmission, got %d submissions", n)
	}
}

func TestInboxStopCancelsPendingTimers(t *testing.T) {
	dir := t.TempDir()
	subs := &submissions{}
	w := newInboxWatcher(dir, subs.submit, nil, logging.NewNop())
	w.settle = time.Hour

	if err := w.start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	testsupport.WriteVideo(t, filepath.Join(dir, "late.mp4"), 8)
	waitFor(t, "pending timer", func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return len(w.pending) == 1
	})
	w.stop()
	w.stop()

	w.mu.Lock()
	pending := len(w.pending)
	w.mu.Unlock()
	if pending != 0 || len(subs.snapshot()) != 0 {
		t.Fatalf("expected nothing pending or submitted, got %d pending", pending)
	}
}
