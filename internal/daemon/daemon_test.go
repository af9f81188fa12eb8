package daemon_test

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"adscribe/internal/config"
	"adscribe/internal/daemon"
	"adscribe/internal/governor"
	"adscribe/internal/logging"
	"adscribe/internal/queue"
	"adscribe/internal/testsupport"
)

type countingRunner struct {
	runs atomic.Int32
}

func (r *countingRunner) Run(_ context.Context, _ *queue.Job, progress governor.ProgressFunc) (string, error) {
	r.runs.Add(1)
	progress(100, "Export")
	return `{}`, nil
}

func newDaemon(t *testing.T, cfg *config.Config, runner governor.Runner) (*daemon.Daemon, *queue.Store) {
	t.Helper()
	store := testsupport.MustOpenStore(t, cfg)
	gov := governor.New(cfg, store, runner, logging.NewNop())
	d, err := daemon.New(cfg, store, gov, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(d.Stop)
	return d, store
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, _ := newDaemon(t, cfg, &countingRunner{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.LockFilePath != cfg.LockPath() {
		t.Fatalf("lock path = %q, want %q", status.LockFilePath, cfg.LockPath())
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	other, _ := newDaemon(t, cfg, &countingRunner{})
	err := other.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	d.Stop()
	if d.Status(ctx).Running {
		t.Fatal("expected daemon to be stopped")
	}
	if err := other.Start(ctx); err != nil {
		t.Fatalf("start after release: %v", err)
	}
}

func TestDaemonAddFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	runner := &countingRunner{}
	d, store := newDaemon(t, cfg, runner)
	ctx := context.Background()

	base := testsupport.BaseDir(cfg)
	video := filepath.Join(base, "clip.mp4")
	testsupport.WriteVideo(t, video, 64)
	notes := filepath.Join(base, "notes.txt")
	testsupport.WriteText(t, notes, "not a video")

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"empty", "  ", "required"},
		{"missing", filepath.Join(base, "gone.mp4"), "stat source file"},
		{"directory", base, "directory"},
		{"extension", notes, "unsupported file extension"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.AddFile(ctx, tt.path, "")
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("AddFile(%q) error = %v, want %q", tt.path, err, tt.wantErr)
			}
		})
	}

	job, err := d.AddFile(ctx, video, "")
	if err != nil {
		t.Fatalf("AddFile: %v", err)
	}
	if job.Status != queue.StatusQueued || job.VideoPath != video {
		t.Fatalf("unexpected job: %+v", job)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	for {
		got, err := store.Get(waitCtx, job.ID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Status == queue.StatusCompleted {
			break
		}
		select {
		case <-waitCtx.Done():
			t.Fatalf("job did not complete, status %s", got.Status)
		case <-time.After(20 * time.Millisecond):
		}
	}
	if runner.runs.Load() != 1 {
		t.Fatalf("runner called %d times, want 1", runner.runs.Load())
	}
}

func TestDaemonHealthReportsMissingBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Media.FFmpegBinary = filepath.Join(testsupport.BaseDir(cfg), "missing-ffmpeg")
	d, _ := newDaemon(t, cfg, &countingRunner{})

	checks := d.Health(context.Background())
	if len(checks) == 0 || checks[0].Name != "queue" || !checks[0].Ready {
		t.Fatalf("expected ready queue check first, got %+v", checks)
	}
	found := false
	for _, c := range checks {
		if !c.Ready {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unready dependency, got %+v", checks)
	}
}
