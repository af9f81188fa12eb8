package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"adscribe/internal/logging"
	"adscribe/internal/testsupport"
)

func TestRunWorkerStopsOnCancel(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())
	if err := env.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- runWorker(ctx, env.cfg, logging.NewNop()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runWorker: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("worker did not stop after cancellation")
	}

	if _, err := os.Stat(filepath.Join(env.cfg.Paths.DataDir, "queue.db")); err != nil {
		t.Fatalf("expected queue database: %v", err)
	}
}
