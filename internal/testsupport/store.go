package testsupport

import (
	"context"
	"testing"

	"adscribe/internal/config"
	"adscribe/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustEnqueue creates a queued job for tests using the provided store.
func MustEnqueue(t testing.TB, store *queue.Store, videoPath string) *queue.Job {
	t.Helper()

	job, err := store.Enqueue(context.Background(), videoPath, t.TempDir())
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return job
}
