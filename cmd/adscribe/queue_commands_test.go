package main

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"adscribe/internal/queue"
	"adscribe/internal/testsupport"
)

func TestSubmitListStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	video := filepath.Join(env.baseDir, "clip.mp4")
	testsupport.WriteVideo(t, video, 32)
	notes := filepath.Join(env.baseDir, "notes.txt")
	testsupport.WriteText(t, notes, "todo")

	if _, _, err := runCLI(t, []string{"submit", notes}, env.configPath); err == nil ||
		!strings.Contains(err.Error(), "unsupported file extension") {
		t.Fatalf("expected extension error, got %v", err)
	}
	if _, _, err := runCLI(t, []string{"submit", filepath.Join(env.baseDir, "gone.mp4")}, env.configPath); err == nil {
		t.Fatal("expected error for missing file")
	}

	out, _, err := runCLI(t, []string{"submit", "--json", video}, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var views []queue.StatusView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatalf("decode submit output %q: %v", out, err)
	}
	if len(views) != 1 || views[0].Status != "queued" || views[0].Error != nil {
		t.Fatalf("unexpected submit views: %+v", views)
	}
	id := views[0].ID

	out, _, err = runCLI(t, []string{"list"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, shortID(id))
	requireContains(t, out, "clip.mp4")

	out, _, err = runCLI(t, []string{"list", "--status", "failed"}, env.configPath)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	requireContains(t, out, "Queue is empty")

	if _, _, err := runCLI(t, []string{"list", "--status", "paused"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown status")
	}

	out, _, err = runCLI(t, []string{"status", id[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "queued")

	if _, _, err := runCLI(t, []string{"status", "ffffffff"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown job")
	}
}

func TestStatusJSONReportsFailure(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenStore(t, env.cfg)
	job := testsupport.MustEnqueue(t, store, filepath.Join(env.baseDir, "clip.mp4"))
	if err := store.Fail(context.Background(), job.ID, queue.FailureDetails{
		Message:    "ffprobe failed",
		Code:       "missing_binary",
		Suggestion: "install ffmpeg",
	}); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	out, _, err := runCLI(t, []string{"status", "--json", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var view queue.StatusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Status != "failed" || view.Error == nil || *view.Error != "ffprobe failed" {
		t.Fatalf("unexpected view: %+v", view)
	}
	if view.ErrorCode != "missing_binary" || view.Suggestion != "install ffmpeg" {
		t.Fatalf("unexpected failure details: %+v", view)
	}

	out, _, err = runCLI(t, []string{"status", job.ID}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Hint:      install ffmpeg")
}

func TestRetryAndAck(t *testing.T) {
	env := setupCLITestEnv(t)
	store := testsupport.MustOpenStore(t, env.cfg)
	ctx := context.Background()
	failed := testsupport.MustEnqueue(t, store, filepath.Join(env.baseDir, "a.mp4"))
	pending := testsupport.MustEnqueue(t, store, filepath.Join(env.baseDir, "b.mp4"))
	if err := store.Fail(ctx, failed.ID, queue.FailureDetails{Message: "boom"}); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	if _, _, err := runCLI(t, []string{"ack"}, env.configPath); err == nil {
		t.Fatal("expected ack without ids to fail")
	}

	out, _, err := runCLI(t, []string{"retry"}, env.configPath)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	requireContains(t, out, "Retried 1 failed jobs")

	got, err := store.Get(ctx, failed.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != queue.StatusQueued || got.ErrorMessage != "" {
		t.Fatalf("expected retried job to be queued and cleared, got %+v", got)
	}

	out, _, err = runCLI(t, []string{"retry", failed.ID[:8]}, env.configPath)
	if err != nil {
		t.Fatalf("retry by id: %v", err)
	}
	requireContains(t, out, "No failed jobs to retry")

	out, _, err = runCLI(t, []string{"ack", pending.ID}, env.configPath)
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	requireContains(t, out, "Removed 0 jobs")
	requireContains(t, out, "still queued or processing")

	if err := store.Fail(ctx, pending.ID, queue.FailureDetails{Message: "boom"}); err != nil {
		t.Fatalf("Fail: %v", err)
	}
	out, _, err = runCLI(t, []string{"ack", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("ack --all: %v", err)
	}
	requireContains(t, out, "Removed 1 jobs")
	if _, err := store.Get(ctx, pending.ID); err == nil {
		t.Fatal("expected acknowledged job to be removed")
	}
}
