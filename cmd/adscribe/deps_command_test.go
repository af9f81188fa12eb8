package main

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"adscribe/internal/deps"
	"adscribe/internal/testsupport"
)

func TestDepsCommand(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithStubbedBinaries())

	out, _, err := runCLI(t, []string{"deps", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	var statuses []deps.Status
	if err := json.Unmarshal([]byte(out), &statuses); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, status := range statuses {
		if !status.Optional && !status.Available {
			t.Fatalf("expected required deps to be available: %+v", status)
		}
	}

	out, _, err = runCLI(t, []string{"deps"}, env.configPath)
	if err != nil {
		t.Fatalf("deps: %v", err)
	}
	requireContains(t, out, "FFmpeg")
}

func TestDepsCommandFailsOnMissingBinary(t *testing.T) {
	env := setupCLITestEnv(t)
	f, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	_, err = f.WriteString("\n[media]\nffmpeg_binary = \"/nonexistent/ffmpeg\"\n")
	f.Close()
	if err != nil {
		t.Fatalf("append config: %v", err)
	}

	out, _, err := runCLI(t, []string{"deps"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected missing dependency error, got %v", err)
	}
	requireContains(t, out, "/nonexistent/ffmpeg")
}
