package main

import (
	"path/filepath"
	"testing"

	"adscribe/internal/services"
)

func TestPipelineCommandsReportMissingVideo(t *testing.T) {
	env := setupCLITestEnv(t)
	missing := filepath.Join(env.baseDir, "missing.mp4")

	for _, command := range []string{"analyze", "process"} {
		t.Run(command, func(t *testing.T) {
			_, _, err := runCLI(t, []string{command, missing}, env.configPath)
			if err == nil {
				t.Fatal("expected error for missing video")
			}
			if code, _ := services.Details(err); code != services.CodeFileNotFound {
				t.Fatalf("error code = %q, want %q (err %v)", code, services.CodeFileNotFound, err)
			}
			requireContains(t, formatError(err), "hint: ")
		})
	}
}
