package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"

	"adscribe/internal/services"
)

const stderrTailLines = 8

// Runner invokes ffmpeg with a fixed binary and error classification.
type Runner struct {
	Binary string
	// Kind classifies non-zero exits; defaults to video processing.
	Kind services.Kind
	// Component names the caller in error messages.
	Component string
}

// Run executes ffmpeg with -hide_banner -nostdin -y prepended.
func (r Runner) Run(ctx context.Context, args ...string) error {
	_, err := r.Output(ctx, args...)
	return err
}

// Output executes ffmpeg and returns stdout.
func (r Runner) Output(ctx context.Context, args ...string) ([]byte, error) {
	binary := strings.TrimSpace(r.Binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	full := append([]string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}, args...)
	cmd := exec.CommandContext(ctx, binary, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, r.classify(ctx, err, stderr.String())
	}
	return stdout.Bytes(), nil
}

func (r Runner) classify(ctx context.Context, err error, stderr string) error {
	component := r.Component
	if component == "" {
		component = "ffmpeg"
	}
	if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.KindSystem, component, services.CodeMissingBinary, "ffmpeg not found", err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	kind := r.Kind
	if kind == "" {
		kind = services.KindVideoProcessing
	}
	return services.Wrap(kind, component, "", fmt.Sprintf("ffmpeg failed: %s", Tail(stderr, stderrTailLines)), err)
}

// Tail returns the last n non-empty lines of output joined by "; ".
func Tail(output string, n int) string {
	lines := strings.Split(strings.TrimSpace(output), "\n")
	kept := make([]string, 0, n)
	for i := len(lines) - 1; i >= 0 && len(kept) < n; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			kept = append([]string{line}, kept...)
		}
	}
	return strings.Join(kept, "; ")
}
