package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"adscribe/internal/config"
	"adscribe/internal/services/whisperx"
	"adscribe/internal/stage"
)

// Requirement defines an external dependency adscribe relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the binaries the configured providers need. Binaries
// for providers that are not selected are reported as optional.
func Requirements(cfg *config.Config) []Requirement {
	reqs := []Requirement{
		{Name: "FFmpeg", Command: cfg.Media.FFmpegBinary, Description: "Audio extraction, frame sampling and muxing"},
		{Name: "FFprobe", Command: cfg.Media.FFprobeBinary, Description: "Media inspection"},
		{
			Name:        "uvx",
			Command:     whisperx.UVXCommand,
			Description: "Runs WhisperX for transcription",
			Optional:    !strings.EqualFold(cfg.Transcription.Provider, "whisperx"),
		},
	}
	if strings.EqualFold(cfg.TTS.Provider, "command") {
		reqs = append(reqs, Requirement{
			Name:        "Speech command",
			Command:     cfg.TTS.Command,
			Description: "Synthesizes descriptions",
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// Health converts required statuses into health records; optional
// dependencies never make the worker unhealthy.
func Health(statuses []Status) []stage.Health {
	records := make([]stage.Health, 0, len(statuses))
	for _, s := range statuses {
		switch {
		case s.Available:
			records = append(records, stage.Healthy(s.Name))
		case s.Optional:
			continue
		default:
			records = append(records, stage.Unhealthy(s.Name, s.Detail))
		}
	}
	return records
}
