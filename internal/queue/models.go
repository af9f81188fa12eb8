package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a processing job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CancelledReason is the error message recorded when an operator cancels a job.
const CancelledReason = "Cancelled by operator"

// ShutdownReason is recorded when jobs are interrupted by worker shutdown.
const ShutdownReason = "Worker stopped"

var allStatuses = []Status{
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

// ParseStatus maps a user-supplied status name onto a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status never transitions again without an
// explicit retry.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job represents a processing job persisted in SQLite.
type Job struct {
	Seq             int64
	ID              string
	VideoPath       string
	OutputDir       string
	Status          Status
	Progress        float64
	CurrentStep     string
	ErrorMessage    string
	ErrorCode       string
	ErrorSuggestion string
	Attempts        int
	ResultJSON      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	StartedAt       *time.Time
	FinishedAt      *time.Time
	LastHeartbeat   *time.Time
}

// StatusView is the externally reported shape of a job's status.
type StatusView struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	Progress    float64 `json:"progress"`
	CurrentStep string  `json:"current_step"`
	Error       *string `json:"error"`
	ErrorCode   string  `json:"error_code,omitempty"`
	Suggestion  string  `json:"suggestion,omitempty"`
}

// View projects the job onto the status dictionary reported by the CLI.
func (j *Job) View() StatusView {
	if j == nil {
		return StatusView{}
	}
	view := StatusView{
		ID:          j.ID,
		Status:      string(j.Status),
		Progress:    j.Progress,
		CurrentStep: j.CurrentStep,
		ErrorCode:   j.ErrorCode,
		Suggestion:  j.ErrorSuggestion,
	}
	if j.ErrorMessage != "" {
		msg := j.ErrorMessage
		view.Error = &msg
	}
	return view
}

// Elapsed returns the processing time so far, or the total once finished.
func (j *Job) Elapsed(now time.Time) time.Duration {
	if j == nil || j.StartedAt == nil {
		return 0
	}
	end := now
	if j.FinishedAt != nil {
		end = *j.FinishedAt
	}
	if end.Before(*j.StartedAt) {
		return 0
	}
	return end.Sub(*j.StartedAt)
}

// HealthSummary describes aggregated queue counts per lifecycle state.
type HealthSummary struct {
	Total      int `json:"total"`
	Queued     int `json:"queued"`
	Processing int `json:"processing"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TotalJobs        int
	IntegrityCheck   bool
	Error            string
}
