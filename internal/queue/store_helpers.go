package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "seq, id, video_path, output_dir, status, progress, current_step, error_message, error_code, error_suggestion, attempts, result_json, created_at, updated_at, started_at, finished_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job             Job
		statusStr       string
		currentStep     sql.NullString
		errorMessage    sql.NullString
		errorCode       sql.NullString
		errorSuggestion sql.NullString
		resultJSON      sql.NullString
		createdRaw      string
		updatedRaw      string
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
		heartbeatRaw    sql.NullString
	)

	if err := scanner.Scan(
		&job.Seq,
		&job.ID,
		&job.VideoPath,
		&job.OutputDir,
		&statusStr,
		&job.Progress,
		&currentStep,
		&errorMessage,
		&errorCode,
		&errorSuggestion,
		&job.Attempts,
		&resultJSON,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job.Status = Status(statusStr)
	job.CurrentStep = currentStep.String
	job.ErrorMessage = errorMessage.String
	job.ErrorCode = errorCode.String
	job.ErrorSuggestion = errorSuggestion.String
	job.ResultJSON = resultJSON.String

	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	job.StartedAt = parseNullableTime(startedRaw)
	job.FinishedAt = parseNullableTime(finishedRaw)
	job.LastHeartbeat = parseNullableTime(heartbeatRaw)
	return &job, nil
}

func parseNullableTime(value sql.NullString) *time.Time {
	if !value.Valid {
		return nil
	}
	parsed, err := parseTimeString(value.String)
	if err != nil {
		return nil
	}
	return &parsed
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
