package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a job id does not exist.
var ErrNotFound = errors.New("job not found")

// Enqueue inserts a queued job for videoPath writing artifacts under outputDir.
func (s *Store) Enqueue(ctx context.Context, videoPath, outputDir string) (*Job, error) {
	videoPath = strings.TrimSpace(videoPath)
	if videoPath == "" {
		return nil, errors.New("enqueue: video path is required")
	}
	now := formatTime(time.Now())
	id := uuid.NewString()

	if _, err := s.execWithRetry(
		ctx,
		`INSERT INTO jobs (id, video_path, output_dir, status, progress, created_at, updated_at)
         VALUES (?, ?, ?, ?, 0, ?, ?)`,
		id,
		videoPath,
		outputDir,
		StatusQueued,
		now,
		now,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	return s.Get(ctx, id)
}

// Get returns the job with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// FindByPrefix resolves a job from a unique id prefix, as typed by operators.
func (s *Store) FindByPrefix(ctx context.Context, prefix string) (*Job, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT `+jobColumns+` FROM jobs WHERE id LIKE ? ORDER BY seq LIMIT 2`,
		strings.ReplaceAll(prefix, "%", "")+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("find job: %w", err)
	}
	defer rows.Close()

	var matches []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, prefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("job id prefix %q is ambiguous", prefix)
	}
}

// List returns jobs in submission order, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Delete removes terminal jobs (acknowledge). Jobs still queued or processing are kept.
func (s *Store) Delete(ctx context.Context, ids ...string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]any, 0, len(ids)+2)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, StatusCompleted, StatusFailed)
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE id IN (`+makePlaceholders(len(ids))+`) AND status IN (?, ?)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("delete jobs: %w", err)
	}
	return res.RowsAffected()
}

// ClearTerminal removes every completed and failed job.
func (s *Store) ClearTerminal(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status IN (?, ?)`, StatusCompleted, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear jobs: %w", err)
	}
	return res.RowsAffected()
}
