package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a transition targets a job that is not
// in the expected state.
var ErrInvalidTransition = errors.New("invalid job transition")

// ClaimNext atomically moves the oldest queued job to processing and returns it.
// It returns (nil, nil) when nothing is queued.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	ctx = ensureContext(ctx)
	now := formatTime(time.Now())
	var id string
	err := retryOnBusy(ctx, func() error {
		return s.db.QueryRowContext(ctx,
			`UPDATE jobs
             SET status = ?, started_at = ?, last_heartbeat = ?, updated_at = ?,
                 attempts = attempts + 1, progress = 0, current_step = NULL
             WHERE seq = (SELECT seq FROM jobs WHERE status = ? ORDER BY seq LIMIT 1)
             RETURNING id`,
			StatusProcessing, now, now, now, StatusQueued,
		).Scan(&id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return s.Get(ctx, id)
}

// UpdateProgress records progress (clamped to 0-100) and the current step of a
// processing job. The heartbeat is refreshed as a side effect.
func (s *Store) UpdateProgress(ctx context.Context, id string, progress float64, step string) error {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET progress = ?, current_step = ?, last_heartbeat = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		progress, nullableString(step), now, now, id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return expectOneRow(res, id, StatusProcessing)
}

// Heartbeat refreshes the liveness timestamp of a processing job.
func (s *Store) Heartbeat(ctx context.Context, id string) error {
	now := formatTime(time.Now())
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ? AND status = ?`,
		now, now, id, StatusProcessing,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// Complete marks a processing job completed with its serialized result.
func (s *Store) Complete(ctx context.Context, id, resultJSON string) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, progress = 100, current_step = 'completed', result_json = ?,
             error_message = NULL, error_code = NULL, error_suggestion = NULL,
             finished_at = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted, nullableString(resultJSON), now, now, id, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return expectOneRow(res, id, StatusProcessing)
}

// Fail marks a queued or processing job failed with the classified error details.
func (s *Store) Fail(ctx context.Context, id string, details FailureDetails) error {
	now := formatTime(time.Now())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, error_code = ?, error_suggestion = ?,
             finished_at = ?, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed,
		nullableString(details.Message),
		nullableString(details.Code),
		nullableString(details.Suggestion),
		now, now, id, StatusQueued, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return expectOneRow(res, id, StatusProcessing)
}

// Retry re-queues failed jobs as a new attempt. With no ids every failed job is re-queued.
func (s *Store) Retry(ctx context.Context, ids ...string) (int64, error) {
	query := `UPDATE jobs
        SET status = ?, progress = 0, current_step = NULL, error_message = NULL,
            error_code = NULL, error_suggestion = NULL, started_at = NULL,
            finished_at = NULL, last_heartbeat = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusQueued, formatTime(time.Now()), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + makePlaceholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale re-queues processing jobs whose heartbeat is older than cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, progress = 0, current_step = 'Reclaimed from stale processing',
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		StatusQueued, formatTime(time.Now()), StatusProcessing, formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// ResetProcessing re-queues every processing job, used when a single worker
// restarts and knows no other process owns them.
func (s *Store) ResetProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, progress = 0, current_step = 'Reset after restart',
             last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		StatusQueued, formatTime(time.Now()), StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset processing jobs: %w", err)
	}
	return res.RowsAffected()
}

func expectOneRow(res sql.Result, id string, want Status) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: job %s is not %s", ErrInvalidTransition, id, want)
	}
	return nil
}
