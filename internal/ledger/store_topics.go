package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Enqueue adds a topic to the queue. Re-enqueueing an existing topic is
// idempotent: failed and skipped topics reset to pending, anything else is
// returned unchanged.
func (s *Store) Enqueue(ctx context.Context, slug, sourceURL string) (*Topic, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, errors.New("topic slug is required")
	}

	ctx = ensureContext(ctx)
	existing, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if existing != nil {
		if existing.Status != StatusFailed && existing.Status != StatusSkipped {
			return existing, nil
		}
		err := s.execWithoutResultRetry(ctx, `
			UPDATE topics
			SET status = ?, failure_stage = NULL, error_message = NULL, run_id = NULL, claimed_at = NULL, updated_at = ?
			WHERE id = ?`,
			string(StatusPending), now, existing.ID)
		if err != nil {
			return nil, fmt.Errorf("requeue topic: %w", err)
		}
		return s.GetBySlug(ctx, slug)
	}

	res, err := s.execWithRetry(ctx, `
		INSERT INTO topics (slug, source_url, status, attempts, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)`,
		slug, nullableString(sourceURL), string(StatusPending), now, now)
	if err != nil {
		// Lost an insert race with another process; the row exists now.
		if isUniqueViolation(err) {
			return s.GetBySlug(ctx, slug)
		}
		return nil, fmt.Errorf("insert topic: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("topic id: %w", err)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches a topic by row id. Missing topics return nil without error.
func (s *Store) GetByID(ctx context.Context, id int64) (*Topic, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE id = ?`, id)
	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}
	return topic, nil
}

// GetBySlug fetches a topic by slug. Missing topics return nil without error.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*Topic, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+topicColumns+` FROM topics WHERE slug = ?`, slug)
	topic, err := scanTopic(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load topic: %w", err)
	}
	return topic, nil
}

// ClaimNext claims the oldest pending topic for a run and returns it, or nil
// when the queue has no pending work. The claim runs inside an immediate
// transaction so only one of several competing workers wins a given topic.
func (s *Store) ClaimNext(ctx context.Context, runID string) (*Topic, error) {
	ctx = ensureContext(ctx)

	var claimed *Topic
	err := retryOnBusy(ctx, func() error {
		claimed = nil
		conn, err := s.db.Conn(ctx)
		if err != nil {
			return err
		}
		defer conn.Close()

		if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
			return err
		}
		committed := false
		defer func() {
			if !committed {
				_, _ = conn.ExecContext(ctx, "ROLLBACK")
			}
		}()

		row := conn.QueryRowContext(ctx, `
			SELECT `+topicColumns+` FROM topics
			WHERE status = ?
			ORDER BY created_at ASC, id ASC
			LIMIT 1`, string(StatusPending))
		topic, err := scanTopic(row)
		if errors.Is(err, sql.ErrNoRows) {
			if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
				return err
			}
			committed = true
			return nil
		}
		if err != nil {
			return err
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		if _, err := conn.ExecContext(ctx, `
			UPDATE topics
			SET status = ?, run_id = ?, attempts = attempts + 1, failure_stage = NULL, error_message = NULL, claimed_at = ?, updated_at = ?
			WHERE id = ?`,
			string(StatusProcessing), runID, now, now, topic.ID); err != nil {
			return err
		}
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return err
		}
		committed = true

		claimed, err = s.GetByID(ctx, topic.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("claim next topic: %w", err)
	}
	return claimed, nil
}

// MarkOutcome records the terminal state of a run for the named topic.
func (s *Store) MarkOutcome(ctx context.Context, slug string, status Status, failureStage, errorMessage string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		UPDATE topics
		SET status = ?, failure_stage = ?, error_message = ?, updated_at = ?
		WHERE slug = ?`,
		string(status), nullableString(failureStage), nullableString(errorMessage), now, slug)
	if err != nil {
		return fmt.Errorf("mark topic outcome: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark topic outcome: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("mark topic outcome: topic %q not queued", slug)
	}
	return nil
}

// Requeue returns a claimed topic to pending, clearing its run state. Used
// when a run is cancelled rather than failed.
func (s *Store) Requeue(ctx context.Context, slug string) error {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	err := s.execWithoutResultRetry(ctx, `
		UPDATE topics
		SET status = ?, failure_stage = NULL, error_message = NULL, run_id = NULL, claimed_at = NULL, updated_at = ?
		WHERE slug = ?`,
		string(StatusPending), now, slug)
	if err != nil {
		return fmt.Errorf("requeue topic: %w", err)
	}
	return nil
}

// List returns topics filtered by status, or all topics when no statuses are
// given, ordered oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Topic, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + topicColumns + ` FROM topics`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()

	var topics []*Topic
	for rows.Next() {
		topic, err := scanTopic(rows)
		if err != nil {
			return nil, fmt.Errorf("scan topic: %w", err)
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// ResetStuckProcessing returns topics stranded in processing to pending.
// A topic is stranded when its claim is older than the cutoff, which covers
// daemon crashes between claim and outcome. A zero duration resets every
// processing topic.
func (s *Store) ResetStuckProcessing(ctx context.Context, olderThan time.Duration) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan).Format(time.RFC3339Nano)
	res, err := s.execWithRetry(ctx, `
		UPDATE topics
		SET status = ?, run_id = NULL, claimed_at = NULL, updated_at = ?
		WHERE status = ? AND (claimed_at IS NULL OR claimed_at <= ?)`,
		string(StatusPending), now.Format(time.RFC3339Nano), string(StatusProcessing), cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stuck topics: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed topics back to pending. With no slugs it retries
// every failed topic; otherwise only the named ones. Unrecorded topics are
// never retried here because their posts already exist on the platform.
func (s *Store) RetryFailed(ctx context.Context, slugs ...string) (int64, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `
		UPDATE topics
		SET status = ?, failure_stage = NULL, error_message = NULL, run_id = NULL, claimed_at = NULL, updated_at = ?
		WHERE status = ?`
	args := []any{string(StatusPending), now, string(StatusFailed)}
	if len(slugs) > 0 {
		query += ` AND slug IN (` + makePlaceholders(len(slugs)) + `)`
		for _, slug := range slugs {
			args = append(args, slug)
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed topics: %w", err)
	}
	return res.RowsAffected()
}

// Remove deletes a topic from the queue and reports whether a row was
// removed. Publish records are never removed here; they outlive queue
// entries.
func (s *Store) Remove(ctx context.Context, slug string) (bool, error) {
	res, err := s.execWithRetry(ensureContext(ctx), `DELETE FROM topics WHERE slug = ?`, slug)
	if err != nil {
		return false, fmt.Errorf("remove topic: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove topic: %w", err)
	}
	return affected > 0, nil
}

// Clear deletes topics in the given statuses, or every topic when none are
// given. Publish records are retained either way.
func (s *Store) Clear(ctx context.Context, statuses ...Status) (int64, error) {
	ctx = ensureContext(ctx)
	query := `DELETE FROM topics`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, string(status))
		}
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("clear topics: %w", err)
	}
	return res.RowsAffected()
}
