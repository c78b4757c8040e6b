package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const recordColumns = `topic_id, run_id, post_id, permalink, slide_count, published_at`

// Has reports whether a publish record exists for the topic.
func (s *Store) Has(ctx context.Context, topicID string) (bool, error) {
	ctx = ensureContext(ctx)
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM publish_records WHERE topic_id = ?`, topicID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check publish record: %w", err)
	}
	return count > 0, nil
}

// Append durably records a completed publish. Appending a second record for
// the same topic fails with ErrDuplicate.
func (s *Store) Append(ctx context.Context, record *PublishRecord) error {
	if record == nil {
		return errors.New("publish record is nil")
	}
	if strings.TrimSpace(record.TopicID) == "" {
		return errors.New("publish record requires a topic id")
	}
	if strings.TrimSpace(record.PostID) == "" {
		return errors.New("publish record requires a post id")
	}
	if record.PublishedAt.IsZero() {
		record.PublishedAt = time.Now().UTC()
	}

	err := s.execWithoutResultRetry(ensureContext(ctx), `
		INSERT INTO publish_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		record.TopicID,
		record.RunID,
		record.PostID,
		record.Permalink,
		record.SlideCount,
		record.PublishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicate, record.TopicID)
		}
		return fmt.Errorf("append publish record: %w", err)
	}
	return nil
}

// Record returns the publish record for a topic, or nil when none exists.
func (s *Store) Record(ctx context.Context, topicID string) (*PublishRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM publish_records WHERE topic_id = ?`, topicID)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load publish record: %w", err)
	}
	return record, nil
}

// Records lists every publish record, most recent first.
func (s *Store) Records(ctx context.Context) ([]*PublishRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+recordColumns+` FROM publish_records ORDER BY published_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list publish records: %w", err)
	}
	defer rows.Close()

	var records []*PublishRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan publish record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func scanRecord(scanner interface{ Scan(...any) error }) (*PublishRecord, error) {
	var (
		record    PublishRecord
		published string
	)
	if err := scanner.Scan(
		&record.TopicID,
		&record.RunID,
		&record.PostID,
		&record.Permalink,
		&record.SlideCount,
		&published,
	); err != nil {
		return nil, err
	}
	record.PublishedAt = parseTimeString(published)
	return &record, nil
}
