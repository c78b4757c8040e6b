package ledger

import (
	"database/sql"
	"strings"
	"time"
)

const topicColumns = `id, slug, source_url, status, failure_stage, error_message, run_id, attempts, created_at, updated_at, claimed_at`

func scanTopic(scanner interface{ Scan(...any) error }) (*Topic, error) {
	var (
		topic     Topic
		status    string
		sourceURL sql.NullString
		stage     sql.NullString
		message   sql.NullString
		runID     sql.NullString
		created   string
		updated   string
		claimed   sql.NullString
	)
	if err := scanner.Scan(
		&topic.ID,
		&topic.Slug,
		&sourceURL,
		&status,
		&stage,
		&message,
		&runID,
		&topic.Attempts,
		&created,
		&updated,
		&claimed,
	); err != nil {
		return nil, err
	}
	topic.Status = Status(status)
	topic.SourceURL = sourceURL.String
	topic.FailureStage = stage.String
	topic.ErrorMessage = message.String
	topic.RunID = runID.String
	topic.CreatedAt = parseTimeString(created)
	topic.UpdatedAt = parseTimeString(updated)
	if claimed.Valid {
		ts := parseTimeString(claimed.String)
		topic.ClaimedAt = &ts
	}
	return &topic, nil
}

func nullableString(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func parseTimeString(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
		return ts
	}
	if ts, err := time.Parse("2006-01-02 15:04:05", v); err == nil {
		return ts
	}
	return time.Time{}
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
