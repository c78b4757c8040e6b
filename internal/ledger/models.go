package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Status tracks a topic through the queue lifecycle.
type Status string

const (
	// StatusPending marks topics waiting for a pipeline run.
	StatusPending Status = "pending"
	// StatusProcessing marks topics claimed by an active run.
	StatusProcessing Status = "processing"
	// StatusPublished marks topics whose run completed and was recorded.
	StatusPublished Status = "published"
	// StatusFailed marks topics whose run exhausted a stage.
	StatusFailed Status = "failed"
	// StatusSkipped marks topics dropped because a publish record already existed.
	StatusSkipped Status = "skipped"
	// StatusUnrecorded marks topics that reached the platform but whose
	// publish record could not be written. Operators reconcile these by hand;
	// retrying would post the topic twice.
	StatusUnrecorded Status = "unrecorded"
)

// AllStatuses returns every queue status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPending,
		StatusProcessing,
		StatusPublished,
		StatusFailed,
		StatusSkipped,
		StatusUnrecorded,
	}
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(raw string) (Status, bool) {
	candidate := Status(strings.ToLower(strings.TrimSpace(raw)))
	for _, status := range AllStatuses() {
		if status == candidate {
			return status, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status will not change without operator action.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusPublished, StatusFailed, StatusSkipped, StatusUnrecorded:
		return true
	}
	return false
}

// Topic is one queued pipeline subject.
type Topic struct {
	ID           int64
	Slug         string
	SourceURL    string
	Status       Status
	FailureStage string
	ErrorMessage string
	RunID        string
	Attempts     int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ClaimedAt    *time.Time
}

// PublishRecord is the durable proof that a topic reached the platform.
// At most one record exists per topic; the topic_id primary key is the
// duplicate-publish guard.
type PublishRecord struct {
	TopicID     string
	RunID       string
	PostID      string
	Permalink   string
	SlideCount  int
	PublishedAt time.Time
}

// Stats summarizes queue composition for status displays.
type Stats struct {
	Total    int
	ByStatus map[Status]int
	Records  int
}

// DatabaseHealth captures the result of a ledger integrity check.
type DatabaseHealth struct {
	Healthy   bool
	Issues    []string
	CheckedAt time.Time
}

// Summary renders the health result as a single line for logs and status output.
func (h DatabaseHealth) Summary() string {
	if h.Healthy {
		return "ledger database healthy"
	}
	return fmt.Sprintf("ledger database unhealthy: %s", strings.Join(h.Issues, "; "))
}
