package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"
)

var (
	ErrTransient     = errors.New("transient failure")
	ErrRateLimited   = errors.New("rate limited")
	ErrValidation    = errors.New("validation error")
	ErrAuth          = errors.New("authentication error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// FailureClass groups stage errors by how the retry policy should treat them.
type FailureClass string

const (
	ClassTransient   FailureClass = "transient"
	ClassRateLimited FailureClass = "rate-limited"
	ClassValidation  FailureClass = "validation"
	ClassFatal       FailureClass = "fatal"
	ClassCancelled   FailureClass = "cancelled"
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a stage error to the failure class the retry policy consumes.
// Rate limits and validation failures take precedence over the generic
// transient marker; unrecognized errors (auth, configuration, not-found,
// anything unmarked) are fatal.
func Classify(err error) FailureClass {
	switch {
	case errors.Is(err, context.Canceled):
		return ClassCancelled
	case errors.Is(err, ErrRateLimited):
		return ClassRateLimited
	case errors.Is(err, ErrValidation):
		return ClassValidation
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return ClassTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}
	return ClassFatal
}

// RetryAfterError attaches a server-provided retry-after hint to a rate-limit
// failure so the retry policy can honor it over the computed backoff.
type RetryAfterError struct {
	Hint time.Duration
	Err  error
}

func (e *RetryAfterError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%v (retry after %s)", e.Err, e.Hint)
	}
	return fmt.Sprintf("retry after %s", e.Hint)
}

func (e *RetryAfterError) Unwrap() error { return e.Err }

// WithRetryAfter tags err with a retry-after hint. A zero or negative hint
// returns err unchanged.
func WithRetryAfter(err error, hint time.Duration) error {
	if hint <= 0 {
		return err
	}
	return &RetryAfterError{Hint: hint, Err: err}
}

// RetryAfterHint extracts a retry-after hint from anywhere in err's chain.
func RetryAfterHint(err error) (time.Duration, bool) {
	var ra *RetryAfterError
	if errors.As(err, &ra) && ra.Hint > 0 {
		return ra.Hint, true
	}
	return 0, false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
