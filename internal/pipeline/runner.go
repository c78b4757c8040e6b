package pipeline

import (
	"context"
	"log/slog"
	"time"

	"easel/internal/logging"
	"easel/internal/services"
)

// Runner drives one stage call through its retry policy, producing exactly
// one Result. The runner performs no I/O beyond timing the waits.
type Runner struct {
	Stage  string
	Policy Policy
	Logger *slog.Logger

	// Sleep waits out a backoff window and returns early with the context
	// error on cancellation. Nil selects the timer-based default; tests
	// inject a recording implementation.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Execute runs op under the runner's policy. Cancellation is checked before
// every attempt and observed during every wait.
func Execute[T any](ctx context.Context, r Runner, op func(ctx context.Context, attempt Attempt) (T, error)) Result[T] {
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = sleepWithContext
	}
	maxAttempts := r.Policy.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	strict := false
	strictUsed := false
	var last Result[T]
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Aborted[T](err, attempt-1)
		}

		value, err := op(ctx, Attempt{Number: attempt, Strict: strict})
		if err == nil {
			return Succeeded(value, attempt)
		}

		class := services.Classify(err)
		if class == services.ClassCancelled {
			return Aborted[T](err, attempt)
		}

		hint, _ := services.RetryAfterHint(err)
		decision := r.Policy.Decide(class, attempt, strictUsed, hint)
		if decision.Kind == DecisionEscalate {
			return Fatal[T](err, attempt)
		}
		last = Retryable[T](err, attempt)

		if class == services.ClassValidation {
			strict = true
			strictUsed = true
		}

		logger.Warn("stage attempt failed; retrying",
			logging.String(logging.FieldStage, r.Stage),
			logging.Int(logging.FieldAttempt, attempt),
			logging.String(logging.FieldErrorKind, string(class)),
			logging.Duration("wait", decision.Wait),
			logging.Error(err),
		)

		if decision.Wait > 0 {
			if err := sleep(ctx, decision.Wait); err != nil {
				return Aborted[T](err, attempt)
			}
		}
	}

	// Unreachable while Decide escalates at the attempt ceiling; kept so the
	// loop cannot fall through silently.
	return Fatal[T](last.Err(), maxAttempts)
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
