package pipeline_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"easel/internal/pipeline"
	"easel/internal/services"
)

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func testRunner(stage string, policy pipeline.Policy, sleeper *sleepRecorder) pipeline.Runner {
	policy.Jitter = func() float64 { return 1.0 }
	r := pipeline.Runner{Stage: stage, Policy: policy}
	if sleeper != nil {
		r.Sleep = sleeper.sleep
	}
	return r
}

func TestExecuteRetriesTransientUntilSuccess(t *testing.T) {
	sleeper := &sleepRecorder{}
	runner := testRunner("scrape", pipeline.NewPolicy(4, time.Second, 30*time.Second), sleeper)

	var attempts []pipeline.Attempt
	result := pipeline.Execute(context.Background(), runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			attempts = append(attempts, attempt)
			if attempt.Number < 3 {
				return "", services.Wrap(services.ErrTransient, "scrape", "fetch", "connection reset", nil)
			}
			return "material", nil
		})

	if !result.Success() || result.Value() != "material" {
		t.Fatalf("expected success, got %#v err=%v", result.Outcome(), result.Err())
	}
	if result.Attempts() != 3 {
		t.Fatalf("expected 3 attempts, got %d", result.Attempts())
	}
	for i, attempt := range attempts {
		if attempt.Number != i+1 || attempt.Strict {
			t.Fatalf("unexpected attempt %d: %#v", i, attempt)
		}
	}
	waits := sleeper.recorded()
	if len(waits) != 2 || waits[0] != time.Second || waits[1] != 2*time.Second {
		t.Fatalf("unexpected backoff waits: %v", waits)
	}
}

func TestExecuteExhaustsTransientBudget(t *testing.T) {
	sleeper := &sleepRecorder{}
	runner := testRunner("publish", pipeline.NewPolicy(3, time.Millisecond, 10*time.Millisecond), sleeper)

	calls := 0
	result := pipeline.Execute(context.Background(), runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			calls++
			return "", services.Wrap(services.ErrTransient, "publish", "upload", "gateway timeout", nil)
		})

	if result.Outcome() != pipeline.OutcomeFatal {
		t.Fatalf("expected fatal after exhaustion, got %v", result.Outcome())
	}
	if calls != 3 || result.Attempts() != 3 {
		t.Fatalf("expected exactly 3 calls, got calls=%d attempts=%d", calls, result.Attempts())
	}
	if len(sleeper.recorded()) != 2 {
		t.Fatalf("expected 2 waits, got %v", sleeper.recorded())
	}
	if !errors.Is(result.Err(), services.ErrTransient) {
		t.Fatalf("expected transient error surfaced, got %v", result.Err())
	}
}

func TestExecuteFatalStopsImmediately(t *testing.T) {
	sleeper := &sleepRecorder{}
	runner := testRunner("generate", pipeline.NewPolicy(3, time.Millisecond, 10*time.Millisecond), sleeper)

	calls := 0
	result := pipeline.Execute(context.Background(), runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			calls++
			return "", services.Wrap(services.ErrAuth, "generate", "complete", "invalid api key", nil)
		})

	if result.Outcome() != pipeline.OutcomeFatal || calls != 1 {
		t.Fatalf("expected single fatal attempt, got outcome=%v calls=%d", result.Outcome(), calls)
	}
	if len(sleeper.recorded()) != 0 {
		t.Fatalf("fatal failures must not wait: %v", sleeper.recorded())
	}
}

func TestExecuteValidationSetsStrictExactlyOnce(t *testing.T) {
	sleeper := &sleepRecorder{}
	runner := testRunner("generate", pipeline.NewPolicy(3, time.Millisecond, 10*time.Millisecond), sleeper)

	var strictFlags []bool
	result := pipeline.Execute(context.Background(), runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			strictFlags = append(strictFlags, attempt.Strict)
			if attempt.Number == 1 {
				return "", services.Wrap(services.ErrValidation, "generate", "decode", "missing caption", nil)
			}
			return "content", nil
		})

	if !result.Success() || result.Attempts() != 2 {
		t.Fatalf("expected strict retry success, got %v attempts=%d", result.Outcome(), result.Attempts())
	}
	if len(strictFlags) != 2 || strictFlags[0] || !strictFlags[1] {
		t.Fatalf("expected strict only on second attempt, got %v", strictFlags)
	}
	if len(sleeper.recorded()) != 0 {
		t.Fatalf("validation retry must be immediate, got waits %v", sleeper.recorded())
	}
}

func TestExecuteSecondValidationEscalates(t *testing.T) {
	runner := testRunner("render", pipeline.NewPolicy(3, time.Millisecond, 10*time.Millisecond), &sleepRecorder{})

	calls := 0
	result := pipeline.Execute(context.Background(), runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			calls++
			return "", services.Wrap(services.ErrValidation, "render", "layout", "body overflows canvas", nil)
		})

	if result.Outcome() != pipeline.OutcomeFatal {
		t.Fatalf("expected fatal after second validation failure, got %v", result.Outcome())
	}
	if calls != 2 {
		t.Fatalf("validation gets one strict retry, got %d calls", calls)
	}
}

func TestExecuteHonorsRetryAfterHint(t *testing.T) {
	sleeper := &sleepRecorder{}
	runner := testRunner("publish", pipeline.NewPolicy(4, time.Second, 30*time.Second), sleeper)

	result := pipeline.Execute(context.Background(), runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			if attempt.Number == 1 {
				err := services.Wrap(services.ErrRateLimited, "publish", "media", "429", nil)
				return "", services.WithRetryAfter(err, 1500*time.Millisecond)
			}
			return "post-1", nil
		})

	if !result.Success() {
		t.Fatalf("expected success, got %v", result.Err())
	}
	waits := sleeper.recorded()
	if len(waits) != 1 || waits[0] != 1500*time.Millisecond {
		t.Fatalf("expected the server hint to set the wait, got %v", waits)
	}
}

func TestExecuteCancelledBeforeFirstAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	runner := testRunner("scrape", pipeline.NewPolicy(4, time.Second, 30*time.Second), &sleepRecorder{})
	result := pipeline.Execute(ctx, runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			calls++
			return "", nil
		})

	if result.Outcome() != pipeline.OutcomeCancelled || calls != 0 {
		t.Fatalf("expected cancellation before any attempt, got outcome=%v calls=%d", result.Outcome(), calls)
	}
	if result.Attempts() != 0 {
		t.Fatalf("expected zero attempts, got %d", result.Attempts())
	}
}

func TestExecuteCancelDuringWaitStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	// Default timer-based sleeper; the 5s backoff must end early on cancel.
	runner := pipeline.Runner{Stage: "scrape", Policy: pipeline.NewPolicy(4, 5*time.Second, 30*time.Second)}
	runner.Policy.Jitter = func() float64 { return 1.0 }

	timer := time.AfterFunc(30*time.Millisecond, cancel)
	defer timer.Stop()

	start := time.Now()
	result := pipeline.Execute(ctx, runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			calls++
			return "", services.Wrap(services.ErrTransient, "scrape", "fetch", "tls handshake timeout", nil)
		})
	elapsed := time.Since(start)

	if result.Outcome() != pipeline.OutcomeCancelled {
		t.Fatalf("expected cancelled, got %v err=%v", result.Outcome(), result.Err())
	}
	if calls != 1 {
		t.Fatalf("expected no further attempts after cancel, got %d calls", calls)
	}
	if elapsed > 2*time.Second {
		t.Fatalf("cancel during wait took %s; the backoff was not interrupted", elapsed)
	}
}

func TestExecutePassesCancellationFromAttempt(t *testing.T) {
	runner := testRunner("generate", pipeline.NewPolicy(3, time.Millisecond, 10*time.Millisecond), &sleepRecorder{})

	result := pipeline.Execute(context.Background(), runner,
		func(ctx context.Context, attempt pipeline.Attempt) (string, error) {
			return "", context.Canceled
		})

	if result.Outcome() != pipeline.OutcomeCancelled || result.Attempts() != 1 {
		t.Fatalf("expected cancelled after one attempt, got %v attempts=%d", result.Outcome(), result.Attempts())
	}
}
