package pipeline

// Outcome tags a stage result.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetryable
	OutcomeFatal
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetryable:
		return "retryable"
	case OutcomeFatal:
		return "fatal"
	case OutcomeCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Result is the outcome of one stage execution. Results are built by the
// constructors below and never mutated afterwards; only success, fatal, and
// cancelled results cross the stage boundary.
type Result[T any] struct {
	outcome  Outcome
	value    T
	err      error
	attempts int
}

// Succeeded wraps a stage artifact with the attempt count that produced it.
func Succeeded[T any](value T, attempts int) Result[T] {
	return Result[T]{outcome: OutcomeSuccess, value: value, attempts: attempts}
}

// Retryable marks a failed attempt the policy may run again.
func Retryable[T any](err error, attempts int) Result[T] {
	return Result[T]{outcome: OutcomeRetryable, err: err, attempts: attempts}
}

// Fatal marks a terminal stage failure.
func Fatal[T any](err error, attempts int) Result[T] {
	return Result[T]{outcome: OutcomeFatal, err: err, attempts: attempts}
}

// Aborted marks a cancellation observed during the stage.
func Aborted[T any](err error, attempts int) Result[T] {
	return Result[T]{outcome: OutcomeCancelled, err: err, attempts: attempts}
}

// Outcome returns the result tag.
func (r Result[T]) Outcome() Outcome { return r.outcome }

// Success reports whether the stage produced an artifact.
func (r Result[T]) Success() bool { return r.outcome == OutcomeSuccess }

// Failed reports whether the stage ended in a failure tag.
func (r Result[T]) Failed() bool {
	return r.outcome == OutcomeRetryable || r.outcome == OutcomeFatal
}

// Value returns the artifact; meaningful only when Success reports true.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure, nil on success.
func (r Result[T]) Err() error { return r.err }

// Attempts returns how many attempts the stage consumed.
func (r Result[T]) Attempts() int { return r.attempts }
