package pipeline

import (
	"math/rand"
	"time"

	"easel/internal/config"
	"easel/internal/services"
)

// DecisionKind says whether the policy waits for another attempt or gives up.
type DecisionKind int

const (
	DecisionWait DecisionKind = iota
	DecisionEscalate
)

// Decision is the policy's answer for one failed attempt.
type Decision struct {
	Kind DecisionKind
	Wait time.Duration
}

// Policy computes retry behavior for one stage. The zero value escalates
// immediately; build policies with NewPolicy or PoliciesFromConfig.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration

	// Jitter returns the factor applied to the capped delay. Nil selects a
	// uniform draw from [0.8, 1.2). Tests inject a fixed source.
	Jitter func() float64
}

// NewPolicy builds a policy with the standard jitter source.
func NewPolicy(maxAttempts int, base, max time.Duration) Policy {
	return Policy{MaxAttempts: maxAttempts, BaseDelay: base, MaxDelay: max}
}

// Policies bundles the per-stage retry policies.
type Policies struct {
	Scrape   Policy
	Generate Policy
	Render   Policy
	Publish  Policy
}

// PoliciesFromConfig derives the per-stage policies from the [retry] section.
func PoliciesFromConfig(cfg *config.Config) Policies {
	base := time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond
	max := time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond
	return Policies{
		Scrape:   NewPolicy(cfg.Retry.ScrapeAttempts, base, max),
		Generate: NewPolicy(cfg.Retry.GenerateAttempts, base, max),
		Render:   NewPolicy(cfg.Retry.RenderAttempts, base, max),
		Publish:  NewPolicy(cfg.Retry.PublishAttempts, base, max),
	}
}

// ForStage returns the policy for a stage name, defaulting to the scrape
// policy for unknown names.
func (p Policies) ForStage(stage string) Policy {
	switch stage {
	case StageGenerate:
		return p.Generate
	case StageRender:
		return p.Render
	case StagePublish:
		return p.Publish
	default:
		return p.Scrape
	}
}

// Decide maps a classified failure to the action after the given 1-based
// attempt. strictUsed reports whether the single mutated-input retry for
// validation failures has already been spent; hint carries a server
// retry-after value when the failure was rate-limited.
func (p Policy) Decide(class services.FailureClass, attempt int, strictUsed bool, hint time.Duration) Decision {
	switch class {
	case services.ClassValidation:
		// Validation is not transient: one strict retry, then escalate.
		if strictUsed || attempt >= p.MaxAttempts {
			return Decision{Kind: DecisionEscalate}
		}
		return Decision{Kind: DecisionWait}
	case services.ClassTransient, services.ClassRateLimited:
		if attempt >= p.MaxAttempts {
			return Decision{Kind: DecisionEscalate}
		}
		if class == services.ClassRateLimited && hint > 0 {
			return Decision{Kind: DecisionWait, Wait: hint}
		}
		return Decision{Kind: DecisionWait, Wait: p.Delay(attempt)}
	default:
		return Decision{Kind: DecisionEscalate}
	}
}

// Delay computes the backoff after a failed 1-based attempt: the base delay
// doubled per attempt, capped at the max delay, with jitter applied to the
// capped value.
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	max := p.MaxDelay
	if max <= 0 {
		max = 30 * time.Second
	}

	delay := base
	for i := 1; i < attempt && delay < max; i++ {
		delay *= 2
	}
	if delay > max {
		delay = max
	}

	jitter := p.Jitter
	if jitter == nil {
		jitter = defaultJitter
	}
	return time.Duration(float64(delay) * jitter())
}

func defaultJitter() float64 {
	return 0.8 + 0.4*rand.Float64()
}
