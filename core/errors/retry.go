package errors

import (
	"context"
	"errors"
	"time"
)

// RetryPolicy defines the retry behavior for one error kind.
type RetryPolicy struct {
	// MaxAttempts is the maximum number of retry attempts (0 means no retry).
	MaxAttempts int `yaml:"max_attempts"`

	// InitialDelay is the starting backoff duration.
	InitialDelay time.Duration `yaml:"initial_delay"`

	// MaxDelay is the maximum backoff duration.
	MaxDelay time.Duration `yaml:"max_delay"`

	// Multiplier is the backoff multiplier (default: 2.0).
	Multiplier float64 `yaml:"multiplier"`

	// UseRetryAfter indicates whether to respect a server-suggested delay.
	UseRetryAfter bool `yaml:"use_retry_after"`

	// JitterPercent is the jitter percentage (default: 0.1).
	JitterPercent float64 `yaml:"jitter_percent"`
}

// DefaultRetryPolicies returns the default retry policy per error kind.
// Validation, circuit-open, and unsupported-format failures never retry.
func DefaultRetryPolicies() map[Kind]*RetryPolicy {
	transient := &RetryPolicy{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      5 * time.Second,
		Multiplier:    2.0,
		JitterPercent: 0.1,
	}

	return map[Kind]*RetryPolicy{
		KindNetwork:    transient,
		KindTimeout:    transient,
		KindExtraction: {
			MaxAttempts:   2,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			Multiplier:    2.0,
			JitterPercent: 0.1,
		},
		KindRateLimit: {
			MaxAttempts:   5,
			InitialDelay:  1 * time.Second,
			MaxDelay:      60 * time.Second,
			Multiplier:    2.0,
			UseRetryAfter: true,
			JitterPercent: 0.1,
		},
	}
}

// noRetryPolicy is returned for kinds with no configured policy.
var noRetryPolicy = &RetryPolicy{}

// RetryExecutor runs operations with retry behavior selected by the kind of
// the error they return.
type RetryExecutor struct {
	policies map[Kind]*RetryPolicy
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewRetryExecutor creates a RetryExecutor with the given policies, falling
// back to defaults when nil.
func NewRetryExecutor(policies map[Kind]*RetryPolicy) *RetryExecutor {
	if policies == nil {
		policies = DefaultRetryPolicies()
	}
	return &RetryExecutor{
		policies: policies,
		sleep:    sleepContext,
	}
}

// WithSleep replaces the executor's wait function, for tests.
func (e *RetryExecutor) WithSleep(sleep func(ctx context.Context, d time.Duration) error) *RetryExecutor {
	e.sleep = sleep
	return e
}

// Execute runs fn, retrying per the policy of each returned error's kind.
// Returns the last error when all attempts fail.
func (e *RetryExecutor) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		policy := e.policyFor(lastErr)
		if attempt >= policy.MaxAttempts {
			return lastErr
		}

		delay := e.computeDelay(lastErr, attempt, policy)
		if err := e.sleep(ctx, delay); err != nil {
			return lastErr
		}
	}
}

// policyFor selects the retry policy for the error's kind.
func (e *RetryExecutor) policyFor(err error) *RetryPolicy {
	if policy, ok := e.policies[GetKind(err)]; ok {
		return policy
	}
	return noRetryPolicy
}

// computeDelay calculates the delay before the next attempt, preferring a
// server-suggested delay when the policy allows it.
func (e *RetryExecutor) computeDelay(err error, attempt int, policy *RetryPolicy) time.Duration {
	if policy.UseRetryAfter {
		var pe *PipelineError
		if errors.As(err, &pe) && pe.RetryAfter > 0 {
			return pe.RetryAfter
		}
	}

	delay := CalculateDelay(attempt, policy)
	return AddJitter(delay, policy.JitterPercent)
}

// sleepContext waits for the delay or returns early on context cancellation.
func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
