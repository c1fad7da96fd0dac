// Package resilience wraps outbound provider calls with timeouts, bounded
// exponential retry, and rate-limit pacing. It is provider-agnostic; the
// adapters supply the retryability predicates and pacing state.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/jensroth-git/unifiedai/llm"
)

const (
	// DefaultRetryDelay is the base delay before the first retry.
	DefaultRetryDelay = 250 * time.Millisecond
	// DefaultBackoffFactor is the multiplier applied per attempt.
	DefaultBackoffFactor = 2.0
	// DefaultMaxInterval caps the inter-retry delay.
	DefaultMaxInterval = 5 * time.Minute
)

// Policy bounds a single resilient operation.
type Policy struct {
	// RequestTimeout bounds each individual attempt. Zero disables the
	// timer entirely.
	RequestTimeout time.Duration

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// RetryDelay is the base delay; defaults to DefaultRetryDelay.
	RetryDelay time.Duration

	// BackoffFactor multiplies the delay each attempt; defaults to
	// DefaultBackoffFactor.
	BackoffFactor float64

	// RandomizationFactor jitters the delay. Zero means deterministic
	// delays.
	RandomizationFactor float64
}

func (p Policy) withDefaults() Policy {
	if p.RetryDelay == 0 {
		p.RetryDelay = DefaultRetryDelay
	}
	if p.BackoffFactor == 0 {
		p.BackoffFactor = DefaultBackoffFactor
	}
	return p
}

// RetryNotification describes one retry decision, passed to the optional
// notification callback before the delay is slept.
type RetryNotification struct {
	Attempt    int
	MaxRetries int
	Delay      time.Duration
	Err        error
}

// Option customizes a Do call.
type Option func(*options)

type options struct {
	isRetryable   func(error) bool
	delayOverride func(error) time.Duration
	onRetry       func(RetryNotification)
	logger        *zerolog.Logger
}

// WithRetryPredicate replaces the default retryability predicate.
func WithRetryPredicate(fn func(error) bool) Option {
	return func(o *options) { o.isRetryable = fn }
}

// WithDelayOverride installs a hook that can supply a per-error delay
// (e.g. a provider retry-after hint); returning zero falls back to the
// policy's backoff schedule.
func WithDelayOverride(fn func(error) time.Duration) Option {
	return func(o *options) { o.delayOverride = fn }
}

// WithRetryNotify installs a callback invoked before each retry delay.
func WithRetryNotify(fn func(RetryNotification)) Option {
	return func(o *options) { o.onRetry = fn }
}

// WithLogger attaches a logger for retry and timeout events.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// DefaultRetryable treats canonical retryable errors, timeouts, and
// transient-looking transport errors as retryable.
func DefaultRetryable(err error) bool {
	if err == nil {
		return false
	}
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "rate limit")
}

// RetryableStatus reports whether an HTTP-style status code is worth
// retrying.
func RetryableStatus(code int) bool {
	switch code {
	case 408, 429, 500, 502, 503, 504:
		return true
	}
	return false
}

type attemptResult[T any] struct {
	value T
	err   error
}

// Do runs op under the policy: each attempt races a timeout timer, and
// failures are retried per the backoff schedule while the predicate
// allows and retries remain. On timeout the attempt's eventual result is
// discarded; the underlying transport call is not cancelled, only the
// wait is abandoned. Exhausting retries returns the last error wrapped
// in llm.ErrRetryExhausted.
func Do[T any](ctx context.Context, policy Policy, op func(context.Context) (T, error), opts ...Option) (T, error) {
	var zero T

	o := options{isRetryable: DefaultRetryable}
	for _, opt := range opts {
		opt(&o)
	}

	policy = policy.withDefaults()

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = policy.RetryDelay
	eb.Multiplier = policy.BackoffFactor
	eb.RandomizationFactor = policy.RandomizationFactor
	eb.MaxInterval = DefaultMaxInterval
	eb.MaxElapsedTime = 0
	eb.Reset()

	var lastErr error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		value, err := runAttempt(ctx, policy.RequestTimeout, op)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if !o.isRetryable(err) {
			return zero, err
		}
		if attempt == policy.MaxRetries {
			break
		}

		delay := eb.NextBackOff()
		if o.delayOverride != nil {
			if override := o.delayOverride(err); override > 0 {
				delay = override
			}
		}

		if o.logger != nil {
			o.logger.Warn().
				Int("attempt", attempt+1).
				Int("max_retries", policy.MaxRetries).
				Dur("delay", delay).
				Err(err).
				Msg("Retrying after failure")
		}
		if o.onRetry != nil {
			o.onRetry(RetryNotification{
				Attempt:    attempt + 1,
				MaxRetries: policy.MaxRetries,
				Delay:      delay,
				Err:        err,
			})
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w: %w", llm.ErrRetryExhausted, lastErr)
}

// runAttempt executes one attempt, racing it against the timeout timer.
// The op goroutine always sends its result into a buffered channel so a
// timed-out attempt never leaks a blocked goroutine.
func runAttempt[T any](ctx context.Context, timeout time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T

	if timeout <= 0 {
		return op(ctx)
	}

	results := make(chan attemptResult[T], 1)
	go func() {
		value, err := op(ctx)
		results <- attemptResult[T]{value: value, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-results:
		return res.value, res.err
	case <-timer.C:
		return zero, llm.NewTimeoutError(fmt.Sprintf("operation exceeded %v", timeout), context.DeadlineExceeded)
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// sleep waits for the delay, respecting context cancellation.
func sleep(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
