package agent

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/normanking/zira/internal/llm"
	"github.com/normanking/zira/internal/logging"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RETRYABLE INVOKER
// ═══════════════════════════════════════════════════════════════════════════════

// ErrRateLimitExhausted is matched by errors.Is when every attempt was rate limited.
var ErrRateLimitExhausted = errors.New("rate limit retries exhausted")

// RateLimitExhaustedError is returned after MaxAttempts rate-limited submissions.
type RateLimitExhaustedError struct {
	Attempts int
	Last     error
}

func (e *RateLimitExhaustedError) Error() string {
	return "Too many retries due to rate-limiting. Try again later."
}

func (e *RateLimitExhaustedError) Unwrap() error {
	return e.Last
}

// Is reports ErrRateLimitExhausted as a match.
func (e *RateLimitExhaustedError) Is(target error) bool {
	return target == ErrRateLimitExhausted
}

// RetryConfig configures the rate-limit retry policy.
type RetryConfig struct {
	// MaxAttempts is the total number of submissions, including the first.
	MaxAttempts int
	// BaseDelay is multiplied by 2^attempt.
	BaseDelay time.Duration
	// JitterUnit scales the uniform [0,1) jitter added to each delay.
	JitterUnit time.Duration
}

// DefaultRetryConfig returns the default policy: 5 attempts, 2s base, 1s jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
		JitterUnit:  time.Second,
	}
}

// RetryNotify is called before each sleep with the failed attempt index
// (0-based), the chosen delay and the rate-limit error.
type RetryNotify func(attempt int, delay time.Duration, err error)

// Invoker submits requests to a provider, absorbing rate-limit failures.
type Invoker struct {
	provider llm.Provider
	config   RetryConfig
	random   func() float64
	onRetry  RetryNotify
	log      *logging.Logger
}

// InvokerOption configures an Invoker.
type InvokerOption func(*Invoker)

// WithRandom replaces the jitter source. fn must return values in [0,1).
func WithRandom(fn func() float64) InvokerOption {
	return func(i *Invoker) {
		i.random = fn
	}
}

// WithRetryNotify registers a callback invoked before each retry sleep.
func WithRetryNotify(fn RetryNotify) InvokerOption {
	return func(i *Invoker) {
		i.onRetry = fn
	}
}

// NewInvoker creates an Invoker around provider.
func NewInvoker(provider llm.Provider, cfg RetryConfig, opts ...InvokerOption) *Invoker {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}

	i := &Invoker{
		provider: provider,
		config:   cfg,
		random:   rand.Float64,
		log:      logging.Global().WithComponent("Invoker"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke submits req. Rate-limit errors are retried with exponential backoff
// plus jitter; any other error is returned at once. After MaxAttempts
// rate-limited submissions the result is a *RateLimitExhaustedError.
func (i *Invoker) Invoke(ctx context.Context, req *llm.Request) (*llm.Message, error) {
	policy := &rateLimitBackOff{
		max:    i.config.MaxAttempts,
		base:   i.config.BaseDelay,
		jitter: i.config.JitterUnit,
		random: i.random,
	}

	attempts := 0
	operation := func() (*llm.Message, error) {
		attempts++
		msg, err := i.provider.Submit(ctx, req)
		if err == nil {
			return msg, nil
		}
		if !llm.IsRateLimit(err) {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	notify := func(err error, delay time.Duration) {
		attempt := policy.attempt - 1
		i.log.Warn("Rate limited (attempt %d/%d), retrying in %v", attempt+1, i.config.MaxAttempts, delay)
		if i.onRetry != nil {
			i.onRetry(attempt, delay, err)
		}
	}

	msg, err := backoff.RetryNotifyWithData[*llm.Message](operation, backoff.WithContext(policy, ctx), notify)
	if err == nil {
		return msg, nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if llm.IsRateLimit(err) {
		i.log.Error("Rate limit persisted after %d attempts", attempts)
		return nil, &RateLimitExhaustedError{Attempts: attempts, Last: err}
	}
	return nil, err
}

// rateLimitBackOff yields base*2^attempt + U[0,1)*jitter and stops once the
// final attempt has failed, so no sleep follows it.
type rateLimitBackOff struct {
	max     int
	base    time.Duration
	jitter  time.Duration
	random  func() float64
	attempt int
}

func (b *rateLimitBackOff) NextBackOff() time.Duration {
	if b.attempt >= b.max-1 {
		return backoff.Stop
	}
	delay := time.Duration(float64(b.base)*math.Pow(2, float64(b.attempt))) +
		time.Duration(b.random()*float64(b.jitter))
	b.attempt++
	return delay
}

func (b *rateLimitBackOff) Reset() {
	b.attempt = 0
}
