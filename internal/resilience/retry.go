package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Retry defaults.
const (
	// DefaultMaxAttempts is the total number of invocations, first try included.
	DefaultMaxAttempts = 3

	// DefaultBase is the exponential base: attempt i waits Base^i seconds.
	DefaultBase = 2.0

	// DefaultMaxJitter bounds the uniform jitter added to every delay.
	DefaultMaxJitter = time.Second
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the real SleepFunc. It waits for d, respecting context cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RetryConfig configures an Executor.
type RetryConfig struct {
	// MaxAttempts is the total number of invocations. Defaults to DefaultMaxAttempts.
	MaxAttempts int

	// Base is the exponential base in seconds. Defaults to DefaultBase.
	Base float64

	// MaxJitter bounds the random jitter added to each delay. Defaults to DefaultMaxJitter.
	MaxJitter time.Duration
}

// Executor retries a fallible operation with exponential backoff plus jitter.
//
// Attempt i (0-based) that fails is followed by a sleep of Base^i seconds
// plus a uniform jitter in [0, MaxJitter). There is no sleep after the final
// attempt; its error is returned unchanged. Success is "returned nil".
// It is safe for concurrent use when the injected sleep and random sources are.
type Executor struct {
	config RetryConfig
	sleep  SleepFunc
	rand   func() float64

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithSleep replaces the sleep function, typically with a recorder in tests.
func WithSleep(fn SleepFunc) ExecutorOption {
	return func(e *Executor) { e.sleep = fn }
}

// WithRand replaces the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) ExecutorOption {
	return func(e *Executor) { e.rand = fn }
}

// WithOnRetry registers a hook invoked before each backoff sleep.
func WithOnRetry(fn func(attempt int, delay time.Duration, err error)) ExecutorOption {
	return func(e *Executor) { e.OnRetry = fn }
}

// NewExecutor creates an Executor, applying defaults for zero config values.
func NewExecutor(cfg RetryConfig, opts ...ExecutorOption) *Executor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Base <= 0 {
		cfg.Base = DefaultBase
	}
	if cfg.MaxJitter < 0 {
		cfg.MaxJitter = 0
	} else if cfg.MaxJitter == 0 {
		cfg.MaxJitter = DefaultMaxJitter
	}

	e := &Executor{
		config: cfg,
		sleep:  Sleep,
		rand:   rand.Float64,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAttempts returns the configured attempt ceiling.
func (e *Executor) MaxAttempts() int {
	return e.config.MaxAttempts
}

// Delay returns the backoff delay after the given failed attempt (0-based).
func (e *Executor) Delay(attempt int) time.Duration {
	backoff := time.Duration(math.Pow(e.config.Base, float64(attempt)) * float64(time.Second))
	jitter := time.Duration(e.rand() * float64(e.config.MaxJitter))
	return backoff + jitter
}

// Do invokes op until it succeeds, the attempt ceiling is reached, op returns
// an error wrapped with MarkPermanent, or ctx is done. A done context yields ctx.Err().
func (e *Executor) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt < e.config.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}

		if attempt == e.config.MaxAttempts-1 {
			break
		}

		delay := e.Delay(attempt)
		if e.OnRetry != nil {
			e.OnRetry(attempt+1, delay, err)
		}
		if err := e.sleep(ctx, delay); err != nil {
			return err
		}
	}
	return lastErr
}

// Retry is the value-returning form of Executor.Do.
func Retry[T any](ctx context.Context, e *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := e.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
