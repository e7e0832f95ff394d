package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/zgpcy/omnicost/internal/logger"
)

// Retry defaults shared by every adapter
const (
	// MaxRetries is the maximum number of attempts for a single remote call
	MaxRetries = 3

	// RetryDelay is the base delay; attempt n waits RetryDelay*n before attempt n+1
	RetryDelay = 1000 * time.Millisecond
)

// ErrNoAttempts is returned when the executor is configured to make no attempts
var ErrNoAttempts = errors.New("failed to execute request: no attempts were made")

// Observer receives attempt and retry notifications, for example to update metrics
type Observer interface {
	ObserveAttempt(operation string)
	ObserveRetry(operation string, class Class)
}

// Executor runs a remote call up to MaxAttempts times with linear backoff
type Executor struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration // per-attempt timeout, 0 disables
	Logger      *logger.Logger
	Observer    Observer
}

// NewExecutor creates an executor with the default attempt count and delay
func NewExecutor(log *logger.Logger) *Executor {
	return &Executor{
		MaxAttempts: MaxRetries,
		BaseDelay:   RetryDelay,
		Logger:      log,
	}
}

// linearBackOff waits base, 2*base, 3*base, ...
type linearBackOff struct {
	base time.Duration
	n    int
}

func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.base * time.Duration(b.n)
}

func (b *linearBackOff) Reset() {
	b.n = 0
}

// Do executes op, retrying while classify reports a transient failure.
// The error returned is the last error produced by op, unwrapped.
func Do[T any](ctx context.Context, e *Executor, operation string, classify Classifier, op func(context.Context) (T, error)) (T, error) {
	var (
		zero    T
		result  T
		attempt int
		class   Class
		lastErr error
	)

	if e.MaxAttempts <= 0 {
		return zero, ErrNoAttempts
	}

	call := func() error {
		attempt++
		if e.Observer != nil {
			e.Observer.ObserveAttempt(operation)
		}

		callCtx := ctx
		if e.Timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, e.Timeout)
			defer cancel()
		}

		r, err := op(callCtx)
		if err != nil {
			lastErr = err
			class = classify(err)
			if !class.Retriable() {
				return backoff.Permanent(err)
			}
			return err
		}
		result = r
		return nil
	}

	notify := func(err error, delay time.Duration) {
		if e.Observer != nil {
			e.Observer.ObserveRetry(operation, class)
		}
		if e.Logger != nil {
			e.Logger.Warn("Request failed, retrying",
				"operation", operation,
				"attempt", attempt,
				"max_attempts", e.MaxAttempts,
				"class", class.String(),
				"delay", delay,
				"error", err)
		}
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{base: e.BaseDelay}, uint64(e.MaxAttempts-1)),
		ctx,
	)

	if err := backoff.RetryNotify(call, bo, notify); err != nil {
		if lastErr != nil {
			return zero, lastErr
		}
		return zero, err
	}
	return result, nil
}
