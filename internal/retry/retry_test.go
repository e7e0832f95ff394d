package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zgpcy/omnicost/internal/logger"
)

var (
	errTransient = errors.New("503 Service Unavailable")
	errFatal     = errors.New("400 Bad Request")
)

func testClassifier(err error) Class {
	if errors.Is(err, errTransient) {
		return Unavailable
	}
	return Other
}

type recordingObserver struct {
	attempts int
	retries  []Class
}

func (o *recordingObserver) ObserveAttempt(string) { o.attempts++ }

func (o *recordingObserver) ObserveRetry(_ string, class Class) {
	o.retries = append(o.retries, class)
}

func testExecutor() *Executor {
	return &Executor{
		MaxAttempts: MaxRetries,
		BaseDelay:   time.Millisecond,
		Logger:      logger.Discard(),
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	got, err := Do(context.Background(), testExecutor(), "test", testClassifier, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), testExecutor(), "test", testClassifier, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	require.Error(t, err)
	assert.Same(t, errTransient, err, "last error must propagate unwrapped")
	assert.Equal(t, MaxRetries, calls)
}

func TestDo_NonRetriableStopsImmediately(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), testExecutor(), "test", testClassifier, func(context.Context) (int, error) {
		calls++
		return 0, errFatal
	})

	assert.Same(t, errFatal, err)
	assert.Equal(t, 1, calls)
}

func TestDo_NoAttempts(t *testing.T) {
	exec := testExecutor()
	exec.MaxAttempts = 0

	calls := 0
	_, err := Do(context.Background(), exec, "test", testClassifier, func(context.Context) (int, error) {
		calls++
		return 1, nil
	})

	assert.ErrorIs(t, err, ErrNoAttempts)
	assert.Zero(t, calls)
}

func TestDo_LinearDelay(t *testing.T) {
	exec := testExecutor()
	exec.BaseDelay = 20 * time.Millisecond

	start := time.Now()
	_, err := Do(context.Background(), exec, "test", testClassifier, func(context.Context) (int, error) {
		return 0, errTransient
	})
	elapsed := time.Since(start)

	require.Error(t, err)
	// 20ms after attempt 1 and 40ms after attempt 2
	assert.GreaterOrEqual(t, elapsed, 60*time.Millisecond)
}

func TestDo_ObserverSeesEveryAttempt(t *testing.T) {
	obs := &recordingObserver{}
	exec := testExecutor()
	exec.Observer = obs

	calls := 0
	_, err := Do(context.Background(), exec, "test", testClassifier, func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, errTransient
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, obs.attempts)
	assert.Equal(t, []Class{Unavailable}, obs.retries)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	exec := testExecutor()
	exec.BaseDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, exec, "test", testClassifier, func(context.Context) (int, error) {
		calls++
		return 0, errTransient
	})

	assert.Same(t, errTransient, err)
	assert.Equal(t, 1, calls)
}

func TestLinearBackOff(t *testing.T) {
	b := &linearBackOff{base: time.Second}
	assert.Equal(t, time.Second, b.NextBackOff())
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, 3*time.Second, b.NextBackOff())
	b.Reset()
	assert.Equal(t, time.Second, b.NextBackOff())
}

func TestDo_PerAttemptTimeout(t *testing.T) {
	exec := testExecutor()
	exec.Timeout = 5 * time.Millisecond

	timeoutClass := func(err error) Class {
		if IsTimeout(err) {
			return Timeout
		}
		return Other
	}

	calls := 0
	_, err := Do(context.Background(), exec, "test", timeoutClass, func(ctx context.Context) (int, error) {
		calls++
		<-ctx.Done()
		return 0, ctx.Err()
	})

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, MaxRetries, calls)
}
