package throttle

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_AllowPerKey(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lim := NewLimiter(1, 2).WithClock(func() time.Time { return now })

	require.True(t, lim.Allow("a"))
	require.True(t, lim.Allow("a"))
	require.False(t, lim.Allow("a"), "burst exhausted")
	require.True(t, lim.Allow("b"), "keys are independent")

	now = now.Add(time.Second)
	require.True(t, lim.Allow("a"))
	require.False(t, lim.Allow("a"))
}

func TestLimiter_Unlimited(t *testing.T) {
	lim := NewLimiter(0, 0)
	for i := 0; i < 100; i++ {
		require.True(t, lim.Allow("a"))
	}
}

func TestLimiter_ForgetAndPrune(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	lim := NewLimiter(1, 1).WithClock(func() time.Time { return now })

	lim.Allow("a")
	lim.Allow("b")
	require.Equal(t, 2, lim.Len())

	lim.Forget("a")
	require.Equal(t, 1, lim.Len())
	require.True(t, lim.Allow("a"), "forgotten key starts with a full bucket")

	now = now.Add(time.Minute)
	lim.Allow("a")
	require.Equal(t, 1, lim.Prune(30*time.Second))
	require.Equal(t, 1, lim.Len())
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	lim := NewLimiter(0.001, 1)
	require.NoError(t, lim.Wait(context.Background(), "a"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.Error(t, lim.Wait(ctx, "a"))
}

type statusErr int

func (s statusErr) Error() string   { return "status " + strconv.Itoa(int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func fastConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.RateLimitDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retries []int
	cfg := fastConfig()
	cfg.OnRetry = func(attempt int, _ error) { retries = append(retries, attempt) }

	err := Retry(context.Background(), cfg, func() error {
		calls++
		if calls < 3 {
			return statusErr(503)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, retries)
}

func TestRetry_FatalStops(t *testing.T) {
	calls := 0
	cause := errors.New("bad token")
	err := Retry(context.Background(), fastConfig(), func() error {
		calls++
		return Fatal(cause)
	})
	require.ErrorIs(t, err, cause)
	require.Equal(t, 1, calls)
	require.NoError(t, Fatal(nil))
}

func TestRetry_ClientErrorStops(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		calls++
		return statusErr(403)
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetry_RateLimitRetried(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastConfig(), func() error {
		calls++
		if calls == 1 {
			return statusErr(429)
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestRetry_MaxAttempts(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 3
	calls := 0
	cause := errors.New("flaky")
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return cause
	})
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "max attempts (3)")
	require.Equal(t, 3, calls)
}

func TestRetry_CustomClassifier(t *testing.T) {
	cfg := fastConfig()
	cfg.Classifier = func(error) int { return 404 }
	calls := 0
	err := Retry(context.Background(), cfg, func() error {
		calls++
		return errors.New("not found")
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, fastConfig(), func() error { return nil })
	require.ErrorIs(t, err, context.Canceled)
}

func TestRetry_UsesLimiter(t *testing.T) {
	cfg := fastConfig()
	cfg.Limiter = NewLimiter(1000, 1)
	cfg.Key = "chan"
	require.NoError(t, Retry(context.Background(), cfg, func() error { return nil }))
	require.Equal(t, 1, cfg.Limiter.Len())
}
