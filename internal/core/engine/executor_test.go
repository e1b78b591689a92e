package engine

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coinsync/coinsync/internal/core"
)

// testClock advances a fixed step on every read, so pacing waits are always
// already elapsed and recorded sleeps are backoffs only.
func testClock(step time.Duration) func() time.Time {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func newTestExecutor(maxAttempts int) (*Executor, *[]time.Duration) {
	limiter := NewRateLimiter(RateConfig{Adaptive: true})
	limiter.Clock = testClock(time.Minute)

	var sleeps []time.Duration
	exec := &Executor{
		Limiter:     limiter,
		MaxAttempts: maxAttempts,
		Sleep: func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			return ctx.Err()
		},
	}
	return exec, &sleeps
}

func TestExecutorSuccessFirstAttempt(t *testing.T) {
	exec, sleeps := newTestExecutor(3)

	calls := 0
	resp, err := exec.Execute(context.Background(), "/coins", func(ctx context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: http.StatusOK, Body: []byte(`[]`)}, nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, calls)
	require.Empty(t, *sleeps)
}

func TestExecutorRetriesThrottlingWithLongerBackoff(t *testing.T) {
	exec, sleeps := newTestExecutor(4)

	statuses := []int{429, 429, 429, 200}
	calls := 0
	resp, err := exec.Execute(context.Background(), "/coins", func(ctx context.Context) (*Response, error) {
		status := statuses[calls]
		calls++
		return &Response{StatusCode: status}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, 4, calls)
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, *sleeps)
}

func TestExecutorRetriesTransportErrors(t *testing.T) {
	exec, sleeps := newTestExecutor(3)

	calls := 0
	resp, err := exec.Execute(context.Background(), "/coins", func(ctx context.Context) (*Response, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return &Response{StatusCode: 200}, nil
	})
	require.NoError(t, err)
	require.Equal(t, 200, resp.StatusCode)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestExecutorServerErrorsUseStandardBackoff(t *testing.T) {
	exec, sleeps := newTestExecutor(3)

	calls := 0
	_, err := exec.Execute(context.Background(), "/coins", func(ctx context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: 500}, nil
	})
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.Equal(t, 3, calls)
	// No sleep after the final attempt.
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *sleeps)
}

func TestExecutorExhaustsAttemptsOnPersistentThrottling(t *testing.T) {
	exec, sleeps := newTestExecutor(3)

	calls := 0
	_, err := exec.Execute(context.Background(), "/coins", func(ctx context.Context) (*Response, error) {
		calls++
		return &Response{StatusCode: http.StatusServiceUnavailable}, nil
	})
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.Equal(t, 3, calls)
	require.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, *sleeps)
}

func TestExecutorStopsOnContextCancellation(t *testing.T) {
	exec, _ := newTestExecutor(5)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := exec.Execute(ctx, "/coins", func(ctx context.Context) (*Response, error) {
		calls++
		cancel()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestExecutorRecordsOutcomes(t *testing.T) {
	limiter := NewRateLimiter(RateConfig{Adaptive: true, InitialPerMinute: 30, FailureStreak: 3})
	limiter.Clock = testClock(time.Minute)
	exec := &Executor{
		Limiter: limiter,
		Sleep:   func(ctx context.Context, d time.Duration) error { return nil },
	}

	initial := limiter.PerMinute()
	_, err := exec.Execute(context.Background(), "/coins", func(ctx context.Context) (*Response, error) {
		return &Response{StatusCode: 500}, nil
	})
	require.Error(t, err)

	// Three failed attempts trip the limiter's failure-streak rule.
	require.Less(t, limiter.PerMinute(), initial)
}

func TestThrottleBackoffCap(t *testing.T) {
	require.Equal(t, 5*time.Second, throttleBackoff(0))
	require.Equal(t, 10*time.Second, throttleBackoff(1))
	require.Equal(t, 20*time.Second, throttleBackoff(2))
	require.Equal(t, 40*time.Second, throttleBackoff(3))
	require.Equal(t, 60*time.Second, throttleBackoff(4))
	require.Equal(t, 60*time.Second, throttleBackoff(10))
}

func TestStandardBackoffDoubles(t *testing.T) {
	require.Equal(t, time.Second, standardBackoff(0))
	require.Equal(t, 2*time.Second, standardBackoff(1))
	require.Equal(t, 4*time.Second, standardBackoff(2))
}

type ledgerRecorder struct {
	outcomes []core.RequestOutcome
	err      error
}

func (r *ledgerRecorder) SaveRequestOutcome(ctx context.Context, outcome core.RequestOutcome) error {
	if r.err != nil {
		return r.err
	}
	r.outcomes = append(r.outcomes, outcome)
	return nil
}

func TestExecutorRecordsLedgerEntries(t *testing.T) {
	exec, _ := newTestExecutor(3)
	recorder := &ledgerRecorder{}
	exec.Recorder = recorder
	exec.Job = "kraken-sync"

	statuses := []int{429, 500, 200}
	calls := 0
	_, err := exec.Execute(context.Background(), "/coins/bitcoin", func(ctx context.Context) (*Response, error) {
		status := statuses[calls]
		calls++
		return &Response{StatusCode: status}, nil
	})
	require.NoError(t, err)
	require.Len(t, recorder.outcomes, 3)

	first := recorder.outcomes[0]
	require.Equal(t, "kraken-sync", first.Job)
	require.Equal(t, "/coins/bitcoin", first.Endpoint)
	require.False(t, first.Success)
	require.Equal(t, 429, first.StatusCode)
	require.False(t, first.Timestamp.IsZero())

	require.Equal(t, 500, recorder.outcomes[1].StatusCode)
	require.True(t, recorder.outcomes[2].Success)
	require.Equal(t, 200, recorder.outcomes[2].StatusCode)
}

func TestExecutorRecordsTransportFailures(t *testing.T) {
	exec, _ := newTestExecutor(2)
	recorder := &ledgerRecorder{}
	exec.Recorder = recorder
	exec.Job = "kraken-sync"

	_, err := exec.Execute(context.Background(), "/ping", func(ctx context.Context) (*Response, error) {
		return nil, errors.New("connection refused")
	})
	require.ErrorIs(t, err, ErrAttemptsExhausted)
	require.Len(t, recorder.outcomes, 2)
	for _, outcome := range recorder.outcomes {
		require.False(t, outcome.Success)
		require.Zero(t, outcome.StatusCode)
	}
}

func TestExecutorToleratesRecorderFailure(t *testing.T) {
	exec, _ := newTestExecutor(1)
	exec.Recorder = &ledgerRecorder{err: errors.New("disk full")}
	exec.Job = "kraken-sync"

	resp, err := exec.Execute(context.Background(), "/ping", func(ctx context.Context) (*Response, error) {
		return &Response{StatusCode: http.StatusOK}, nil
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
