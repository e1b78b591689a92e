package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/coinsync/coinsync/internal/core"
)

// ErrAttemptsExhausted is returned when a request keeps failing retriably
// until no attempts remain.
var ErrAttemptsExhausted = errors.New("request attempts exhausted")

// OutcomeRecorder receives one ledger entry per attempt. Persistence failures
// must not disturb the request path; the executor logs them and moves on.
type OutcomeRecorder interface {
	SaveRequestOutcome(ctx context.Context, outcome core.RequestOutcome) error
}

// Response is the transport-level result of one request. The executor only
// looks at the status code; body and headers pass through untouched.
type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
	Latency    time.Duration
}

// RequestFunc performs one attempt of a logical request. A non-nil error
// means the transport failed before an HTTP outcome was observed.
type RequestFunc func(ctx context.Context) (*Response, error)

// Executor wraps a single logical request with pacing, retries and outcome
// classification. Every outbound call in the sync engine goes through it.
type Executor struct {
	Limiter     *RateLimiter
	Logger      *zap.Logger
	MaxAttempts int

	// Recorder, when set, persists every attempt to the request ledger
	// under Job.
	Recorder OutcomeRecorder
	Job      string

	// Sleep is the cancellable wait used for pacing and backoff. Tests
	// override it; nil means a real timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

const defaultMaxAttempts = 3

// Execute runs fn until it succeeds, a non-retriable outcome occurs, the
// context is cancelled, or attempts run out. Retried outcomes: transport
// errors, explicit throttling (429/503, longer capped backoff) and other
// 4xx/5xx responses. Payload-level problems are the caller's concern.
func (e *Executor) Execute(ctx context.Context, endpoint string, fn RequestFunc) (*Response, error) {
	if e == nil {
		return nil, errors.New("executor is not configured")
	}
	if fn == nil {
		return nil, errors.New("request function is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	attempts := e.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}

	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		if wait := e.Limiter.BeforeRequest(); wait > 0 {
			if err := e.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		resp, err := fn(ctx)
		latency := time.Since(start)

		switch {
		case err != nil:
			e.Limiter.AfterRequest(endpoint, false, latency, 0)
			e.record(ctx, endpoint, false, 0, latency)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			e.logRetry(endpoint, attempt, attempts, err)
			if attempt < attempts-1 {
				if serr := e.sleep(ctx, standardBackoff(attempt)); serr != nil {
					return nil, serr
				}
			}

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable:
			e.Limiter.AfterRequest(endpoint, false, latency, resp.StatusCode)
			e.record(ctx, endpoint, false, resp.StatusCode, latency)
			lastErr = fmt.Errorf("throttled with status %d", resp.StatusCode)
			e.logRetry(endpoint, attempt, attempts, lastErr)
			if attempt < attempts-1 {
				if serr := e.sleep(ctx, throttleBackoff(attempt)); serr != nil {
					return nil, serr
				}
			}

		case resp.StatusCode >= 400:
			e.Limiter.AfterRequest(endpoint, false, latency, resp.StatusCode)
			e.record(ctx, endpoint, false, resp.StatusCode, latency)
			lastErr = fmt.Errorf("unexpected status %d", resp.StatusCode)
			e.logRetry(endpoint, attempt, attempts, lastErr)
			if attempt < attempts-1 {
				if serr := e.sleep(ctx, standardBackoff(attempt)); serr != nil {
					return nil, serr
				}
			}

		default:
			e.Limiter.AfterRequest(endpoint, true, latency, resp.StatusCode)
			e.record(ctx, endpoint, true, resp.StatusCode, latency)
			resp.Latency = latency
			return resp, nil
		}
	}

	return nil, fmt.Errorf("%w for %s: %v", ErrAttemptsExhausted, endpoint, lastErr)
}

// standardBackoff doubles per attempt: 1s, 2s, 4s, ...
func standardBackoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// throttleBackoff backs off harder after explicit throttling: 5s, 10s, 20s,
// capped at 60s.
func throttleBackoff(attempt int) time.Duration {
	backoff := time.Duration(5<<uint(attempt)) * time.Second
	if backoff > 60*time.Second {
		backoff = 60 * time.Second
	}
	return backoff
}

func (e *Executor) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	if e.Sleep != nil {
		return e.Sleep(ctx, d)
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

// record persists one attempt to the ledger. Runs on a cancellation-immune
// context so the entry for an interrupted attempt still lands.
func (e *Executor) record(ctx context.Context, endpoint string, success bool, statusCode int, latency time.Duration) {
	if e.Recorder == nil {
		return
	}
	outcome := core.RequestOutcome{
		Job:        e.Job,
		Endpoint:   endpoint,
		Success:    success,
		StatusCode: statusCode,
		Latency:    latency,
		Timestamp:  time.Now().UTC(),
	}
	if err := e.Recorder.SaveRequestOutcome(context.WithoutCancel(ctx), outcome); err != nil && e.Logger != nil {
		e.Logger.Warn("failed to record request outcome",
			zap.String("endpoint", endpoint),
			zap.Error(err))
	}
}

func (e *Executor) logRetry(endpoint string, attempt, attempts int, err error) {
	if e.Logger == nil {
		return
	}
	e.Logger.Warn("request attempt failed",
		zap.String("endpoint", endpoint),
		zap.Int("attempt", attempt+1),
		zap.Int("max_attempts", attempts),
		zap.Error(err))
}
