package engine

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// RateConfig carries the tunable thresholds for the adaptive rate limiter.
// Zero values fall back to the defaults below.
type RateConfig struct {
	// Adaptive toggles rate adaptation. When false the limiter applies
	// FixedDelay between requests and skips all analysis.
	Adaptive   bool
	FixedDelay time.Duration

	MinPerMinute     float64
	MaxPerMinute     float64
	InitialPerMinute float64

	FactorUp   float64
	FactorDown float64

	SuccessStreak int
	FailureStreak int

	WindowSize     int
	RequestTimeout time.Duration

	RateLimitErrorRate float64
	TimeoutRate        float64
	FailureRate        float64
}

func rateConfigWithDefaults(cfg RateConfig) RateConfig {
	if cfg.FixedDelay <= 0 {
		cfg.FixedDelay = 1500 * time.Millisecond
	}
	if cfg.MinPerMinute <= 0 {
		cfg.MinPerMinute = 10
	}
	if cfg.MaxPerMinute <= 0 {
		cfg.MaxPerMinute = 50
	}
	if cfg.MaxPerMinute < cfg.MinPerMinute {
		cfg.MaxPerMinute = cfg.MinPerMinute
	}
	if cfg.InitialPerMinute <= 0 {
		cfg.InitialPerMinute = cfg.MinPerMinute
	}
	if cfg.FactorUp <= 1 {
		cfg.FactorUp = 1.2
	}
	if cfg.FactorDown <= 0 || cfg.FactorDown >= 1 {
		cfg.FactorDown = 0.8
	}
	if cfg.SuccessStreak <= 0 {
		cfg.SuccessStreak = 10
	}
	if cfg.FailureStreak <= 0 {
		cfg.FailureStreak = 3
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = defaultHistoryCapacity
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.RateLimitErrorRate <= 0 {
		cfg.RateLimitErrorRate = 0.20
	}
	if cfg.TimeoutRate <= 0 {
		cfg.TimeoutRate = 0.30
	}
	if cfg.FailureRate <= 0 {
		cfg.FailureRate = 0.05
	}
	return cfg
}

// RateLimiter decides the spacing between outbound requests and adapts it
// from the recent success/failure pattern. One instance per logical client;
// instances never share state.
type RateLimiter struct {
	Clock  func() time.Time
	Logger *zap.Logger

	cfg     RateConfig
	history *History

	mu          sync.Mutex
	perMinute   float64
	lastRequest time.Time
}

// NewRateLimiter builds a limiter with its own history window.
func NewRateLimiter(cfg RateConfig) *RateLimiter {
	cfg = rateConfigWithDefaults(cfg)
	perMinute := clamp(cfg.InitialPerMinute, cfg.MinPerMinute, cfg.MaxPerMinute)
	return &RateLimiter{
		cfg:       cfg,
		history:   NewHistory(cfg.WindowSize),
		perMinute: perMinute,
	}
}

// BeforeRequest returns how long the caller must wait before the next request
// may be sent. Zero when the pacing window has already elapsed.
func (r *RateLimiter) BeforeRequest() time.Duration {
	if r == nil {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lastRequest.IsZero() {
		return 0
	}

	next := r.lastRequest.Add(r.delayLocked())
	if wait := next.Sub(r.now()); wait > 0 {
		return wait
	}
	return 0
}

// AfterRequest records the outcome and applies at most one adjustment rule:
// failure streak, success streak, then windowed analysis, in that order.
func (r *RateLimiter) AfterRequest(endpoint string, success bool, latency time.Duration, statusCode int) {
	if r == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.lastRequest = now
	r.history.Record(Outcome{
		Timestamp:  now,
		Endpoint:   endpoint,
		Success:    success,
		Latency:    latency,
		StatusCode: statusCode,
	})

	if !r.cfg.Adaptive {
		return
	}

	switch {
	case r.history.FailureStreak() >= r.cfg.FailureStreak:
		r.adjustLocked(r.cfg.FactorDown, "failure streak")
		r.history.resetFailureStreak()
	case r.history.SuccessStreak() >= r.cfg.SuccessStreak:
		r.adjustLocked(r.cfg.FactorUp, "success streak")
		r.history.resetSuccessStreak()
	case r.history.Full():
		r.analyzeWindowLocked()
	}
}

// Delay returns the current pacing delay.
func (r *RateLimiter) Delay() time.Duration {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delayLocked()
}

// PerMinute returns the current requests-per-minute target.
func (r *RateLimiter) PerMinute() float64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.cfg.Adaptive {
		return float64(time.Minute) / float64(r.cfg.FixedDelay)
	}
	return r.perMinute
}

func (r *RateLimiter) analyzeWindowLocked() {
	window := r.history.Snapshot()
	if len(window) == 0 {
		return
	}

	var failures, rateLimited, timeouts int
	timeoutFloor := time.Duration(float64(r.cfg.RequestTimeout) * 0.8)
	for _, outcome := range window {
		if !outcome.Success {
			failures++
		}
		if outcome.StatusCode == 429 || outcome.StatusCode == 503 {
			rateLimited++
		}
		if outcome.Latency > timeoutFloor {
			timeouts++
		}
	}

	total := float64(len(window))
	failureRate := float64(failures) / total
	rateLimitRate := float64(rateLimited) / total
	timeoutRate := float64(timeouts) / total

	switch {
	case rateLimitRate > r.cfg.RateLimitErrorRate:
		r.adjustLocked(r.cfg.FactorDown, "rate limit errors in window")
	case timeoutRate > r.cfg.TimeoutRate:
		r.adjustLocked(r.cfg.FactorDown, "slow responses in window")
	case failureRate < r.cfg.FailureRate && rateLimited == 0:
		r.adjustLocked(r.cfg.FactorUp, "healthy window")
	}
}

func (r *RateLimiter) adjustLocked(factor float64, reason string) {
	previous := r.perMinute
	r.perMinute = clamp(r.perMinute*factor, r.cfg.MinPerMinute, r.cfg.MaxPerMinute)
	if r.Logger != nil && r.perMinute != previous {
		r.Logger.Debug("adjusted request rate",
			zap.Float64("previous_rpm", previous),
			zap.Float64("current_rpm", r.perMinute),
			zap.String("reason", reason))
	}
}

func (r *RateLimiter) delayLocked() time.Duration {
	if !r.cfg.Adaptive {
		return r.cfg.FixedDelay
	}
	if r.perMinute <= 0 {
		return r.cfg.FixedDelay
	}
	return time.Duration(float64(time.Minute) / r.perMinute)
}

func (r *RateLimiter) now() time.Time {
	if r.Clock != nil {
		return r.Clock()
	}
	return time.Now().UTC()
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
