package engine

import "time"

// Outcome records the result of one outbound request.
type Outcome struct {
	Timestamp  time.Time
	Endpoint   string
	Success    bool
	Latency    time.Duration
	StatusCode int
}

// History is a fixed-capacity sliding window of request outcomes plus the
// running success/failure streaks. It is owned by the rate limiter and is
// never persisted.
type History struct {
	capacity int
	entries  []Outcome

	successStreak int
	failureStreak int
}

const defaultHistoryCapacity = 20

// NewHistory creates a history window. A non-positive capacity falls back to
// the default window size.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &History{
		capacity: capacity,
		entries:  make([]Outcome, 0, capacity),
	}
}

// Record appends an outcome, evicting the oldest entry once the window is
// full, and updates the streak counters.
func (h *History) Record(outcome Outcome) {
	if h == nil {
		return
	}

	if len(h.entries) >= h.capacity {
		h.entries = append(h.entries[:0], h.entries[1:]...)
	}
	h.entries = append(h.entries, outcome)

	if outcome.Success {
		h.successStreak++
		h.failureStreak = 0
	} else {
		h.failureStreak++
		h.successStreak = 0
	}
}

// Snapshot returns a copy of the current window, oldest first.
func (h *History) Snapshot() []Outcome {
	if h == nil || len(h.entries) == 0 {
		return nil
	}
	out := make([]Outcome, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len reports how many outcomes the window currently holds.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Full reports whether the window has reached capacity.
func (h *History) Full() bool {
	return h != nil && len(h.entries) >= h.capacity
}

// SuccessStreak returns the count of consecutive successes since the last
// failure.
func (h *History) SuccessStreak() int {
	if h == nil {
		return 0
	}
	return h.successStreak
}

// FailureStreak returns the count of consecutive failures since the last
// success.
func (h *History) FailureStreak() int {
	if h == nil {
		return 0
	}
	return h.failureStreak
}

func (h *History) resetFailureStreak() {
	if h != nil {
		h.failureStreak = 0
	}
}

func (h *History) resetSuccessStreak() {
	if h != nil {
		h.successStreak = 0
	}
}
