package core

import "time"

// Coin is one entity in the sync universe, as delivered by the coin list
// provider.
type Coin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// ExchangeListing describes how a coin trades on a specific exchange.
type ExchangeListing struct {
	Exchange     string  `json:"exchange_name"`
	Symbol       string  `json:"symbol"`
	PairName     string  `json:"pair_name"`
	Base         string  `json:"base_currency"`
	Target       string  `json:"target_currency"`
	AltName      string  `json:"alt_name,omitempty"`
	TradeURL     string  `json:"trade_url,omitempty"`
	Active       bool    `json:"is_active"`
	MinOrderSize float64 `json:"min_order_size,omitempty"`
}

// CheckpointStatus reports where a batch job stands.
type CheckpointStatus string

const (
	CheckpointInProgress CheckpointStatus = "in-progress"
	CheckpointComplete   CheckpointStatus = "complete"
)

// Checkpoint is the durable progress record for one batch job. One row per
// job key; overwritten on every flush, deleted when the job finishes.
type Checkpoint struct {
	Status             CheckpointStatus `json:"status"`
	TotalEntities      int              `json:"total_entity_count"`
	ProcessedCount     int              `json:"processed_count"`
	LastProcessedIndex int              `json:"last_processed_index"`
	ProcessedIDs       []string         `json:"processed_entity_ids"`
	FailedIDs          []string         `json:"failed_entity_ids"`
	StartedAt          time.Time        `json:"started_at"`
	LastCheckpointAt   time.Time        `json:"last_checkpoint_at"`
	BatchSize          int              `json:"batch_size"`
	CheckpointEvery    int              `json:"checkpoint_frequency"`
}

// Valid performs the structural checks a checkpoint must pass before a job is
// allowed to resume from it.
func (c *Checkpoint) Valid() bool {
	if c == nil {
		return false
	}
	if c.Status != CheckpointInProgress && c.Status != CheckpointComplete {
		return false
	}
	if c.TotalEntities <= 0 || c.StartedAt.IsZero() {
		return false
	}
	if c.ProcessedCount != len(c.ProcessedIDs) {
		return false
	}
	if c.LastProcessedIndex >= c.TotalEntities {
		return false
	}
	return true
}

// MappingCache is the incremental partial-result record flushed alongside the
// checkpoint. It survives checkpoint loss so completed lookups are never
// repeated.
type MappingCache struct {
	Mapping       map[string]ExchangeListing `json:"mapping"`
	LastUpdate    time.Time                  `json:"last_update"`
	Source        string                     `json:"source"`
	PartialUpdate bool                       `json:"partial_update"`
}

// SyncReport is what a completed (or interrupted) sync run returns to the
// caller.
type SyncReport struct {
	RunID     string                     `json:"run_id"`
	Job       string                     `json:"job"`
	Total     int                        `json:"total"`
	Processed int                        `json:"processed"`
	Mapped    int                        `json:"mapped"`
	Failed    int                        `json:"failed"`
	Resumed   bool                       `json:"resumed"`
	StartedAt time.Time                  `json:"started_at"`
	Duration  time.Duration              `json:"duration"`
	Mapping   map[string]ExchangeListing `json:"mapping,omitempty"`
	FailedIDs []string                   `json:"failed_entity_ids,omitempty"`
}

// RequestOutcome is one request-ledger entry: the observed result of a single
// attempt against a remote endpoint.
type RequestOutcome struct {
	Job        string
	Endpoint   string
	Success    bool
	StatusCode int
	Latency    time.Duration
	Timestamp  time.Time
}

// RequestStats aggregates the request ledger for one job, per endpoint.
type RequestStats struct {
	Endpoint     string `json:"endpoint"`
	Requests     int    `json:"requests"`
	Failures     int    `json:"failures"`
	RateLimited  int    `json:"rate_limited"`
	AvgLatencyMS int64  `json:"avg_latency_ms"`
}
