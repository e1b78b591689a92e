package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coinsync/coinsync/internal/core"
)

// CheckpointStore persists batch progress across process lifetimes.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, job string, checkpoint *core.Checkpoint) error
	LoadCheckpoint(ctx context.Context, job string) (*core.Checkpoint, error)
	ClearCheckpoint(ctx context.Context, job string) error
}

// MappingCacheStore persists the incremental partial mapping alongside the
// checkpoint.
type MappingCacheStore interface {
	SaveMappingCache(ctx context.Context, job string, cache *core.MappingCache) error
	LoadMappingCache(ctx context.Context, job string) (*core.MappingCache, error)
	ClearMappingCache(ctx context.Context, job string) error
}

// Lookup resolves one coin against the remote system. found reports whether a
// listing exists; an error is an entity-level failure, not a job failure.
type Lookup interface {
	Lookup(ctx context.Context, coin core.Coin) (*core.ExchangeListing, bool, error)
}

// Processor drives a resumable mapping job over an ordered coin list. One
// instance per job key; concurrent processors against the same key are not
// supported.
type Processor struct {
	Checkpoints CheckpointStore
	Cache       MappingCacheStore
	Lookup      Lookup
	Logger      *zap.Logger
	Clock       func() time.Time

	// CheckpointEvery is the flush interval in processed entities.
	CheckpointEvery int

	// BatchSize controls progress logging granularity.
	BatchSize int

	// Pacing is an optional extra delay between entities, independent of
	// the executor's rate limiter.
	Pacing time.Duration

	// Source tags the mapping cache records, e.g. the exchange name.
	Source string

	// Sleep is overridable for tests; nil means a real timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
}

const (
	defaultCheckpointEvery = 50
	defaultBatchSize       = 50
)

type runState struct {
	job       string
	total     int
	startedAt time.Time

	processedIDs []string
	failedIDs    []string
	seen         map[string]struct{}
	mapping      map[string]core.ExchangeListing

	lastIndex  int
	sinceFlush int
	resumed    bool
}

// Run maps every coin in order, resuming from a previous checkpoint when one
// is valid. Per-entity failures never abort the run; cancellation forces a
// checkpoint before propagating.
func (p *Processor) Run(ctx context.Context, job string, coins []core.Coin) (*core.SyncReport, error) {
	if p == nil || p.Checkpoints == nil || p.Cache == nil || p.Lookup == nil {
		return nil, errors.New("processor is not configured")
	}
	if job == "" {
		return nil, errors.New("job name is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	state, nextIndex := p.restore(ctx, job, coins)

	for i := nextIndex; i < len(coins); i++ {
		if err := ctx.Err(); err != nil {
			p.forceCheckpoint(ctx, state)
			return nil, err
		}

		coin := coins[i]
		if _, ok := state.seen[coin.ID]; ok {
			state.lastIndex = i
			continue
		}

		listing, found, err := p.Lookup.Lookup(ctx, coin)
		if err != nil && ctx.Err() != nil {
			p.forceCheckpoint(ctx, state)
			return nil, ctx.Err()
		}

		state.seen[coin.ID] = struct{}{}
		state.processedIDs = append(state.processedIDs, coin.ID)
		state.lastIndex = i
		state.sinceFlush++

		switch {
		case err != nil:
			state.failedIDs = append(state.failedIDs, coin.ID)
			if p.Logger != nil {
				p.Logger.Warn("coin lookup failed",
					zap.String("job", job),
					zap.String("coin", coin.ID),
					zap.Error(err))
			}
		case found:
			state.mapping[coin.ID] = *listing
		default:
			// No listing on the target exchange. Expected for most of
			// the universe.
			state.failedIDs = append(state.failedIDs, coin.ID)
		}

		if state.sinceFlush >= p.checkpointEvery() {
			p.flush(ctx, state, core.CheckpointInProgress, true)
			state.sinceFlush = 0
		}

		p.logProgress(state)

		if p.Pacing > 0 && i < len(coins)-1 {
			if err := p.sleep(ctx, p.Pacing); err != nil {
				p.forceCheckpoint(ctx, state)
				return nil, err
			}
		}
	}

	p.finish(ctx, state)

	now := p.now()
	return &core.SyncReport{
		RunID:     uuid.New().String(),
		Job:       job,
		Total:     state.total,
		Processed: len(state.processedIDs),
		Mapped:    len(state.mapping),
		Failed:    len(state.failedIDs),
		Resumed:   state.resumed,
		StartedAt: state.startedAt,
		Duration:  now.Sub(state.startedAt),
		Mapping:   state.mapping,
		FailedIDs: state.failedIDs,
	}, nil
}

// restore loads checkpoint and incremental cache state, or initializes a
// fresh run when nothing resumable exists.
func (p *Processor) restore(ctx context.Context, job string, coins []core.Coin) (*runState, int) {
	state := &runState{
		job:       job,
		total:     len(coins),
		startedAt: p.now(),
		seen:      make(map[string]struct{}),
		mapping:   make(map[string]core.ExchangeListing),
		lastIndex: -1,
	}

	checkpoint, err := p.Checkpoints.LoadCheckpoint(ctx, job)
	if err != nil && p.Logger != nil {
		p.Logger.Warn("checkpoint load failed, starting fresh",
			zap.String("job", job), zap.Error(err))
	}

	if checkpoint == nil || !checkpoint.Valid() {
		// Fresh start: seed the durable records together.
		p.flush(ctx, state, core.CheckpointInProgress, true)
		return state, 0
	}

	state.resumed = true
	state.startedAt = checkpoint.StartedAt
	state.processedIDs = append(state.processedIDs, checkpoint.ProcessedIDs...)
	state.failedIDs = append(state.failedIDs, checkpoint.FailedIDs...)
	state.lastIndex = checkpoint.LastProcessedIndex
	for _, id := range checkpoint.ProcessedIDs {
		state.seen[id] = struct{}{}
	}
	for _, id := range checkpoint.FailedIDs {
		state.seen[id] = struct{}{}
	}

	if cache, err := p.Cache.LoadMappingCache(ctx, job); err == nil && cache != nil {
		// Join on processed ids: cache entries for entities the
		// checkpoint does not cover are re-resolved.
		for id, listing := range cache.Mapping {
			if _, ok := state.seen[id]; ok {
				state.mapping[id] = listing
			}
		}
	}

	if p.Logger != nil {
		p.Logger.Info("resuming batch job",
			zap.String("job", job),
			zap.Int("processed", len(state.processedIDs)),
			zap.Int("last_index", state.lastIndex),
			zap.Int("total", state.total))
	}

	return state, checkpoint.LastProcessedIndex + 1
}

// flush persists the checkpoint and incremental cache together. Persistence
// failures are logged and retried at the next interval; the run continues
// in-memory either way.
func (p *Processor) flush(ctx context.Context, state *runState, status core.CheckpointStatus, partial bool) {
	now := p.now()

	checkpoint := &core.Checkpoint{
		Status:             status,
		TotalEntities:      state.total,
		ProcessedCount:     len(state.processedIDs),
		LastProcessedIndex: state.lastIndex,
		ProcessedIDs:       state.processedIDs,
		FailedIDs:          state.failedIDs,
		StartedAt:          state.startedAt,
		LastCheckpointAt:   now,
		BatchSize:          p.batchSize(),
		CheckpointEvery:    p.checkpointEvery(),
	}
	if err := p.Checkpoints.SaveCheckpoint(ctx, state.job, checkpoint); err != nil && p.Logger != nil {
		p.Logger.Warn("checkpoint save failed",
			zap.String("job", state.job), zap.Error(err))
	}

	cache := &core.MappingCache{
		Mapping:       state.mapping,
		LastUpdate:    now,
		Source:        p.Source,
		PartialUpdate: partial,
	}
	if err := p.Cache.SaveMappingCache(ctx, state.job, cache); err != nil && p.Logger != nil {
		p.Logger.Warn("mapping cache save failed",
			zap.String("job", state.job), zap.Error(err))
	}
}

// forceCheckpoint saves progress unconditionally before the run propagates a
// cancellation or fault. Uses a detached context so a cancelled run can still
// persist.
func (p *Processor) forceCheckpoint(ctx context.Context, state *runState) {
	p.flush(context.WithoutCancel(ctx), state, core.CheckpointInProgress, true)
	if p.Logger != nil {
		p.Logger.Info("forced checkpoint before exit",
			zap.String("job", state.job),
			zap.Int("processed", len(state.processedIDs)),
			zap.Int("last_index", state.lastIndex))
	}
}

// finish writes the final full mapping and removes the checkpoint. The cache
// record is superseded wholesale with the partial flag cleared, so no stale
// partial markers survive a completed run.
func (p *Processor) finish(ctx context.Context, state *runState) {
	ctx = context.WithoutCancel(ctx)
	p.flush(ctx, state, core.CheckpointComplete, false)
	if err := p.Checkpoints.ClearCheckpoint(ctx, state.job); err != nil && p.Logger != nil {
		p.Logger.Warn("checkpoint clear failed",
			zap.String("job", state.job), zap.Error(err))
	}
}

func (p *Processor) logProgress(state *runState) {
	if p.Logger == nil {
		return
	}
	if len(state.processedIDs)%p.batchSize() != 0 {
		return
	}
	p.Logger.Info("batch progress",
		zap.String("job", state.job),
		zap.Int("processed", len(state.processedIDs)),
		zap.Int("total", state.total),
		zap.Int("mapped", len(state.mapping)))
}

func (p *Processor) checkpointEvery() int {
	if p.CheckpointEvery > 0 {
		return p.CheckpointEvery
	}
	return defaultCheckpointEvery
}

func (p *Processor) batchSize() int {
	if p.BatchSize > 0 {
		return p.BatchSize
	}
	return defaultBatchSize
}

func (p *Processor) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
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

func (p *Processor) now() time.Time {
	if p.Clock != nil {
		return p.Clock()
	}
	return time.Now().UTC()
}
