//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/coinsync/coinsync/internal/config"
	"github.com/coinsync/coinsync/internal/core"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testCheckpoint(started time.Time) *core.Checkpoint {
	return &core.Checkpoint{
		Status:             core.CheckpointInProgress,
		TotalEntities:      10,
		ProcessedCount:     5,
		LastProcessedIndex: 4,
		ProcessedIDs:       []string{"btc", "eth", "xrp", "ada", "sol"},
		FailedIDs:          []string{"xrp"},
		StartedAt:          started,
		LastCheckpointAt:   started.Add(time.Minute),
		BatchSize:          50,
		CheckpointEvery:    50,
	}
}

func TestOpenMemoryStore(t *testing.T) {
	ctx := context.Background()
	store, err := Open(ctx, config.StoreConfig{Driver: "libsql", Path: ":memory:"})
	require.NoError(t, err)
	require.NotNil(t, store)
	require.Equal(t, "libsql", store.Driver())
	require.NoError(t, store.Close())
}

func TestCheckpointRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	saved := testCheckpoint(started)
	require.NoError(t, store.SaveCheckpoint(ctx, "kraken-sync", saved))

	loaded, err := store.LoadCheckpoint(ctx, "kraken-sync")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, saved.Status, loaded.Status)
	require.Equal(t, saved.TotalEntities, loaded.TotalEntities)
	require.Equal(t, saved.ProcessedCount, loaded.ProcessedCount)
	require.Equal(t, saved.LastProcessedIndex, loaded.LastProcessedIndex)
	require.Equal(t, saved.ProcessedIDs, loaded.ProcessedIDs)
	require.Equal(t, saved.FailedIDs, loaded.FailedIDs)
	require.Equal(t, started, loaded.StartedAt)
}

func TestCheckpointUpsertReplaces(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Second)
	first := testCheckpoint(started)
	require.NoError(t, store.SaveCheckpoint(ctx, "kraken-sync", first))

	second := testCheckpoint(started)
	second.ProcessedCount = 7
	second.LastProcessedIndex = 6
	second.ProcessedIDs = append(second.ProcessedIDs, "dot", "link")
	require.NoError(t, store.SaveCheckpoint(ctx, "kraken-sync", second))

	loaded, err := store.LoadCheckpoint(ctx, "kraken-sync")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, 7, loaded.ProcessedCount)
	require.Equal(t, 6, loaded.LastProcessedIndex)
	require.Len(t, loaded.ProcessedIDs, 7)
}

func TestLoadCheckpointAbsent(t *testing.T) {
	store := openTestStore(t)

	loaded, err := store.LoadCheckpoint(context.Background(), "no-such-job")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestLoadCheckpointExpired(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	stale := testCheckpoint(time.Now().UTC().Add(-25 * time.Hour))
	require.NoError(t, store.SaveCheckpoint(ctx, "kraken-sync", stale))

	loaded, err := store.LoadCheckpoint(ctx, "kraken-sync")
	require.NoError(t, err)
	require.Nil(t, loaded)

	// Expiry deletes the row, so a wider window no longer finds it.
	loaded, err = store.LoadCheckpointMaxAge(ctx, "kraken-sync", 48*time.Hour)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestLoadCheckpointCustomMaxAge(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	aged := testCheckpoint(time.Now().UTC().Add(-2 * time.Hour))
	require.NoError(t, store.SaveCheckpoint(ctx, "kraken-sync", aged))

	loaded, err := store.LoadCheckpointMaxAge(ctx, "kraken-sync", time.Hour)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestLoadCheckpointInvalidRecord(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	bad := testCheckpoint(time.Now().UTC())
	bad.ProcessedCount = 99 // does not match the id list
	require.NoError(t, store.SaveCheckpoint(ctx, "kraken-sync", bad))

	loaded, err := store.LoadCheckpoint(ctx, "kraken-sync")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestClearCheckpointIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCheckpoint(ctx, "kraken-sync", testCheckpoint(time.Now().UTC())))
	require.NoError(t, store.ClearCheckpoint(ctx, "kraken-sync"))
	require.NoError(t, store.ClearCheckpoint(ctx, "kraken-sync"))

	loaded, err := store.LoadCheckpoint(ctx, "kraken-sync")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestListCheckpoints(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCheckpoint(ctx, "kraken-sync", testCheckpoint(time.Now().UTC())))
	other := testCheckpoint(time.Now().UTC())
	other.Status = core.CheckpointComplete
	require.NoError(t, store.SaveCheckpoint(ctx, "binance-sync", other))

	all, err := store.ListCheckpoints(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Contains(t, all, "kraken-sync")
	require.Contains(t, all, "binance-sync")
	require.Equal(t, core.CheckpointComplete, all["binance-sync"].Status)
}

func TestMappingCacheRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	saved := &core.MappingCache{
		Mapping: map[string]core.ExchangeListing{
			"bitcoin": {
				Exchange: "kraken",
				Symbol:   "BTC",
				PairName: "XXBTZUSD",
				Base:     "XXBT",
				Target:   "ZUSD",
				Active:   true,
			},
		},
		LastUpdate:    time.Now().UTC().Truncate(time.Second),
		Source:        "kraken",
		PartialUpdate: true,
	}
	require.NoError(t, store.SaveMappingCache(ctx, "kraken-sync", saved))

	loaded, err := store.LoadMappingCache(ctx, "kraken-sync")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, saved.Mapping, loaded.Mapping)
	require.Equal(t, saved.LastUpdate, loaded.LastUpdate)
	require.Equal(t, "kraken", loaded.Source)
	require.True(t, loaded.PartialUpdate)
}

func TestMappingCacheAbsent(t *testing.T) {
	store := openTestStore(t)

	loaded, err := store.LoadMappingCache(context.Background(), "no-such-job")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestMappingCacheUpsertClearsPartialFlag(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	partial := &core.MappingCache{
		Mapping:       map[string]core.ExchangeListing{"bitcoin": {Exchange: "kraken"}},
		LastUpdate:    time.Now().UTC(),
		Source:        "kraken",
		PartialUpdate: true,
	}
	require.NoError(t, store.SaveMappingCache(ctx, "kraken-sync", partial))

	full := &core.MappingCache{
		Mapping: map[string]core.ExchangeListing{
			"bitcoin":  {Exchange: "kraken"},
			"ethereum": {Exchange: "kraken"},
		},
		LastUpdate: time.Now().UTC(),
		Source:     "kraken",
	}
	require.NoError(t, store.SaveMappingCache(ctx, "kraken-sync", full))

	loaded, err := store.LoadMappingCache(ctx, "kraken-sync")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.False(t, loaded.PartialUpdate)
	require.Len(t, loaded.Mapping, 2)
}

func TestClearMappingCache(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveMappingCache(ctx, "kraken-sync", &core.MappingCache{
		Mapping:    map[string]core.ExchangeListing{},
		LastUpdate: time.Now().UTC(),
		Source:     "kraken",
	}))
	require.NoError(t, store.ClearMappingCache(ctx, "kraken-sync"))
	require.NoError(t, store.ClearMappingCache(ctx, "kraken-sync"))

	loaded, err := store.LoadMappingCache(ctx, "kraken-sync")
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestRequestLogAggregation(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	outcomes := []core.RequestOutcome{
		{Job: "kraken-sync", Endpoint: "/coins/list", Success: true, StatusCode: 200, Latency: 100 * time.Millisecond},
		{Job: "kraken-sync", Endpoint: "/coins/bitcoin", Success: false, StatusCode: 429, Latency: 50 * time.Millisecond},
		{Job: "kraken-sync", Endpoint: "/coins/bitcoin", Success: false, StatusCode: 500, Latency: 150 * time.Millisecond},
		{Job: "kraken-sync", Endpoint: "/coins/bitcoin", Success: true, StatusCode: 200, Latency: 100 * time.Millisecond},
		{Job: "other-job", Endpoint: "/coins/list", Success: true, StatusCode: 200, Latency: 10 * time.Millisecond},
	}
	for _, o := range outcomes {
		require.NoError(t, store.SaveRequestOutcome(ctx, o))
	}

	stats, err := store.RequestStats(ctx, "kraken-sync")
	require.NoError(t, err)
	require.Len(t, stats, 2)

	require.Equal(t, "/coins/bitcoin", stats[0].Endpoint)
	require.Equal(t, 3, stats[0].Requests)
	require.Equal(t, 2, stats[0].Failures)
	require.Equal(t, 1, stats[0].RateLimited)
	require.Equal(t, int64(100), stats[0].AvgLatencyMS)

	require.Equal(t, "/coins/list", stats[1].Endpoint)
	require.Equal(t, 1, stats[1].Requests)
	require.Equal(t, 0, stats[1].Failures)
}

func TestRequestStatsEmptyJob(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	stats, err := store.RequestStats(ctx, "never-ran")
	require.NoError(t, err)
	require.Empty(t, stats)
}

func TestSaveRequestOutcomeRequiresJobAndEndpoint(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.Error(t, store.SaveRequestOutcome(ctx, core.RequestOutcome{Endpoint: "/ping"}))
	require.Error(t, store.SaveRequestOutcome(ctx, core.RequestOutcome{Job: "kraken-sync"}))
}

func TestClearRequestLog(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.SaveRequestOutcome(ctx, core.RequestOutcome{
		Job: "kraken-sync", Endpoint: "/ping", Success: true, StatusCode: 200,
	}))
	require.NoError(t, store.ClearRequestLog(ctx, "kraken-sync"))

	stats, err := store.RequestStats(ctx, "kraken-sync")
	require.NoError(t, err)
	require.Empty(t, stats)

	require.NoError(t, store.ClearRequestLog(ctx, "kraken-sync"))
}
