package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/coinsync/coinsync/internal/core"
	"github.com/coinsync/coinsync/internal/core/engine"
	"github.com/coinsync/coinsync/internal/core/store"
	"github.com/coinsync/coinsync/internal/mapper"
	"github.com/coinsync/coinsync/internal/mapper/kraken"
	"github.com/coinsync/coinsync/internal/observability"
	"github.com/coinsync/coinsync/internal/output"
	"github.com/coinsync/coinsync/internal/provider/coingecko"
)

var (
	syncJob         string
	syncLimit       int
	syncFormat      string
	syncMappingFile string
	syncFresh       bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Map the provider coin universe onto the exchange",
	Long: `Fetch the full coin list from the provider, resolve each coin against the
exchange's trading pairs and persist the mapping. Progress is checkpointed,
so an interrupted run (Ctrl+C) resumes from where it stopped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		logger := observability.Logger()

		format, err := output.ParseFormat(firstNonEmpty(syncFormat, appCfg.Output.Format))
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			ExitWithCode(logger, ExitStoreUnavailable, "Failed to open store", err)
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		job := firstNonEmpty(syncJob, appCfg.Sync.Job)
		if syncFresh {
			if err := st.ClearCheckpoint(ctx, job); err != nil {
				return fmt.Errorf("clear previous checkpoint: %w", err)
			}
			if err := st.ClearMappingCache(ctx, job); err != nil {
				return fmt.Errorf("clear previous mapping cache: %w", err)
			}
			if err := st.ClearRequestLog(ctx, job); err != nil {
				return fmt.Errorf("clear previous request log: %w", err)
			}
		}

		limiter := engine.NewRateLimiter(engine.RateConfig{
			Adaptive:         appCfg.Rate.Adaptive,
			FixedDelay:       appCfg.Rate.FixedDelay,
			MinPerMinute:     appCfg.Rate.MinPerMinute,
			MaxPerMinute:     appCfg.Rate.MaxPerMinute,
			InitialPerMinute: appCfg.Rate.InitialPerMinute,
			FactorUp:         appCfg.Rate.FactorUp,
			FactorDown:       appCfg.Rate.FactorDown,
			SuccessStreak:    appCfg.Rate.SuccessStreak,
			FailureStreak:    appCfg.Rate.FailureStreak,
			WindowSize:       appCfg.Rate.WindowSize,
			RequestTimeout:   appCfg.Rate.RequestTimeout,
		})
		limiter.Logger = logger

		executor := &engine.Executor{
			Limiter:     limiter,
			Logger:      logger,
			MaxAttempts: appCfg.Sync.MaxAttempts,
			Recorder:    st,
			Job:         job,
		}

		provider := coingecko.NewClient(appCfg.Provider.BaseURL, appCfg.Provider.APIKey, executor, logger)
		if appCfg.Provider.Timeout > 0 {
			provider.HTTPClient.Timeout = appCfg.Provider.Timeout
		}

		krakenMapper := kraken.New(appCfg.Exchange.BaseURL, appCfg.Exchange.Target, provider, logger)
		if appCfg.Exchange.Timeout > 0 {
			krakenMapper.HTTPClient.Timeout = appCfg.Exchange.Timeout
		}

		var exchange mapper.Mapper = krakenMapper
		if err := exchange.LoadExchangeData(ctx); err != nil {
			ExitWithCode(logger, ExitProviderFailure, "Failed to load exchange data", err)
		}

		coins, err := provider.ListCoins(ctx)
		if err != nil {
			ExitWithCode(logger, ExitProviderFailure, "Failed to fetch coin list", err)
		}
		if syncLimit > 0 && syncLimit < len(coins) {
			coins = coins[:syncLimit]
		}

		processor := &engine.Processor{
			Checkpoints:     &ttlCheckpointStore{Store: st, maxAge: appCfg.Sync.CheckpointTTL},
			Cache:           st,
			Lookup:          exchange,
			Logger:          logger,
			CheckpointEvery: appCfg.Sync.CheckpointEvery,
			BatchSize:       appCfg.Sync.BatchSize,
			Pacing:          appCfg.Sync.EntityPacing,
			Source:          exchange.ExchangeName(),
		}

		report, err := processor.Run(ctx, job, coins)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Warn("sync interrupted, progress checkpointed",
					zap.String("job", job))
				os.Exit(int(ExitInterrupted))
			}
			return err
		}

		if file := firstNonEmpty(syncMappingFile, appCfg.Output.MappingFile); file != "" {
			if err := writeMappingFile(file, report); err != nil {
				logger.Warn("failed to write mapping file",
					zap.String("file", file), zap.Error(err))
			} else {
				logger.Info("wrote mapping file",
					zap.String("file", file), zap.Int("mapped", report.Mapped))
			}
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

// writeMappingFile exports the final mapping the way downstream importers
// expect it: a JSON object keyed by coin id.
func writeMappingFile(path string, report *core.SyncReport) error {
	payload := struct {
		Mapping    map[string]core.ExchangeListing `json:"mapping"`
		LastUpdate time.Time                       `json:"last_update"`
		Job        string                          `json:"job"`
	}{
		Mapping:    report.Mapping,
		LastUpdate: time.Now().UTC(),
		Job:        report.Job,
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode mapping: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ttlCheckpointStore applies the configured checkpoint TTL on load instead of
// the store's default window.
type ttlCheckpointStore struct {
	*store.Store
	maxAge time.Duration
}

func (t *ttlCheckpointStore) LoadCheckpoint(ctx context.Context, job string) (*core.Checkpoint, error) {
	if t.maxAge <= 0 {
		return t.Store.LoadCheckpoint(ctx, job)
	}
	return t.Store.LoadCheckpointMaxAge(ctx, job, t.maxAge)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncJob, "job", "", "job key for checkpointing (default from config)")
	syncCmd.Flags().IntVar(&syncLimit, "limit", 0, "process at most N coins (0 = all)")
	syncCmd.Flags().StringVarP(&syncFormat, "format", "f", "", "output format: table or json")
	syncCmd.Flags().StringVar(&syncMappingFile, "mapping-file", "", "write the final mapping to this JSON file")
	syncCmd.Flags().BoolVar(&syncFresh, "fresh", false, "discard any previous checkpoint and start over")
}
