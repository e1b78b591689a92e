package cmd

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/coinsync/coinsync/internal/core/engine"
	"github.com/coinsync/coinsync/internal/observability"
	"github.com/coinsync/coinsync/internal/provider/coingecko"
)

var coinsLimit int

var coinsCmd = &cobra.Command{
	Use:   "coins",
	Short: "Inspect the provider coin universe",
}

var coinsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Fetch and print the provider's coin list",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.Logger()

		limiter := engine.NewRateLimiter(engine.RateConfig{
			Adaptive:   appCfg.Rate.Adaptive,
			FixedDelay: appCfg.Rate.FixedDelay,
		})
		executor := &engine.Executor{Limiter: limiter, Logger: logger, MaxAttempts: appCfg.Sync.MaxAttempts}
		provider := coingecko.NewClient(appCfg.Provider.BaseURL, appCfg.Provider.APIKey, executor, logger)

		coins, err := provider.ListCoins(cmd.Context())
		if err != nil {
			ExitWithCode(logger, ExitProviderFailure, "Failed to fetch coin list", err)
		}

		shown := coins
		if coinsLimit > 0 && coinsLimit < len(coins) {
			shown = coins[:coinsLimit]
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Symbol", "Name"})
		for _, coin := range shown {
			t.AppendRow(table.Row{coin.ID, coin.Symbol, coin.Name})
		}
		fmt.Println(t.Render())
		fmt.Printf("%d of %d coins shown\n", len(shown), len(coins))
		return nil
	},
}

var coinsPingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Check provider API reachability",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.Logger()

		limiter := engine.NewRateLimiter(engine.RateConfig{})
		executor := &engine.Executor{Limiter: limiter, Logger: logger, MaxAttempts: 1}
		provider := coingecko.NewClient(appCfg.Provider.BaseURL, appCfg.Provider.APIKey, executor, logger)

		if err := provider.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("provider unreachable: %w", err)
		}
		fmt.Println("provider reachable")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(coinsCmd)
	coinsCmd.AddCommand(coinsListCmd)
	coinsCmd.AddCommand(coinsPingCmd)
	coinsListCmd.Flags().IntVar(&coinsLimit, "limit", 25, "print at most N coins (0 = all)")
}
