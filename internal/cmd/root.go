// Package cmd contains the coinsync CLI commands.
package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/coinsync/coinsync/internal/config"
	"github.com/coinsync/coinsync/internal/core/store"
	"github.com/coinsync/coinsync/internal/observability"
)

var (
	cfgFile string
	verbose bool

	appCfg *config.Config

	// Version info set by main package.
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "coinsync",
	Short: "Sync coin listings against an exchange with resumable batches",
	Long: `coinsync maps the coin universe of a market-data provider onto the trading
pairs of an exchange. Runs are rate limited, retried and checkpointed, so an
interrupted sync resumes where it left off.

Use the subcommands to perform specific operations.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/coinsync/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")
}

// initConfig reads the config file and environment, then wires the CLI
// logger.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		ExitWithCodeStderr(ExitConfigInvalid, "Failed to load configuration", err)
	}
	appCfg = cfg

	observability.InitCLILogger(cfg.Logging.Level, cfg.Logging.Format, verbose)
}

// openStore opens and migrates the configured store.
func openStore(ctx context.Context) (*store.Store, error) {
	s, err := store.Open(ctx, appCfg.Store)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}
