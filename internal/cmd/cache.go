package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coinsync/coinsync/internal/observability"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and manage the stored mapping cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <job>",
	Short: "Print the stored mapping for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.Logger()

		st, err := openStore(cmd.Context())
		if err != nil {
			ExitWithCode(logger, ExitStoreUnavailable, "Failed to open store", err)
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		cache, err := st.LoadMappingCache(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("load mapping cache: %w", err)
		}
		if cache == nil {
			fmt.Printf("no mapping cache for %s\n", args[0])
			return nil
		}

		data, err := json.MarshalIndent(cache, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <job>",
	Short: "Delete the stored mapping cache for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.Logger()

		st, err := openStore(cmd.Context())
		if err != nil {
			ExitWithCode(logger, ExitStoreUnavailable, "Failed to open store", err)
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		if err := st.ClearMappingCache(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("clear mapping cache: %w", err)
		}
		fmt.Printf("mapping cache cleared for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
