package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coinsync/coinsync/internal/observability"
	"github.com/coinsync/coinsync/internal/output"
)

var checkpointFormat string

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Inspect and manage stored batch checkpoints",
}

var checkpointShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored checkpoints",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.Logger()

		format, err := output.ParseFormat(checkpointFormat)
		if err != nil {
			return err
		}

		st, err := openStore(cmd.Context())
		if err != nil {
			ExitWithCode(logger, ExitStoreUnavailable, "Failed to open store", err)
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		checkpoints, err := st.ListCheckpoints(cmd.Context())
		if err != nil {
			return fmt.Errorf("list checkpoints: %w", err)
		}

		rendered, err := output.NewFormatter(format).FormatCheckpoints(checkpoints)
		if err != nil {
			return err
		}
		fmt.Println(rendered)
		return nil
	},
}

var checkpointClearCmd = &cobra.Command{
	Use:   "clear <job>",
	Short: "Delete the stored checkpoint for a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := observability.Logger()

		st, err := openStore(cmd.Context())
		if err != nil {
			ExitWithCode(logger, ExitStoreUnavailable, "Failed to open store", err)
		}
		defer st.Close() // nolint:errcheck // best-effort cleanup

		if err := st.ClearCheckpoint(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("clear checkpoint: %w", err)
		}
		fmt.Printf("checkpoint cleared for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkpointCmd)
	checkpointCmd.AddCommand(checkpointShowCmd)
	checkpointCmd.AddCommand(checkpointClearCmd)
	checkpointShowCmd.Flags().StringVarP(&checkpointFormat, "format", "f", "table", "output format: table or json")
}
