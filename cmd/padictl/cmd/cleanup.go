package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthands/padi/internal/retention"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete diagnosis history older than the retention period",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close(ctx)

		cleaner := retention.NewCleaner(backend, cfg.Limits.Retention(), cfg.Retention.Interval(), logger)
		n, err := cleaner.RunOnce(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %d expired diagnoses\n", n)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanupCmd)
}
