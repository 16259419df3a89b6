package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agenthands/padi/internal/kb"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the knowledge base with a YAML seed file",
	Long: `Load symptoms, diseases and rules from a YAML file into the configured
store. The existing knowledge base is replaced; diagnosis history is kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := seedFile
		if path == "" {
			path = cfg.Store.SeedFile
		}
		if path == "" {
			return fmt.Errorf("no seed file given; use --kb or set store.seed_file")
		}

		seed, err := kb.LoadSeedFile(path)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close(ctx)

		if err := backend.Seed(ctx, seed); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d symptoms, %d diseases, %d rules from %s\n",
			len(seed.Symptoms), len(seed.Diseases), len(seed.Rules), path)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "kb", "", "knowledge base YAML file (default is store.seed_file)")
	rootCmd.AddCommand(seedCmd)
}
