// Package cmd provides the padictl commands.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/agenthands/padi/internal/config"
	"github.com/agenthands/padi/internal/logging"
	"github.com/agenthands/padi/internal/server"
	"github.com/agenthands/padi/internal/store"
)

const version = "0.1.0"

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "padictl",
	Short: "Operate the rice disease diagnosis service",
	Long: `padictl manages the knowledge base and diagnosis history of the rice
disease expert system and runs diagnoses from the command line.

Examples:
  padictl seed --kb config/knowledge.yaml
  padictl diagnose --symptoms 1,2,3 --certainty 1=0.8,2=0.6
  padictl cleanup`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $CONFIG_PATH or "+config.DefaultPath+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() error {
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	var err error
	if path == "" {
		cfg, err = config.LoadOrDefault(config.DefaultPath)
	} else {
		cfg, err = config.Load(path)
	}
	if err != nil {
		return err
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return err
	}

	logCfg := cfg.Logging
	logCfg.Output = "stderr"
	if verbose {
		logCfg.Level = "debug"
	}
	logger, err = logging.New(logCfg)
	if err != nil {
		return fmt.Errorf("error initializing logging: %w", err)
	}
	return nil
}

func openBackend(ctx context.Context) (store.Backend, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return server.OpenBackend(ctx, cfg, logger)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "padictl version %s\n", version)
	},
}
