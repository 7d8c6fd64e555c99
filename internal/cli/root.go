package cli

import (
	"fmt"
	"os"

	"mijob/internal/config"
	"mijob/internal/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mijob",
	Short: "MiJob marketplace backend",
	Long: `MiJob connects companies and individuals posting missions with the
workers who take them. Running without a subcommand starts the API server.`,
	SilenceUsage: true,
	RunE:         runServe,
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads the environment and configures the logger from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.LogLevel, !cfg.IsProduction())
	return cfg, nil
}
