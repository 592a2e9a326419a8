// Package cmd defines and implements the CLI commands for the collector
// executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/openquant/collector/internal/app"
	"github.com/openquant/collector/pkg/config"
)

var (
	cfgFile  string
	devMode  bool
	logLevel string
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "collector",
		Short: "A modular financial data collection service.",
		Long: `collector ingests price and index data from configured web sources.
A lifecycle manager starts the storage, archive, queue, collection, scheduler,
and API modules in dependency order, keeps them healthy, and restarts the ones
that fail.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ., /etc/collector/, $HOME/.collector)")
	cmd.PersistentFlags().BoolVar(&devMode, "dev", false,
		"enable development logging (console output, debug-friendly)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override the configured log level")

	cmd.AddCommand(newRunCmd(), newStatusCmd())
	return cmd
}

// loadConfig initializes Viper, decodes the application config, and applies
// command-line overrides. The returned path names the config file in use,
// empty when running on defaults.
func loadConfig() (app.Config, string, error) {
	used, err := config.Init(cfgFile)
	if err != nil {
		return app.Config{}, "", fmt.Errorf("read config: %w", err)
	}
	cfg, err := app.LoadConfig()
	if err != nil {
		return app.Config{}, "", err
	}
	if devMode {
		cfg.Logging.Development = true
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, used, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
