package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openquant/collector/internal/app"
)

// newRunCmd creates and configures the 'run' subcommand, which brings up
// the full module set and blocks until a shutdown signal arrives.
func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Starts the collection service",
		Long: `Builds the configured backends, starts every enabled module in
dependency order, and serves the management API until SIGINT or SIGTERM.`,
		RunE: runRunCommand,
	}
}

func runRunCommand(cmd *cobra.Command, _ []string) error {
	cfg, cfgPath, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	if cfgPath != "" {
		a.Logger.Info("using config file", zap.String("path", cfgPath))
	} else {
		a.Logger.Info("no config file found; using defaults and environment variables")
	}

	if err := a.Start(ctx); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
		defer cancel()
		if serr := a.Shutdown(shutdownCtx); serr != nil {
			a.Logger.Warn("shutdown after failed start", zap.Error(serr))
		}
		return fmt.Errorf("start modules: %w", err)
	}
	a.Logger.Info("all modules started")

	<-ctx.Done()
	stop()
	a.Logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout(cfg))
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	a.Logger.Info("shutdown complete")
	return nil
}

func shutdownTimeout(cfg app.Config) time.Duration {
	if cfg.Manager.ShutdownTimeout <= 0 {
		return 30 * time.Second
	}
	return cfg.Manager.ShutdownTimeout
}
