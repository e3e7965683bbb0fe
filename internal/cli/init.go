// Package cli provides the startup steps shared by cmd/travelshare and
// cmd/travelshare-notifier.
package cli

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"travelshare/internal/config"
	applog "travelshare/internal/log"
)

// LoadConfig loads the .env file for local development, if present, and
// reads the configuration from the environment.
func LoadConfig() *config.Config {
	_ = godotenv.Load()
	return config.Load()
}

// SetupLogger builds the process logger at the configured level and makes it
// the slog default.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	if out == nil {
		out = os.Stdout
	}
	logger := applog.New(applog.Config{
		Level:     applog.ParseLevel(cfg.LogLevel),
		Component: component,
		Output:    out,
	})
	applog.SetDefault(logger)
	return logger
}

// MustValidate exits the process when the configuration is invalid.
func MustValidate(logger *applog.Logger, cfg *config.Config) {
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
}

// GracefulShutdown runs cleanup once SIGINT or SIGTERM arrives, bounded by
// timeout, and then cancels the returned context.
func GracefulShutdown(logger *applog.Logger, timeout time.Duration, cleanup func(context.Context) error) context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())
		shutdown(ctx, logger, timeout, cleanup)
		cancel()
	}()

	return ctx
}

func shutdown(ctx context.Context, logger *applog.Logger, timeout time.Duration, cleanup func(context.Context) error) {
	if cleanup == nil {
		return
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer shutdownCancel()

	if err := cleanup(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
		return
	}
	logger.Info("Shutdown complete")
}
