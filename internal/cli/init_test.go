package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"travelshare/internal/config"
	applog "travelshare/internal/log"
)

func TestSetupLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn"}, applog.ComponentWorker, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info logged at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "component=worker") {
		t.Errorf("unexpected output: %s", out)
	}
}

func TestShutdown(t *testing.T) {
	logger := applog.Discard()

	var gotDeadline bool
	shutdown(context.Background(), logger, time.Second, func(ctx context.Context) error {
		_, gotDeadline = ctx.Deadline()
		return nil
	})
	if !gotDeadline {
		t.Error("cleanup context has no deadline")
	}

	// A cancelled parent must not cut cleanup short.
	parent, cancel := context.WithCancel(context.Background())
	cancel()
	var cleanupErr error
	shutdown(parent, logger, time.Second, func(ctx context.Context) error {
		cleanupErr = ctx.Err()
		return errors.New("close failed")
	})
	if cleanupErr != nil {
		t.Errorf("cleanup context already done: %v", cleanupErr)
	}

	shutdown(context.Background(), logger, time.Second, nil)
}
