package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travelshare/internal/amqp"
	"travelshare/internal/cache"
	"travelshare/internal/cli"
	applog "travelshare/internal/log"
	"travelshare/internal/payment"
	"travelshare/internal/worker"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentWorker, os.Stdout)

	logger.Info("Starting travelshare-notifier")

	cli.MustValidate(logger, cfg)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the notifier worker")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	amqpClient, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 10)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	// Remembers delivered transactions for a day so redeliveries are not
	// mailed twice.
	seen := cache.NewLRUCache[string, time.Time](10000, 24*time.Hour)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(seen)
	cacheManager.StartCleanup(time.Hour)
	defer cacheManager.Stop()

	w := worker.NewNotifyWorker(payment.NewLogMailer(logger), seen, cfg.NotifyTimeout, logger)

	if err := w.Run(ctx, amqpClient, 10*time.Minute); err != nil {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Notifier worker stopped")
}
