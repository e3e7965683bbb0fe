package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"travelshare/internal/amqp"
	"travelshare/internal/backend"
	"travelshare/internal/cache"
	"travelshare/internal/cli"
	"travelshare/internal/core"
	apphttp "travelshare/internal/http"
	applog "travelshare/internal/log"
	"travelshare/internal/payment"
	"travelshare/internal/services"
	gsheet "travelshare/internal/sheets/google"
	"travelshare/internal/split"
	"travelshare/internal/users"
)

func main() {
	cfg := cli.LoadConfig()
	logger := cli.SetupLogger(cfg, applog.ComponentApp, os.Stdout)
	cli.MustValidate(logger, cfg)

	ctx := context.Background()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", "error", err)
		os.Exit(1)
	}
	store, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", "error", err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	if store.Cleanup != nil {
		defer func() {
			if err := store.Cleanup(); err != nil {
				logger.Error("Backend cleanup failed", "error", err)
			}
		}()
	}

	directory := users.NewDirectory(logger, users.SeedUsers()...)
	if err := directory.Subscribe(users.NewProfileChangeLogger(logger)); err != nil {
		logger.Warn("Failed to subscribe profile change logger", "error", err)
	}

	// Payment confirmations are always logged; AMQP hands them to the
	// notifier worker when configured.
	notifiers := payment.Notifiers{payment.NewLogMailer(logger)}
	if cfg.AMQPURL != "" {
		amqpClient, err := amqp.DialWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, 5)
		if err != nil {
			logger.Warn("AMQP unavailable, payment notifications are only logged", "error", err)
		} else {
			defer amqpClient.Close()
			notifiers = append(notifiers, amqp.NewNotifier(amqpClient))
			logger.Info("Initialized AMQP notifier", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	}
	authorize := payment.WithNotification(payment.Authorize, notifiers, logger, payment.Options{
		Timeout: cfg.NotifyTimeout,
	})

	reportCache := cache.NewLRUCache[int64, core.ReportSummary](cfg.ReportCacheSize, cfg.ReportCacheTTL)
	cacheManager := cache.NewManager(logger)
	cacheManager.Register(reportCache)
	cacheManager.StartCleanup(cfg.ReportCacheTTL)
	defer cacheManager.Stop()

	deps := services.Deps{
		Store:       store.Store,
		Users:       directory,
		Calculator:  split.NewCalculator(cfg.SharePolicy()),
		Authorize:   authorize,
		ReportCache: reportCache,
		Logger:      logger,
	}
	if cfg.ExportEnabled() {
		exporter, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetPrefix:     cfg.GoogleReportSheetPrefix,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets exporter", "error", err)
			os.Exit(1)
		}
		deps.Exporter = exporter
		logger.Info("Google Sheets report export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets report export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}
	svc := services.NewExpenseService(deps)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:             ":" + cfg.Port,
		PaymentRateLimit: cfg.PaymentRateLimit,
		Logger:           logger,
	}, svc)

	stopped := cli.GracefulShutdown(logger, 30*time.Second, srv.Shutdown)

	logger.Info("Starting travelshare server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"share_policy", cfg.SharePolicy().String())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}

	<-stopped.Done()
	logger.Info("Server stopped gracefully")
}
