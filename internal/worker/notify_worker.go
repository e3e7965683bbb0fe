package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"travelshare/internal/amqp"
	"travelshare/internal/cache"
	applog "travelshare/internal/log"
	"travelshare/internal/payment"
)

// Consumer delivers queued payment notifications to a handler until ctx ends.
type Consumer interface {
	ConsumePaymentNotifications(ctx context.Context, handler func(context.Context, *amqp.PaymentNotificationMessage) error) error
}

// Stats counts what the worker did since it started.
type Stats struct {
	Delivered  int64
	Duplicates int64
	Failed     int64
}

// NotifyWorker sends the payment confirmations published by the API.
// Redelivered messages for a transaction that was already delivered are
// acknowledged without sending twice.
type NotifyWorker struct {
	delivery payment.Notifier
	seen     cache.Cache[string, time.Time]
	timeout  time.Duration
	logger   *applog.Logger

	delivered  atomic.Int64
	duplicates atomic.Int64
	failed     atomic.Int64
}

// NewNotifyWorker creates a worker delivering through delivery. seen may be
// nil, which disables duplicate suppression. A zero timeout means 10 seconds
// per delivery.
func NewNotifyWorker(delivery payment.Notifier, seen cache.Cache[string, time.Time], timeout time.Duration, logger *applog.Logger) *NotifyWorker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = applog.Discard()
	}
	return &NotifyWorker{
		delivery: delivery,
		seen:     seen,
		timeout:  timeout,
		logger:   logger.WithComponent(applog.ComponentWorker),
	}
}

// HandlePaymentNotification processes a single payment notification from
// AMQP. A returned error makes the consumer requeue the message.
func (w *NotifyWorker) HandlePaymentNotification(ctx context.Context, msg *amqp.PaymentNotificationMessage) error {
	w.logger.DebugContext(ctx, "Processing payment notification",
		applog.FieldTransactionID, msg.TransactionID,
		applog.FieldPaymentStatus, msg.Status)

	if msg.TransactionID != "" && w.seen != nil {
		if _, ok := w.seen.Get(msg.TransactionID); ok {
			w.duplicates.Add(1)
			w.logger.InfoContext(ctx, "Skipping already delivered notification",
				applog.FieldTransactionID, msg.TransactionID)
			return nil
		}
	}

	dctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	n := msg.Notification()
	if err := w.delivery.Notify(dctx, n); err != nil {
		w.failed.Add(1)
		w.logger.ErrorContext(ctx, "Failed to deliver payment notification",
			applog.NewFields().
				WithPayment(n.Status, n.TransactionID, n.Amount, n.Currency, n.Card).
				WithError(err).
				ToSlice()...)
		return fmt.Errorf("deliver notification: %w", err)
	}

	if msg.TransactionID != "" && w.seen != nil {
		w.seen.Set(msg.TransactionID, time.Now())
	}
	w.delivered.Add(1)
	return nil
}

// Run consumes notifications until ctx ends. Stats are logged every
// statsInterval; zero disables the periodic log.
func (w *NotifyWorker) Run(ctx context.Context, consumer Consumer, statsInterval time.Duration) error {
	if statsInterval > 0 {
		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					w.LogStats(ctx)
				}
			}
		}()
	}

	err := consumer.ConsumePaymentNotifications(ctx, w.HandlePaymentNotification)
	w.LogStats(context.WithoutCancel(ctx))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *NotifyWorker) Stats() Stats {
	return Stats{
		Delivered:  w.delivered.Load(),
		Duplicates: w.duplicates.Load(),
		Failed:     w.failed.Load(),
	}
}

func (w *NotifyWorker) LogStats(ctx context.Context) {
	s := w.Stats()
	w.logger.InfoContext(ctx, "Notification worker stats",
		"delivered", s.Delivered,
		"duplicates", s.Duplicates,
		"failed", s.Failed)
}
