package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"travelshare/internal/core"
	applog "travelshare/internal/log"
)

// Notification describes one payment attempt for confirmation mail.
type Notification struct {
	Email         string          `json:"email"`
	UserID        int64           `json:"user_id,omitempty"`
	ExpenseID     int64           `json:"expense_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Card          string          `json:"card"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Message       string          `json:"message,omitempty"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// Notifier delivers a Notification somewhere.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification) error

func (f NotifierFunc) Notify(ctx context.Context, n Notification) error { return f(ctx, n) }

// Recipient identifies who a payment notification is about.
type Recipient struct {
	Email     string
	UserID    int64
	ExpenseID int64
}

type recipientKey struct{}

// WithRecipient attaches the notification recipient to ctx.
func WithRecipient(ctx context.Context, r Recipient) context.Context {
	return context.WithValue(ctx, recipientKey{}, r)
}

// RecipientFrom returns the recipient stored by WithRecipient.
func RecipientFrom(ctx context.Context) (Recipient, bool) {
	r, ok := ctx.Value(recipientKey{}).(Recipient)
	return r, ok
}

// Options tunes WithNotification.
type Options struct {
	// Timeout bounds a single dispatch. Zero means 5 seconds.
	Timeout time.Duration
	Now     func() time.Time
	// Done is called after the dispatch finished, mostly for tests.
	Done func(Notification, error)
}

// WithNotification returns an AuthorizeFunc that runs authorize and then
// hands the outcome to notifier in the background. The notifier gets a
// context detached from the caller's cancellation and bounded by
// opts.Timeout. Its failures are logged and never change the result.
func WithNotification(authorize AuthorizeFunc, notifier Notifier, logger *applog.Logger, opts Options) AuthorizeFunc {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = applog.Discard()
	}
	logger = logger.WithComponent(applog.ComponentNotify)

	return func(ctx context.Context, p core.Payment) core.PaymentResult {
		result := authorize(ctx, p)
		if notifier == nil {
			return result
		}

		rcpt, _ := RecipientFrom(ctx)
		n := Notification{
			Email:         rcpt.Email,
			UserID:        rcpt.UserID,
			ExpenseID:     rcpt.ExpenseID,
			Amount:        p.Amount(),
			Currency:      p.Currency(),
			Card:          p.MaskedCard(),
			Status:        result.Status,
			TransactionID: result.TransactionID,
			Message:       result.Message,
			OccurredAt:    opts.Now(),
		}

		go func() {
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), opts.Timeout)
			defer cancel()

			err := notifier.Notify(nctx, n)
			if err != nil {
				logger.WarnContext(nctx, "Payment notification failed",
					applog.NewFields().
						WithPayment(n.Status, n.TransactionID, n.Amount, n.Currency, n.Card).
						WithError(err).
						ToSlice()...)
			}
			if opts.Done != nil {
				opts.Done(n, err)
			}
		}()
		return result
	}
}

// Notifiers fans a notification out to every notifier concurrently and
// joins their errors.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, n Notification) error {
	errs := make([]error, len(ns))
	var g errgroup.Group
	for i, notifier := range ns {
		g.Go(func() error {
			if err := notifier.Notify(ctx, n); err != nil {
				errs[i] = fmt.Errorf("notifier %d: %w", i, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// LogMailer pretends to send the confirmation mail by logging it.
type LogMailer struct {
	logger *applog.Logger
}

func NewLogMailer(logger *applog.Logger) *LogMailer {
	if logger == nil {
		logger = applog.Discard()
	}
	return &LogMailer{logger: logger.WithComponent(applog.ComponentNotify)}
}

func (m *LogMailer) Notify(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email := n.Email
	if email == "" {
		email = "unknown recipient"
	}
	m.logger.InfoContext(ctx, fmt.Sprintf("[EMAIL] sent to %s: payment %s %s", email, core.FormatAmount(n.Amount), n.Currency),
		applog.NewFields().
			WithPayment(n.Status, n.TransactionID, n.Amount, n.Currency, n.Card).
			ToSlice()...)
	return nil
}
