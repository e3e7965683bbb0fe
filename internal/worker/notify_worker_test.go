package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"travelshare/internal/amqp"
	"travelshare/internal/cache"
	"travelshare/internal/core"
	"travelshare/internal/payment"
)

type recordingNotifier struct {
	mu   sync.Mutex
	got  []payment.Notification
	fail error
}

func (r *recordingNotifier) Notify(ctx context.Context, n payment.Notification) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("delivery context has no deadline")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.got = append(r.got, n)
	return nil
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func approvedMessage(tx string) *amqp.PaymentNotificationMessage {
	return &amqp.PaymentNotificationMessage{
		Type:          amqp.MessageTypePaymentNotification,
		Email:         "student@travelshare.com",
		UserID:        1,
		ExpenseID:     4,
		Amount:        decimal.RequireFromString("30"),
		Currency:      "EUR",
		Card:          "************1111",
		Status:        core.StatusApproved,
		TransactionID: tx,
		Timestamp:     time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}
}

func TestHandlePaymentNotification_Delivers(t *testing.T) {
	rec := &recordingNotifier{}
	w := NewNotifyWorker(rec, cache.NewLRUCache[string, time.Time](16, time.Hour), time.Second, nil)

	if err := w.HandlePaymentNotification(context.Background(), approvedMessage("tx-1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.count() != 1 {
		t.Fatalf("deliveries = %d, want 1", rec.count())
	}
	got := rec.got[0]
	if got.Email != "student@travelshare.com" || got.ExpenseID != 4 || got.TransactionID != "tx-1" {
		t.Errorf("delivered %+v", got)
	}
	if !got.Amount.Equal(decimal.NewFromInt(30)) {
		t.Errorf("amount = %s", got.Amount)
	}
}

func TestHandlePaymentNotification_SkipsDuplicates(t *testing.T) {
	rec := &recordingNotifier{}
	w := NewNotifyWorker(rec, cache.NewLRUCache[string, time.Time](16, time.Hour), time.Second, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := w.HandlePaymentNotification(ctx, approvedMessage("tx-dup")); err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
	}
	// Declines carry no transaction id and are never deduplicated.
	declined := approvedMessage("")
	declined.Status = core.StatusDeclined
	for i := 0; i < 2; i++ {
		if err := w.HandlePaymentNotification(ctx, declined); err != nil {
			t.Fatalf("declined %d: %v", i, err)
		}
	}

	if rec.count() != 3 {
		t.Errorf("deliveries = %d, want 3", rec.count())
	}
	if s := w.Stats(); s.Delivered != 3 || s.Duplicates != 2 || s.Failed != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestHandlePaymentNotification_FailureIsRetried(t *testing.T) {
	rec := &recordingNotifier{fail: errors.New("smtp down")}
	w := NewNotifyWorker(rec, cache.NewLRUCache[string, time.Time](16, time.Hour), time.Second, nil)
	ctx := context.Background()

	if err := w.HandlePaymentNotification(ctx, approvedMessage("tx-2")); err == nil {
		t.Fatal("expected error so the message is requeued")
	}

	rec.mu.Lock()
	rec.fail = nil
	rec.mu.Unlock()

	// A failed delivery is not remembered, so the redelivery goes out.
	if err := w.HandlePaymentNotification(ctx, approvedMessage("tx-2")); err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if s := w.Stats(); s.Delivered != 1 || s.Failed != 1 || s.Duplicates != 0 {
		t.Errorf("stats = %+v", s)
	}
}

func TestHandlePaymentNotification_NoDedupeWithoutCache(t *testing.T) {
	rec := &recordingNotifier{}
	w := NewNotifyWorker(rec, nil, 0, nil)
	for i := 0; i < 2; i++ {
		if err := w.HandlePaymentNotification(context.Background(), approvedMessage("tx-3")); err != nil {
			t.Fatal(err)
		}
	}
	if rec.count() != 2 {
		t.Errorf("deliveries = %d, want 2", rec.count())
	}
}

type fakeConsumer struct {
	msgs []*amqp.PaymentNotificationMessage
	err  error
}

func (f *fakeConsumer) ConsumePaymentNotifications(ctx context.Context, handler func(context.Context, *amqp.PaymentNotificationMessage) error) error {
	for _, m := range f.msgs {
		_ = handler(ctx, m)
	}
	if f.err != nil {
		return f.err
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestRun(t *testing.T) {
	rec := &recordingNotifier{}
	w := NewNotifyWorker(rec, cache.NewLRUCache[string, time.Time](16, time.Hour), time.Second, nil)
	consumer := &fakeConsumer{msgs: []*amqp.PaymentNotificationMessage{
		approvedMessage("a"), approvedMessage("b"), approvedMessage("a"),
	}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx, consumer, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for rec.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("messages not delivered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	if err := <-done; err != nil {
		t.Fatalf("Run returned %v after cancel", err)
	}
	if s := w.Stats(); s.Delivered != 2 || s.Duplicates != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestRun_ConsumerError(t *testing.T) {
	w := NewNotifyWorker(&recordingNotifier{}, nil, time.Second, nil)
	want := errors.New("message channel closed")
	err := w.Run(context.Background(), &fakeConsumer{err: want}, 0)
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}
