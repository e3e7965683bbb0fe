package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"travelshare/internal/core"
	"travelshare/internal/payment"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
		{64, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"closed connection", errors.New("connection closed"), true},
		{"EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"amqp closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"other", errors.New("invalid input"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "travelshare", queueName: "payment_notifications"}

	if client.isCircuitOpen() {
		t.Fatal("circuit breaker should be closed initially")
	}

	atomic.StoreInt64(&client.failureCount, 3)
	atomic.StoreInt32(&client.state, StateOpen)
	client.recordSuccess()
	if client.isCircuitOpen() || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Fatal("success should close the circuit and reset failures")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Fatal("circuit should go half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Fatal("state should be half-open")
	}

	client.recordFailure()
	if atomic.LoadInt32(&client.state) != StateOpen {
		t.Fatal("a failure while half-open should reopen the circuit")
	}
}

func TestPublishGuards(t *testing.T) {
	client := &Client{exchangeName: "travelshare", queueName: "payment_notifications"}
	msg := MessageFromNotification(payment.Notification{Status: core.StatusApproved})

	atomic.StoreInt32(&client.state, StateOpen)
	client.lastFailure = time.Now()
	err := client.PublishPaymentNotification(context.Background(), msg)
	if !errors.Is(err, ErrCircuitOpen) || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Fatalf("expected circuit breaker error, got %v", err)
	}

	client.recordSuccess()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.PublishPaymentNotification(ctx, msg); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if err := client.PublishPaymentNotification(context.Background(), msg); err == nil {
		t.Fatal("expected error without a connection")
	}
	if atomic.LoadInt64(&client.failureCount) != 1 {
		t.Fatalf("failure not recorded")
	}
}

func TestPaymentNotificationMessageJSON(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := MessageFromNotification(payment.Notification{
		Email:         "student@travelshare.com",
		UserID:        1,
		ExpenseID:     4,
		Amount:        decimal.RequireFromString("30.00"),
		Currency:      "EUR",
		Card:          "************1111",
		Status:        core.StatusApproved,
		TransactionID: "tx-1",
		OccurredAt:    ts,
	})

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	parsed, err := PaymentNotificationMessageFromJSON(body)
	if err != nil {
		t.Fatalf("FromJSON() error = %v", err)
	}
	n := parsed.Notification()
	if n.Email != "student@travelshare.com" || !n.Amount.Equal(decimal.NewFromInt(30)) || !n.OccurredAt.Equal(ts) || n.TransactionID != "tx-1" {
		t.Fatalf("unexpected notification: %+v", n)
	}
}

func TestPaymentNotificationMessageRejectsBadInput(t *testing.T) {
	for _, body := range []string{
		`{"type": "payment_notification", "amount": "x"}`,
		`{"type": "expense_sync", "status": "APPROVED"}`,
		`{"type": "payment_notification"}`,
		`not json`,
	} {
		if _, err := PaymentNotificationMessageFromJSON([]byte(body)); err == nil {
			t.Errorf("expected error for %s", body)
		}
	}
}

type fakeAck struct {
	acked, nacked, requeued int
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked++; return nil }
func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	if requeue {
		f.requeued++
	}
	return nil
}
func (f *fakeAck) Reject(uint64, bool) error { return nil }

func TestHandleDelivery(t *testing.T) {
	good, _ := MessageFromNotification(payment.Notification{Status: core.StatusDeclined, Message: "Invalid card number"}).ToJSON()
	ctx := context.Background()

	tests := []struct {
		name       string
		body       []byte
		handlerErr error
		acked      int
		nacked     int
		requeued   int
	}{
		{"handled", good, nil, 1, 0, 0},
		{"handler failure requeues", good, errors.New("smtp down"), 0, 1, 1},
		{"malformed is dropped", []byte("{"), nil, 0, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ack := &fakeAck{}
			calls := 0
			handleDelivery(ctx, amqp091.Delivery{Acknowledger: ack, Body: tt.body}, func(context.Context, *PaymentNotificationMessage) error {
				calls++
				return tt.handlerErr
			})
			if ack.acked != tt.acked || ack.nacked != tt.nacked || ack.requeued != tt.requeued {
				t.Fatalf("ack=%d nack=%d requeue=%d", ack.acked, ack.nacked, ack.requeued)
			}
			if tt.name == "malformed is dropped" && calls != 0 {
				t.Fatalf("handler called for malformed message")
			}
		})
	}
}

type recordingPublisher struct {
	got *PaymentNotificationMessage
}

func (r *recordingPublisher) PublishPaymentNotification(_ context.Context, msg *PaymentNotificationMessage) error {
	r.got = msg
	return nil
}

func TestNotifierPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	err := NewNotifier(pub).Notify(context.Background(), payment.Notification{Email: "a@b.c", Status: core.StatusApproved})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if pub.got == nil || pub.got.Type != MessageTypePaymentNotification || pub.got.Email != "a@b.c" {
		t.Fatalf("unexpected message: %+v", pub.got)
	}
}
