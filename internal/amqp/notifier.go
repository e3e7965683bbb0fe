package amqp

import (
	"context"

	"travelshare/internal/payment"
)

// Publisher is the subset of Client used to send notifications.
type Publisher interface {
	PublishPaymentNotification(ctx context.Context, msg *PaymentNotificationMessage) error
}

// Notifier forwards payment notifications to the broker so the notifier
// worker can deliver them.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) Notify(ctx context.Context, note payment.Notification) error {
	return n.pub.PublishPaymentNotification(ctx, MessageFromNotification(note))
}

func MessageFromNotification(n payment.Notification) *PaymentNotificationMessage {
	return &PaymentNotificationMessage{
		Type:          MessageTypePaymentNotification,
		Email:         n.Email,
		UserID:        n.UserID,
		ExpenseID:     n.ExpenseID,
		Amount:        n.Amount,
		Currency:      n.Currency,
		Card:          n.Card,
		Status:        n.Status,
		TransactionID: n.TransactionID,
		Message:       n.Message,
		Timestamp:     n.OccurredAt,
	}
}

// Notification converts a message back for delivery.
func (m *PaymentNotificationMessage) Notification() payment.Notification {
	return payment.Notification{
		Email:         m.Email,
		UserID:        m.UserID,
		ExpenseID:     m.ExpenseID,
		Amount:        m.Amount,
		Currency:      m.Currency,
		Card:          m.Card,
		Status:        m.Status,
		TransactionID: m.TransactionID,
		Message:       m.Message,
		OccurredAt:    m.Timestamp,
	}
}
