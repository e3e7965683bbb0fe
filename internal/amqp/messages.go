package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// MessageTypePaymentNotification is set as the AMQP message type.
const MessageTypePaymentNotification = "payment_notification"

// PaymentNotificationMessage asks the notifier worker to send a payment
// confirmation mail.
type PaymentNotificationMessage struct {
	Type          string          `json:"type"`
	Email         string          `json:"email"`
	UserID        int64           `json:"user_id,omitempty"`
	ExpenseID     int64           `json:"expense_id,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Card          string          `json:"card"`
	Status        string          `json:"status"`
	TransactionID string          `json:"transaction_id,omitempty"`
	Message       string          `json:"message,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (m *PaymentNotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentNotificationMessageFromJSON decodes a message and rejects ones that
// are not payment notifications or carry no status.
func PaymentNotificationMessageFromJSON(data []byte) (*PaymentNotificationMessage, error) {
	var msg PaymentNotificationMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type != MessageTypePaymentNotification {
		return nil, errors.New("unexpected message type " + msg.Type)
	}
	if msg.Status == "" {
		return nil, errors.New("payment notification without status")
	}
	return &msg, nil
}
