package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusApproved = "APPROVED"
	StatusDeclined = "DECLINED"

	DefaultCurrency = "EUR"
)

// Payment is a mocked card payment used to settle a negative share.
// Fields are only set through PaymentBuilder, so a built Payment is immutable.
type Payment struct {
	amount     decimal.Decimal
	currency   string
	cardNumber string
	cvv        string
	expiry     string
}

func (p Payment) Amount() decimal.Decimal { return p.amount }
func (p Payment) Currency() string        { return p.currency }
func (p Payment) CardNumber() string      { return p.cardNumber }
func (p Payment) CVV() string             { return p.cvv }
func (p Payment) Expiry() string          { return p.expiry }

// MaskedCard returns the card number with all but the last four digits hidden.
func (p Payment) MaskedCard() string {
	n := p.cardNumber
	if len(n) <= 4 {
		return n
	}
	return strings.Repeat("*", len(n)-4) + n[len(n)-4:]
}

// PaymentResult is the terminal outcome of an authorization attempt.
type PaymentResult struct {
	Success       bool   `json:"success"`
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
	Message       string `json:"message,omitempty"`
}

func Approved(transactionID string) PaymentResult {
	return PaymentResult{Success: true, Status: StatusApproved, TransactionID: transactionID}
}

func Declined(message string) PaymentResult {
	return PaymentResult{Success: false, Status: StatusDeclined, Message: message}
}

// FieldError describes one rejected builder input.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field problem found while building a value.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is lets callers match any ValidationError with errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Has reports whether field was rejected.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// PaymentBuilder assembles a Payment step by step. Invalid inputs are kept on
// the payment and reported by Build instead of being dropped.
type PaymentBuilder struct {
	now     func() time.Time
	payment Payment
	errs    []FieldError
}

// NewPaymentBuilder returns a builder; now is used for expiry checks and
// defaults to time.Now.
func NewPaymentBuilder(now func() time.Time) *PaymentBuilder {
	if now == nil {
		now = time.Now
	}
	return &PaymentBuilder{now: now}
}

func (b *PaymentBuilder) fail(field, msg string) {
	b.errs = append(b.errs, FieldError{Field: field, Message: msg})
}

func (b *PaymentBuilder) Amount(amount decimal.Decimal) *PaymentBuilder {
	b.payment.amount = amount
	if !amount.IsPositive() {
		b.fail("amount", "must be greater than zero")
	}
	return b
}

func (b *PaymentBuilder) Currency(currency string) *PaymentBuilder {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	b.payment.currency = currency
	if len(currency) != 3 || !isLetters(currency) {
		b.fail("currency", "must be a 3-letter code")
	}
	return b
}

func (b *PaymentBuilder) CardNumber(number string) *PaymentBuilder {
	number = strings.ReplaceAll(number, " ", "")
	b.payment.cardNumber = number
	if len(number) != 16 || !isDigits(number) {
		b.fail("cardNumber", "must be 16 digits")
	}
	return b
}

func (b *PaymentBuilder) CVV(cvv string) *PaymentBuilder {
	cvv = strings.TrimSpace(cvv)
	b.payment.cvv = cvv
	if len(cvv) != 3 || !isDigits(cvv) {
		b.fail("cvv", "must be 3 digits")
	}
	return b
}

// Expiry accepts MM/YY or MM/YYYY. A card is valid through the end of its
// expiry month.
func (b *PaymentBuilder) Expiry(monthYear string) *PaymentBuilder {
	monthYear = strings.TrimSpace(monthYear)
	b.payment.expiry = monthYear
	month, year, err := parseExpiry(monthYear)
	if err != nil {
		b.fail("expiry", err.Error())
		return b
	}
	now := b.now()
	if year < now.Year() || (year == now.Year() && month < int(now.Month())) {
		b.fail("expiry", "card has expired")
	}
	return b
}

// Build returns the assembled payment and a *ValidationError listing every
// rejected field, or nil when all fields are valid. The builder is reset.
func (b *PaymentBuilder) Build() (Payment, error) {
	p, errs := b.payment, b.errs
	b.payment, b.errs = Payment{}, nil
	if len(errs) > 0 {
		return p, &ValidationError{Fields: errs}
	}
	return p, nil
}

func parseExpiry(s string) (month, year int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("must be in MM/YY format")
	}
	month, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month")
	}
	yearStr := strings.TrimSpace(parts[1])
	year, err = strconv.Atoi(yearStr)
	if err != nil || year < 0 {
		return 0, 0, fmt.Errorf("invalid year")
	}
	switch len(yearStr) {
	case 2:
		year += 2000
	case 4:
	default:
		return 0, 0, fmt.Errorf("invalid year")
	}
	return month, year, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

func isLetters(s string) bool {
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return s != ""
}
