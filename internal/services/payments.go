package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"travelshare/internal/core"
	applog "travelshare/internal/log"
	"travelshare/internal/payment"
	"travelshare/internal/split"
)

// CardDetails are the card fields entered by the paying user.
type CardDetails struct {
	CardNumber string
	CVV        string
	Expiry     string
	Currency   string
}

// PaymentInput is a standalone payment request.
type PaymentInput struct {
	Amount decimal.Decimal
	CardDetails
	// UserID, when set, selects the notification recipient.
	UserID    int64
	ExpenseID int64
}

// AuthorizePayment builds the payment and authorizes it. Invalid fields fail
// with a *core.ValidationError before anything is authorized; declines are
// returned as results.
func (s *ExpenseService) AuthorizePayment(ctx context.Context, in PaymentInput) (core.PaymentResult, error) {
	currency := in.Currency
	if currency == "" {
		currency = core.DefaultCurrency
	}
	p, err := core.NewPaymentBuilder(s.now).
		Amount(in.Amount).
		Currency(currency).
		CardNumber(in.CardNumber).
		CVV(in.CVV).
		Expiry(in.Expiry).
		Build()
	if err != nil {
		return core.PaymentResult{}, err
	}

	rcpt := payment.Recipient{UserID: in.UserID, ExpenseID: in.ExpenseID}
	if u, ok := s.lookupUser(in.UserID); ok {
		rcpt.Email = u.Email
	}
	result := s.authorize(payment.WithRecipient(ctx, rcpt), p)

	s.logger.InfoContext(ctx, "Payment authorized",
		applog.NewFields().
			WithPayment(result.Status, result.TransactionID, p.Amount(), p.Currency(), p.MaskedCard()).
			WithUser(in.UserID).
			WithOperation(applog.OpAuthorize).
			ToSlice()...)
	return result, nil
}

// SettleShare pays off userID's share of an expense. The share must exist
// and be negative; the payment amount is its absolute value. On approval the
// share is settled through the calculator. The whole check, authorize and
// update sequence runs under the write lock so a share is paid at most once.
func (s *ExpenseService) SettleShare(ctx context.Context, expenseID, userID int64, card CardDetails) (core.PaymentResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.store.GetByID(ctx, expenseID)
	if err != nil {
		return core.PaymentResult{}, fmt.Errorf("get expense %d: %w", expenseID, err)
	}
	share, ok := e.ShareFor(userID)
	if !ok || !share.Amount.IsNegative() {
		return core.PaymentResult{}, fmt.Errorf("expense %d user %d: %w", expenseID, userID, ErrNotPayable)
	}

	result, err := s.AuthorizePayment(ctx, PaymentInput{
		Amount:      share.Amount.Abs(),
		CardDetails: card,
		UserID:      userID,
		ExpenseID:   expenseID,
	})
	if err != nil || !result.Success {
		return result, err
	}

	if err := s.markPaid(ctx, e, userID); err != nil {
		return result, err
	}
	s.logger.InfoContext(ctx, "Share settled",
		applog.NewFields().
			WithExpense(e.ID, e.TripID, share.Amount.Abs()).
			WithUser(userID).
			WithOperation(applog.OpSettle).
			ToSlice()...)
	return result, nil
}

// markPaid stores e with userID's share settled. Callers hold s.mu.
func (s *ExpenseService) markPaid(ctx context.Context, e core.Expense, userID int64) error {
	shares, err := s.calc.Settle(e.Shares, e.PaidByUserID, userID)
	if errors.Is(err, split.ErrNotOwed) || errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("expense %d user %d: %w", e.ID, userID, ErrNotPayable)
	}
	if err != nil {
		return fmt.Errorf("settle share of expense %d: %w", e.ID, err)
	}
	e.Shares = shares

	ok, err := s.store.Update(ctx, e)
	if err != nil {
		return fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if !ok {
		return fmt.Errorf("update expense %d: %w", e.ID, core.ErrNotFound)
	}
	s.invalidateReports(e.TripID)
	return nil
}

func (s *ExpenseService) lookupUser(id int64) (core.User, bool) {
	if s.users == nil || id <= 0 {
		return core.User{}, false
	}
	return s.users.ByID(id)
}
