package services

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"travelshare/internal/core"
)

// ShareView is one share as shown to the current user.
type ShareView struct {
	ShareID  int64
	UserID   int64
	UserName string
	Amount   decimal.Decimal
	Paid     bool
	CanPay   bool
}

// ExpenseView is an expense enriched with names and what the current user
// may do with it.
type ExpenseView struct {
	Expense     core.Expense
	PayerName   string
	Shares      []ShareView
	PaidUsers   []string
	UnpaidUsers []string
}

// ExpenseView loads an expense for display to currentUserID. A share can be
// paid only by its owner and only while it is negative.
func (s *ExpenseService) ExpenseView(ctx context.Context, id, currentUserID int64) (ExpenseView, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return ExpenseView{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return s.buildView(e, currentUserID), nil
}

func (s *ExpenseService) buildView(e core.Expense, currentUserID int64) ExpenseView {
	payer, _ := s.lookupUser(e.PaidByUserID)
	v := ExpenseView{
		Expense:     e,
		PayerName:   payer.FullName(),
		Shares:      make([]ShareView, 0, len(e.Shares)),
		PaidUsers:   []string{},
		UnpaidUsers: []string{},
	}
	for _, sh := range e.Shares {
		u, _ := s.lookupUser(sh.UserID)
		name := u.FullName()
		paid := !sh.Amount.IsNegative()
		v.Shares = append(v.Shares, ShareView{
			ShareID:  sh.ID,
			UserID:   sh.UserID,
			UserName: name,
			Amount:   sh.Amount,
			Paid:     paid,
			CanPay:   currentUserID > 0 && sh.UserID == currentUserID && !paid,
		})
		if paid {
			v.PaidUsers = append(v.PaidUsers, name)
		} else {
			v.UnpaidUsers = append(v.UnpaidUsers, name)
		}
	}
	return v
}

// ExpenseViews builds views for every expense of tripID (all trips when zero).
func (s *ExpenseService) ExpenseViews(ctx context.Context, tripID, currentUserID int64) ([]ExpenseView, error) {
	expenses, err := s.ListExpenses(ctx, tripID)
	if err != nil {
		return nil, err
	}
	out := make([]ExpenseView, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, s.buildView(e, currentUserID))
	}
	return out, nil
}
