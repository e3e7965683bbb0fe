package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	// Expense is a single trip cost paid by one user and split among participants.
	Expense struct {
		ID           int64
		TripID       int64
		PaidByUserID int64
		Amount       decimal.Decimal
		Description  string
		CreatedAt    time.Time
		Shares       []ExpenseShare
	}

	// ExpenseShare is one user's signed stake in an expense.
	// Negative amounts are owed by the user, positive amounts are owed to (or covered by) them.
	ExpenseShare struct {
		ID        int64
		ExpenseID int64
		UserID    int64
		Amount    decimal.Decimal
	}

	User struct {
		ID        int64
		Email     string
		FirstName string
		LastName  string
		Role      string
	}
)

const maxDescriptionLen = 200

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrDivision         = errors.New("division by zero participants")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyDescription = errors.New("empty description")
	ErrInvalidTrip      = errors.New("invalid trip id")
	ErrInvalidPayer     = errors.New("invalid payer id")
	ErrNoShares         = errors.New("expense has no shares")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
)

func (e Expense) Validate() error {
	if !e.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if e.TripID <= 0 {
		return ErrInvalidTrip
	}
	if e.PaidByUserID <= 0 {
		return ErrInvalidPayer
	}
	if len(strings.TrimSpace(e.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(e.Description) > maxDescriptionLen {
		return ErrDescriptionLong
	}
	if len(e.Shares) == 0 {
		return ErrNoShares
	}
	return nil
}

// Clone returns a deep copy so store internals never leak to callers.
func (e Expense) Clone() Expense {
	out := e
	out.Shares = append([]ExpenseShare(nil), e.Shares...)
	return out
}

// ShareFor returns the share owned by userID, if any.
func (e Expense) ShareFor(userID int64) (ExpenseShare, bool) {
	for _, s := range e.Shares {
		if s.UserID == userID {
			return s, true
		}
	}
	return ExpenseShare{}, false
}

// ParticipantIDs returns the distinct share owners in share order.
func (e Expense) ParticipantIDs() []int64 {
	seen := make(map[int64]struct{}, len(e.Shares))
	out := make([]int64, 0, len(e.Shares))
	for _, s := range e.Shares {
		if _, ok := seen[s.UserID]; ok {
			continue
		}
		seen[s.UserID] = struct{}{}
		out = append(out, s.UserID)
	}
	return out
}

// FullName joins first and last name, falling back to placeholders like the
// expense views do for users missing from the directory.
func (u User) FullName() string {
	first, last := u.FirstName, u.LastName
	if first == "" {
		first = "Unknown"
	}
	if last == "" {
		last = "User"
	}
	return first + " " + last
}
