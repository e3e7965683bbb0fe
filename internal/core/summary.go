package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserBalance is a user's position across all expenses of a trip.
type UserBalance struct {
	UserID         int64
	FirstName      string
	LastName       string
	TotalPaid      decimal.Decimal
	TotalShouldPay decimal.Decimal
	Net            decimal.Decimal // positive = owed money, negative = owes money
}

// Owes reports whether the user still has to pay into the trip.
func (b UserBalance) Owes() bool {
	return b.Net.IsNegative()
}

// Transfer is one suggested payment that clears part of the trip's balances.
type Transfer struct {
	FromUserID int64
	ToUserID   int64
	Amount     decimal.Decimal
}

// ReportSummary is the settlement view of a single trip. It is derived on
// demand and never stored.
type ReportSummary struct {
	TripID        int64
	TotalExpenses decimal.Decimal
	UserBalances  []UserBalance
	Settlements   []Transfer
	GeneratedAt   time.Time
}

// Balance returns the balance of userID within the report.
func (r ReportSummary) Balance(userID int64) (UserBalance, bool) {
	for _, b := range r.UserBalances {
		if b.UserID == userID {
			return b, true
		}
	}
	return UserBalance{}, false
}

// NetSum adds all nets; it is zero (within Tolerance) for a consistent report.
func (r ReportSummary) NetSum() decimal.Decimal {
	sum := decimal.Zero
	for _, b := range r.UserBalances {
		sum = sum.Add(b.Net)
	}
	return sum
}
