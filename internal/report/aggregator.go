// Package report rolls trip expenses up into per-user balances and the
// transfers that settle them.
package report

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"travelshare/internal/core"
)

// UserLookup resolves user ids to display names.
type UserLookup interface {
	ByID(id int64) (core.User, bool)
}

var cent = decimal.New(1, -2)

// Compute builds the report for tripID. Expenses of other trips are ignored.
// Participants of an expense are its distinct share owners; an expense without
// shares counts its payer as the sole participant. Users missing from the
// lookup are reported as "Unknown User". users may be nil.
func Compute(tripID int64, expenses []core.Expense, users UserLookup, now time.Time) core.ReportSummary {
	type acc struct {
		paid, should decimal.Decimal
	}
	totals := map[int64]*acc{}
	get := func(id int64) *acc {
		a, ok := totals[id]
		if !ok {
			a = &acc{paid: decimal.Zero, should: decimal.Zero}
			totals[id] = a
		}
		return a
	}

	total := decimal.Zero
	for _, e := range expenses {
		if e.TripID != tripID {
			continue
		}
		total = total.Add(e.Amount)
		get(e.PaidByUserID).paid = get(e.PaidByUserID).paid.Add(e.Amount)

		participants := e.ParticipantIDs()
		if len(participants) == 0 {
			participants = []int64{e.PaidByUserID}
		}
		share := e.Amount.Div(decimal.NewFromInt(int64(len(participants))))
		for _, id := range participants {
			a := get(id)
			a.should = a.should.Add(share)
		}
	}

	ids := make([]int64, 0, len(totals))
	for id := range totals {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	balances := make([]core.UserBalance, 0, len(ids))
	for _, id := range ids {
		a := totals[id]
		var u core.User
		if users != nil {
			u, _ = users.ByID(id)
		}
		first, last := u.FirstName, u.LastName
		if first == "" {
			first = "Unknown"
		}
		if last == "" {
			last = "User"
		}
		balances = append(balances, core.UserBalance{
			UserID:         id,
			FirstName:      first,
			LastName:       last,
			TotalPaid:      a.paid,
			TotalShouldPay: a.should,
			Net:            a.paid.Sub(a.should),
		})
	}

	return core.ReportSummary{
		TripID:        tripID,
		TotalExpenses: total,
		UserBalances:  balances,
		Settlements:   Settle(balances),
		GeneratedAt:   now,
	}
}

type position struct {
	userID int64
	amount decimal.Decimal // always positive
}

// Settle returns transfers that clear every balance, matching the largest
// debtor with the largest creditor until nothing is left. Ties go to the
// lower user id. Amounts are rounded to cents and transfers under one cent
// are dropped.
func Settle(balances []core.UserBalance) []core.Transfer {
	var debtors, creditors []position
	for _, b := range balances {
		switch {
		case b.Net.GreaterThan(core.Tolerance):
			creditors = append(creditors, position{b.UserID, b.Net})
		case b.Net.LessThan(core.Tolerance.Neg()):
			debtors = append(debtors, position{b.UserID, b.Net.Neg()})
		}
	}

	var out []core.Transfer
	for len(debtors) > 0 && len(creditors) > 0 {
		sortPositions(debtors)
		sortPositions(creditors)
		d, c := &debtors[0], &creditors[0]

		amount := decimal.Min(d.amount, c.amount)
		if rounded := amount.Round(2); rounded.GreaterThanOrEqual(cent) {
			out = append(out, core.Transfer{FromUserID: d.userID, ToUserID: c.userID, Amount: rounded})
		}
		d.amount = d.amount.Sub(amount)
		c.amount = c.amount.Sub(amount)

		debtors = dropSettled(debtors)
		creditors = dropSettled(creditors)
	}
	return out
}

func sortPositions(p []position) {
	sort.SliceStable(p, func(i, j int) bool {
		if !p[i].amount.Equal(p[j].amount) {
			return p[i].amount.GreaterThan(p[j].amount)
		}
		return p[i].userID < p[j].userID
	})
}

func dropSettled(p []position) []position {
	out := p[:0]
	for _, x := range p {
		if x.amount.GreaterThan(core.Tolerance) {
			out = append(out, x)
		}
	}
	return out
}
