// Package split computes per-participant shares of an expense.
//
// The sign of a share depends on the configured Policy. Both policies divide
// the amount equally among participants.
package split

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"travelshare/internal/core"
)

// Policy names a share sign convention.
type Policy string

const (
	// PolicyPaidFlag gives +amount/N to participants in the paid set and
	// -amount/N to everyone else. Shares do not sum to zero in general.
	PolicyPaidFlag Policy = "paid-flag"

	// PolicyNetZero gives each participant what they contributed minus
	// amount/N, where the paid set splits the full amount equally.
	// Shares always sum to zero.
	PolicyNetZero Policy = "net-zero"
)

// ErrNotOwed means a share cannot be settled because nothing is owed on it.
var ErrNotOwed = errors.New("share is not owed")

// DefaultPolicy is the convention used when none is configured.
const DefaultPolicy = PolicyPaidFlag

func (p Policy) String() string {
	return string(p)
}

func (p Policy) IsValid() bool {
	switch p {
	case PolicyPaidFlag, PolicyNetZero:
		return true
	default:
		return false
	}
}

// ParsePolicy maps a configuration value to a Policy. An empty value yields
// DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return DefaultPolicy, nil
	}
	p := Policy(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown share sign policy %q: must be one of [%s %s]", s, PolicyPaidFlag, PolicyNetZero)
	}
	return p, nil
}

// Input describes one expense to split.
type Input struct {
	Amount         decimal.Decimal
	ParticipantIDs []int64
	PaidUserIDs    []int64
	// PayerID is used as the sole contributor under PolicyNetZero when
	// PaidUserIDs has no participant in it. It must then be a participant.
	PayerID int64
	// FirstShareID is the id given to the first share; following shares
	// count up from it.
	FirstShareID int64
	ExpenseID    int64
}

// Calculator produces shares under a fixed policy.
type Calculator struct {
	policy Policy
}

func NewCalculator(policy Policy) *Calculator {
	if !policy.IsValid() {
		policy = DefaultPolicy
	}
	return &Calculator{policy: policy}
}

func (c *Calculator) Policy() Policy {
	return c.policy
}

// Shares returns one share per distinct participant, in participant order.
// It fails with core.ErrDivision when there are no participants and with
// core.ErrInvalidAmount when the amount is not positive. Under PolicyNetZero
// an expense nobody in the paid set contributed to must have a participating
// payer, else it fails with core.ErrInvalidPayer.
func (c *Calculator) Shares(in Input) ([]core.ExpenseShare, error) {
	participants := dedupe(in.ParticipantIDs)
	if len(participants) == 0 {
		return nil, core.ErrDivision
	}
	if !in.Amount.IsPositive() {
		return nil, core.ErrInvalidAmount
	}

	n := decimal.NewFromInt(int64(len(participants)))
	expected := in.Amount.Div(n)

	paid := make(map[int64]bool, len(in.PaidUserIDs))
	for _, id := range in.PaidUserIDs {
		paid[id] = true
	}

	var contribution decimal.Decimal
	if c.policy == PolicyNetZero {
		contributors := 0
		for _, id := range participants {
			if paid[id] {
				contributors++
			}
		}
		if contributors == 0 {
			if !contains(participants, in.PayerID) {
				return nil, fmt.Errorf("payer %d is not a participant: %w", in.PayerID, core.ErrInvalidPayer)
			}
			paid = map[int64]bool{in.PayerID: true}
			contributors = 1
		}
		contribution = in.Amount.Div(decimal.NewFromInt(int64(contributors)))
	}

	nextID := in.FirstShareID
	if nextID <= 0 {
		nextID = 1
	}
	shares := make([]core.ExpenseShare, 0, len(participants))
	for _, userID := range participants {
		var amount decimal.Decimal
		switch c.policy {
		case PolicyNetZero:
			amount = expected.Neg()
			if paid[userID] {
				amount = contribution.Sub(expected)
			}
		default:
			amount = expected.Neg()
			if paid[userID] {
				amount = expected
			}
		}
		shares = append(shares, core.ExpenseShare{
			ID:        nextID,
			ExpenseID: in.ExpenseID,
			UserID:    userID,
			Amount:    amount,
		})
		nextID++
	}
	return shares, nil
}

// Settle marks userID's owed share as covered and returns the updated
// shares; ids and order are kept. Under PolicyPaidFlag the share flips to
// its positive counterpart. Under PolicyNetZero the settlement is a transfer:
// the share drops to zero and the creditors' shares shrink by the same
// amount, the payer's first, so the shares still sum to zero.
// It fails with core.ErrNotFound when userID has no share and with
// ErrNotOwed when the share is not negative.
func (c *Calculator) Settle(shares []core.ExpenseShare, payerID, userID int64) ([]core.ExpenseShare, error) {
	out := append([]core.ExpenseShare(nil), shares...)
	idx := -1
	for i, s := range out {
		if s.UserID == userID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, fmt.Errorf("user %d: %w", userID, core.ErrNotFound)
	}
	owed := out[idx].Amount.Neg()
	if !owed.IsPositive() {
		return nil, fmt.Errorf("user %d: %w", userID, ErrNotOwed)
	}

	if c.policy != PolicyNetZero {
		out[idx].Amount = owed
		return out, nil
	}

	out[idx].Amount = decimal.Zero
	order := make([]int, 0, len(out))
	for i, s := range out {
		if s.UserID == payerID {
			order = append([]int{i}, order...)
		} else if s.Amount.IsPositive() {
			order = append(order, i)
		}
	}
	remaining := owed
	for _, i := range order {
		if !remaining.IsPositive() {
			break
		}
		credit := out[i].Amount
		if !credit.IsPositive() {
			continue
		}
		take := decimal.Min(credit, remaining)
		out[i].Amount = credit.Sub(take)
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return nil, fmt.Errorf("user %d: no creditor left to receive %s", userID, remaining)
	}
	return out, nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
