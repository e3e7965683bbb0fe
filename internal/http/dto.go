package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"travelshare/internal/core"
	"travelshare/internal/services"
)

// amountField accepts a JSON number or string; it is parsed with
// core.ParseAmount so "12,50" works as well.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = amountField(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*a = ""
		return nil
	}
	*a = amountField(b)
	return nil
}

func (a amountField) parse() (decimal.Decimal, error) {
	d, err := core.ParseAmount(string(a))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: amount %q: %w", core.ErrValidation, string(a), err)
	}
	return d, nil
}

type expenseRequest struct {
	TripID         int64       `json:"tripId"`
	PayerID        int64       `json:"payerId"`
	Amount         amountField `json:"amount"`
	Description    string      `json:"description"`
	ParticipantIDs []int64     `json:"participantIds"`
	PaidUserIDs    []int64     `json:"paidUserIds"`
}

func (req expenseRequest) input() (services.CreateExpenseInput, error) {
	amount, err := req.Amount.parse()
	if err != nil {
		return services.CreateExpenseInput{}, err
	}
	return services.CreateExpenseInput{
		TripID:         req.TripID,
		PayerID:        req.PayerID,
		Amount:         amount,
		Description:    sanitizeInput(req.Description),
		ParticipantIDs: req.ParticipantIDs,
		PaidUserIDs:    req.PaidUserIDs,
	}, nil
}

type cardRequest struct {
	CardNumber string `json:"cardNumber"`
	CVV        string `json:"cvv"`
	Expiry     string `json:"expiry"`
	Currency   string `json:"currency"`
}

func (c cardRequest) details() services.CardDetails {
	return services.CardDetails{
		CardNumber: c.CardNumber,
		CVV:        c.CVV,
		Expiry:     c.Expiry,
		Currency:   c.Currency,
	}
}

type paymentRequest struct {
	Amount amountField `json:"amount"`
	cardRequest
	ExpenseID int64 `json:"expenseId"`
}

type shareDTO struct {
	ID       int64  `json:"id"`
	UserID   int64  `json:"userId"`
	UserName string `json:"userName"`
	Amount   string `json:"amount"`
	Paid     bool   `json:"paid"`
	CanPay   bool   `json:"canPay"`
}

type expenseDTO struct {
	ID          int64      `json:"id"`
	TripID      int64      `json:"tripId"`
	PayerID     int64      `json:"payerId"`
	PayerName   string     `json:"payerName"`
	Amount      string     `json:"amount"`
	Description string     `json:"description"`
	CreatedAt   time.Time  `json:"createdAt"`
	Shares      []shareDTO `json:"shares"`
	PaidUsers   []string   `json:"paidUsers"`
	UnpaidUsers []string   `json:"unpaidUsers"`
}

func newExpenseDTO(v services.ExpenseView) expenseDTO {
	e := v.Expense
	out := expenseDTO{
		ID:          e.ID,
		TripID:      e.TripID,
		PayerID:     e.PaidByUserID,
		PayerName:   v.PayerName,
		Amount:      core.FormatAmount(e.Amount),
		Description: e.Description,
		CreatedAt:   e.CreatedAt,
		Shares:      make([]shareDTO, 0, len(v.Shares)),
		PaidUsers:   v.PaidUsers,
		UnpaidUsers: v.UnpaidUsers,
	}
	for _, s := range v.Shares {
		out.Shares = append(out.Shares, shareDTO{
			ID:       s.ShareID,
			UserID:   s.UserID,
			UserName: s.UserName,
			Amount:   core.FormatAmount(s.Amount),
			Paid:     s.Paid,
			CanPay:   s.CanPay,
		})
	}
	return out
}

type balanceDTO struct {
	UserID         int64  `json:"userId"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	TotalPaid      string `json:"totalPaid"`
	TotalShouldPay string `json:"totalShouldPay"`
	Net            string `json:"net"`
}

type transferDTO struct {
	FromUserID int64  `json:"fromUserId"`
	ToUserID   int64  `json:"toUserId"`
	Amount     string `json:"amount"`
}

type reportDTO struct {
	TripID        int64         `json:"tripId"`
	TotalExpenses string        `json:"totalExpenses"`
	UserBalances  []balanceDTO  `json:"userBalances"`
	Settlements   []transferDTO `json:"settlements"`
	GeneratedAt   time.Time     `json:"generatedAt"`
}

func newReportDTO(r core.ReportSummary) reportDTO {
	out := reportDTO{
		TripID:        r.TripID,
		TotalExpenses: core.FormatAmount(r.TotalExpenses),
		UserBalances:  make([]balanceDTO, 0, len(r.UserBalances)),
		Settlements:   make([]transferDTO, 0, len(r.Settlements)),
		GeneratedAt:   r.GeneratedAt,
	}
	for _, b := range r.UserBalances {
		out.UserBalances = append(out.UserBalances, balanceDTO{
			UserID:         b.UserID,
			FirstName:      b.FirstName,
			LastName:       b.LastName,
			TotalPaid:      core.FormatAmount(b.TotalPaid),
			TotalShouldPay: core.FormatAmount(b.TotalShouldPay),
			Net:            core.FormatAmount(b.Net),
		})
	}
	for _, t := range r.Settlements {
		out.Settlements = append(out.Settlements, transferDTO{
			FromUserID: t.FromUserID,
			ToUserID:   t.ToUserID,
			Amount:     core.FormatAmount(t.Amount),
		})
	}
	return out
}

type userDTO struct {
	ID        int64  `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Role      string `json:"role"`
}

func newUserDTOs(users []core.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, u := range users {
		out = append(out, userDTO{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role})
	}
	return out
}
