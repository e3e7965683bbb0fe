// Package payment mock-authorizes card payments that settle trip shares.
package payment

import (
	"context"

	"github.com/google/uuid"

	"travelshare/internal/core"
)

const (
	MsgInvalidCard = "Invalid card number"
	MsgInvalidCVV  = "Payment failed: Invalid cvv"
)

// AuthorizeFunc decides a single payment. Declines are results, not errors.
type AuthorizeFunc func(ctx context.Context, p core.Payment) core.PaymentResult

// Authorize checks the card number with Luhn, then the CVV, and approves with
// a fresh transaction id. Amount and expiry are not looked at here.
func Authorize(_ context.Context, p core.Payment) core.PaymentResult {
	if !Luhn(p.CardNumber()) {
		return core.Declined(MsgInvalidCard)
	}
	if !validCVV(p.CVV()) {
		return core.Declined(MsgInvalidCVV)
	}
	return core.Approved(uuid.NewString())
}

func validCVV(cvv string) bool {
	if len(cvv) != 3 {
		return false
	}
	for i := 0; i < len(cvv); i++ {
		if cvv[i] < '0' || cvv[i] > '9' {
			return false
		}
	}
	return true
}
