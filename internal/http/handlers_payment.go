package http

import (
	"net/http"

	"github.com/shopspring/decimal"

	applog "travelshare/internal/log"
	"travelshare/internal/services"
)

// handleAuthorizePayment authorizes a standalone payment. An unparseable
// amount is passed on as zero so the builder reports it together with any
// other field problems.
func (s *Server) handleAuthorizePayment(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req paymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	amount, err := req.Amount.parse()
	if err != nil {
		amount = decimal.Zero
	}
	result, err := s.svc.AuthorizePayment(r.Context(), services.PaymentInput{
		Amount:      amount,
		CardDetails: req.details(),
		UserID:      userID,
		ExpenseID:   req.ExpenseID,
	})
	if err != nil {
		writeServiceError(w, r, applog.OpAuthorize, err)
		return
	}
	PaymentResponse(result).Write(w)
}

// handlePayShare settles the current user's share of an expense. Only the
// share's owner may pay it.
func (s *Server) handlePayShare(w http.ResponseWriter, r *http.Request) {
	expenseID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	shareUserID, err := pathID(r, "userId")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	userID, err := currentUserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if userID != shareUserID {
		ForbiddenError("only the share owner can pay it").Write(w)
		return
	}

	var card cardRequest
	if err := decodeJSON(w, r, &card); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	result, err := s.svc.SettleShare(r.Context(), expenseID, shareUserID, card.details())
	if err != nil {
		writeServiceError(w, r, applog.OpSettle, err)
		return
	}
	PaymentResponse(result).Write(w)
}
