package http

import (
	"net/http"

	applog "travelshare/internal/log"
)

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	tripID, err := queryID(r, "trip")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	userID, err := currentUserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	views, err := s.svc.ExpenseViews(r.Context(), tripID, userID)
	if err != nil {
		writeServiceError(w, r, applog.OpList, err)
		return
	}
	out := make([]expenseDTO, 0, len(views))
	for _, v := range views {
		out = append(out, newExpenseDTO(v))
	}
	NewJSONResponse().Body(out).Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	s.writeExpense(w, r, http.StatusOK, id)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.input()
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	e, err := s.svc.CreateExpense(r.Context(), in)
	if err != nil {
		writeServiceError(w, r, applog.OpCreate, err)
		return
	}
	s.writeExpense(w, r, http.StatusCreated, e.ID)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in, err := req.input()
	if err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	if _, err := s.svc.UpdateExpense(r.Context(), id, in); err != nil {
		writeServiceError(w, r, applog.OpUpdate, err)
		return
	}
	s.writeExpense(w, r, http.StatusOK, id)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.svc.DeleteExpense(r.Context(), id); err != nil {
		writeServiceError(w, r, applog.OpDelete, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

// writeExpense responds with the expense as seen by the current user.
func (s *Server) writeExpense(w http.ResponseWriter, r *http.Request, status int, id int64) {
	userID, err := currentUserID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	v, err := s.svc.ExpenseView(r.Context(), id, userID)
	if err != nil {
		writeServiceError(w, r, applog.OpRead, err)
		return
	}
	NewJSONResponse().Status(status).Body(newExpenseDTO(v)).Write(w)
}
