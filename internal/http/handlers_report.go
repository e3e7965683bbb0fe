package http

import (
	"net/http"

	applog "travelshare/internal/log"
)

func (s *Server) handleTripReport(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	report, err := s.svc.ComputeTripReport(r.Context(), tripID)
	if err != nil {
		writeServiceError(w, r, applog.OpReport, err)
		return
	}
	NewJSONResponse().Body(newReportDTO(report)).Write(w)
}

type exportResponse struct {
	TripID int64  `json:"tripId"`
	Range  string `json:"range"`
}

func (s *Server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	tripID, err := pathID(r, "id")
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ref, err := s.svc.ExportReport(r.Context(), tripID)
	if err != nil {
		writeServiceError(w, r, applog.OpExport, err)
		return
	}
	NewJSONResponse().Body(exportResponse{TripID: tripID, Range: ref}).Write(w)
}
