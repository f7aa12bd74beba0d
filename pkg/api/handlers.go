package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/assistant"
	"github.com/harishkavindauoj/Sales-FollowUp-Assistant/pkg/ledger"
)

// Response headers.
const (
	HeaderProcessingTime   = "X-Processing-Time"
	HeaderCustomerID       = "X-Customer-ID"
	HeaderAnalysisComplete = "X-Analysis-Complete"
	HeaderDate             = "X-Date"
	HeaderFollowupCount    = "X-Followup-Count"
)

type analyzeRequest struct {
	CustomerID string `json:"customer_id"`
}

type topFollowupsRequest struct {
	Date string `json:"date"`
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func processingTime(start time.Time) string {
	return strconv.FormatFloat(time.Since(start).Seconds(), 'f', 3, 64)
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Sales Follow-Up Assistant API",
		"status":  "healthy",
		"version": Version,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	h := s.svc.Health()
	status := http.StatusOK
	if !h.DataLoaded {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, h)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	resp, err := s.svc.Analyze(r.Context(), req.CustomerID)
	switch {
	case errors.Is(err, assistant.ErrInvalidCustomerID):
		WriteBadRequest(w, r, err.Error())
		return
	case err != nil:
		WriteInternal(w, r, s.logger, err)
		return
	}

	s.logger.InfoContext(r.Context(), "analysis served",
		"customer_id", resp.CustomerID,
		"priority", resp.Scores.Priority,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	w.Header().Set(HeaderProcessingTime, processingTime(start))
	w.Header().Set(HeaderCustomerID, resp.CustomerID)
	w.Header().Set(HeaderAnalysisComplete, "true")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTopFollowups(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req topFollowupsRequest
	if err := decodeBody(w, r, &req); err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	list, err := s.svc.TopFollowups(r.Context(), req.Date)
	switch {
	case errors.Is(err, assistant.ErrInvalidDate):
		WriteBadRequest(w, r, err.Error())
		return
	case err != nil:
		WriteInternal(w, r, s.logger, err)
		return
	}

	w.Header().Set(HeaderProcessingTime, processingTime(start))
	w.Header().Set(HeaderDate, list.Date)
	w.Header().Set(HeaderFollowupCount, strconv.Itoa(list.Count))
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Answer(r.Context(), r.URL.Query().Get("question")))
}

func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	customers := s.svc.Customers()
	if len(customers) == 0 {
		WriteUnavailable(w, r, "No customer data loaded")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"customers": customers,
		"count":     len(customers),
	})
}

func (s *Server) handleCustomerSummary(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sum, err := s.svc.CustomerSummary(id)
	switch {
	case errors.Is(err, assistant.ErrInvalidCustomerID):
		WriteBadRequest(w, r, err.Error())
	case errors.Is(err, ledger.ErrCustomerNotFound):
		WriteNotFound(w, r, fmt.Sprintf("Customer %s not found", id))
	case err != nil:
		WriteInternal(w, r, s.logger, err)
	default:
		writeJSON(w, http.StatusOK, sum)
	}
}
