package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/tenkdelta/tenkdelta/internal/common"
	"github.com/tenkdelta/tenkdelta/internal/model"
)

// accountHeader is set by the fronting auth proxy on every authenticated
// request.
const accountHeader = "X-Account-ID"

type errorResponse struct {
	Error string `json:"error"`
}

type reportRequest struct {
	Ticker string `json:"ticker"`
}

type reportAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type reportResponse struct {
	ReportID          string            `json:"report_id"`
	Ticker            string            `json:"ticker"`
	CompanyName       string            `json:"company_name"`
	NewerFilingDate   string            `json:"newer_filing_date"`
	OlderFilingDate   string            `json:"older_filing_date"`
	Summaries         map[string]string `json:"summaries"`
	SectionsExtracted []string          `json:"sections_extracted"`
	ExtractionIssues  []string          `json:"extraction_issues,omitempty"`
	Refunded          bool              `json:"refunded"`
	Cached            bool              `json:"cached"`
	CreatedAt         time.Time         `json:"created_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"active_jobs": s.orchestrator.ActiveJobs(),
	})
}

// handleRequestReport is the main entry point. A cache hit answers with the
// cloned report immediately; a miss answers 202 with the job to poll.
func (s *Server) handleRequestReport(w http.ResponseWriter, r *http.Request) {
	accountID := r.Header.Get(accountHeader)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "missing account identity")
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	outcome, err := s.orchestrator.RequestReport(r.Context(), accountID, req.Ticker)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if outcome.Cached {
		report, err := s.storage.GetReportByID(r.Context(), outcome.ReportID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toReportResponse(report, true))
		return
	}

	writeJSON(w, http.StatusAccepted, reportAcceptedResponse{
		JobID:  outcome.JobID,
		Status: string(outcome.Status),
	})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	accountID := r.Header.Get(accountHeader)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "missing account identity")
		return
	}

	report, err := s.storage.GetReportByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	// Reports are account-scoped; existence of another account's report is
	// not disclosed.
	if report.AccountID != accountID {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}

	writeJSON(w, http.StatusOK, toReportResponse(report, false))
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.orchestrator.JobStatus(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":       job.ID,
		"status":       string(job.Status),
		"progress":     job.Progress,
		"current_step": job.CurrentStep,
		"report_id":    job.ReportID,
		"error":        job.Error,
	})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.authorizeAccount(w, r)
	if !ok {
		return
	}

	balance, err := s.ledger.Balance(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens_remaining": balance})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, ok := s.authorizeAccount(w, r)
	if !ok {
		return
	}

	transactions, err := s.ledger.History(r.Context(), accountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	type entry struct {
		ID          string    `json:"id"`
		Kind        string    `json:"kind"`
		Amount      int       `json:"amount"`
		Description string    `json:"description"`
		ReportID    string    `json:"report_id,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}
	entries := make([]entry, 0, len(transactions))
	for _, txn := range transactions {
		entries = append(entries, entry{
			ID:          txn.ID,
			Kind:        string(txn.Kind),
			Amount:      txn.Amount,
			Description: txn.Description,
			ReportID:    txn.ReportID,
			CreatedAt:   txn.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": entries})
}

// handleCallback receives terminal notifications from the worker. Always
// 204: callbacks are informational and retries gain nothing.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	var payload model.CallbackPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid callback body")
		return
	}
	s.orchestrator.HandleCallback(payload)
	w.WriteHeader(http.StatusNoContent)
}

// handleCredit is the payment boundary: the billing system calls it after a
// purchase clears. It is on the internal mux path and never reachable
// through the public proxy.
func (s *Server) handleCredit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountID   string `json:"account_id"`
		Amount      int    `json:"amount"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AccountID == "" || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "account_id and a positive amount are required")
		return
	}
	if req.Description == "" {
		req.Description = "Token purchase"
	}

	if err := s.ledger.Credit(r.Context(), req.AccountID, req.Amount, model.KindPurchase, req.Description); err != nil {
		writeDomainError(w, err)
		return
	}

	balance, err := s.ledger.Balance(r.Context(), req.AccountID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tokens_remaining": balance})
}

// authorizeAccount checks the authenticated identity against the account in
// the path. Ledger reads are account-scoped; like reports, the existence of
// another account is not disclosed.
func (s *Server) authorizeAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := r.Header.Get(accountHeader)
	if accountID == "" {
		writeError(w, http.StatusUnauthorized, "missing account identity")
		return "", false
	}
	if r.PathValue("id") != accountID {
		writeError(w, http.StatusNotFound, "account not found")
		return "", false
	}
	return accountID, true
}

func toReportResponse(report *model.Report, cached bool) reportResponse {
	return reportResponse{
		ReportID:          report.ID,
		Ticker:            report.Ticker,
		CompanyName:       report.CompanyName,
		NewerFilingDate:   report.NewerFilingDate.Format("2006-01-02"),
		OlderFilingDate:   report.OlderFilingDate.Format("2006-01-02"),
		Summaries:         report.Summaries,
		SectionsExtracted: report.SectionsExtracted,
		ExtractionIssues:  report.ExtractionIssues,
		Refunded:          report.Refunded,
		Cached:            cached,
		CreatedAt:         report.CreatedAt,
	}
}

// writeDomainError maps sentinel errors onto HTTP statuses. A UserError in
// the chain supplies the message; internals are never echoed to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	message := func(fallback string) string {
		var userErr *common.UserError
		if errors.As(err, &userErr) {
			return userErr.UserMessage
		}
		return fallback
	}

	switch {
	case errors.Is(err, common.ErrInsufficientBalance):
		writeError(w, http.StatusPaymentRequired, message("insufficient token balance"))
	case errors.Is(err, common.ErrEntityNotFound):
		writeError(w, http.StatusNotFound, message("unknown ticker"))
	case errors.Is(err, common.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		slog.Error("Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
