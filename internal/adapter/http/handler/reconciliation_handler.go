package handler

import (
	"net/http"
	"time"

	"github.com/cashtrail/cashtrail/internal/adapter/http/dto"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

// ReconciliationHandler handles ledger health HTTP requests.
type ReconciliationHandler struct {
	reconciliation *usecase.ReconciliationUseCase
}

// NewReconciliationHandler creates a new ReconciliationHandler.
func NewReconciliationHandler(reconciliation *usecase.ReconciliationUseCase) *ReconciliationHandler {
	return &ReconciliationHandler{reconciliation: reconciliation}
}

// CheckConsistency runs the full running-sum check.
func (h *ReconciliationHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.reconciliation.CheckConsistency(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "consistency check failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromReport(report))
}

// UnmatchedTransfers reports transfer refs with missing or disagreeing
// legs. The window defaults to the last 30 days.
func (h *ReconciliationHandler) UnmatchedTransfers(w http.ResponseWriter, r *http.Request) {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -30)

	if v := r.URL.Query().Get("from"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date", err.Error())
			return
		}
		from = parsed
	}

	if v := r.URL.Query().Get("to"); v != "" {
		parsed, err := parseDate(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date", err.Error())
			return
		}
		// Inclusive end date.
		to = parsed.AddDate(0, 0, 1)
	}

	reports, err := h.reconciliation.FindUnmatchedTransfers(r.Context(), from, to)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "transfer scan failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.TransferLegsFromReports(reports))
}
