package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cashtrail/cashtrail/internal/adapter/http/dto"
	"github.com/cashtrail/cashtrail/internal/usecase"
)

// SnapshotHandler handles daily snapshot HTTP requests.
type SnapshotHandler struct {
	builder *usecase.DailySnapshotBuilder
}

// NewSnapshotHandler creates a new SnapshotHandler.
func NewSnapshotHandler(builder *usecase.DailySnapshotBuilder) *SnapshotHandler {
	return &SnapshotHandler{builder: builder}
}

// Rebuild recomputes the snapshot for one account and day. A `to` query
// parameter turns it into an inclusive range rebuild starting at the
// path date.
func (h *SnapshotHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	if toParam := r.URL.Query().Get("to"); toParam != "" {
		to, err := parseDate(toParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid to date", err.Error())
			return
		}

		snaps, err := h.builder.RebuildRange(r.Context(), accountID, date, to)
		if err != nil {
			writeError(w, mapDomainError(err), "failed to rebuild snapshots", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, dto.SnapshotsFromDomain(snaps))
		return
	}

	snap, err := h.builder.RecomputeDailySnapshot(r.Context(), accountID, date)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to rebuild snapshot", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snap))
}

// Get returns the stored snapshot for one account and day.
func (h *SnapshotHandler) Get(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "id")
	if accountID == "" {
		writeError(w, http.StatusBadRequest, "missing account ID", "")
		return
	}

	date, err := parseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date", err.Error())
		return
	}

	snap, err := h.builder.GetDailySnapshot(r.Context(), accountID, date)
	if err != nil {
		writeError(w, mapDomainError(err), "failed to get snapshot", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, dto.SnapshotFromDomain(snap))
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}
