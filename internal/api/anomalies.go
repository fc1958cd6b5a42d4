package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/store"
)

// AnomaliesHandler lists MISSING lines for the materiel team.
type AnomaliesHandler struct {
	DB *sql.DB
}

// List handles GET /api/anomalies, optionally filtered by ?event_id=.
func (h *AnomaliesHandler) List(w http.ResponseWriter, r *http.Request) {
	anomalies, err := store.ListAnomalies(r.Context(), h.DB, r.URL.Query().Get("event_id"))
	if err != nil {
		slog.Error("failed to list anomalies", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list anomalies")
		return
	}
	if anomalies == nil {
		anomalies = []model.Anomaly{}
	}
	jsonResponse(w, http.StatusOK, anomalies)
}
