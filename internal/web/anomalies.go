package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/store"
)

// AnomaliesPage handles GET /anomalies.
func (s *Server) AnomaliesPage(w http.ResponseWriter, r *http.Request) {
	data := &struct {
		PageData
		Anomalies []model.Anomaly
	}{
		PageData: PageData{Title: "Anomalies", User: GetWebClaims(r.Context())},
	}

	anomalies, err := store.ListAnomalies(r.Context(), s.DB, r.URL.Query().Get("event_id"))
	if err != nil {
		slog.Error("failed to list anomalies", "error", err)
		data.Error = "Impossible de charger les anomalies."
	}
	data.Anomalies = anomalies

	s.Templates.Render(w, "anomalies.html", data)
}
