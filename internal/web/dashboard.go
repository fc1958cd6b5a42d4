package web

import (
	"log/slog"
	"net/http"

	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/store"
)

// Dashboard handles GET /. Chefs see their own events, admins all of them.
// The materiel team has no events to run and lands on the anomalies.
func (s *Server) Dashboard(w http.ResponseWriter, r *http.Request) {
	claims := GetWebClaims(r.Context())
	if claims.Role == model.RoleMateriel {
		http.Redirect(w, r, "/anomalies", http.StatusSeeOther)
		return
	}

	var createdBy *int64
	if claims.Role == model.RoleChef {
		createdBy = &claims.UserID
	}

	data := &struct {
		PageData
		Events []model.Event
	}{
		PageData: PageData{Title: "Événements", User: claims},
	}

	events, err := store.ListEvents(r.Context(), s.DB, createdBy)
	if err != nil {
		slog.Error("failed to list events for dashboard", "error", err)
		data.Error = "Impossible de charger les événements."
	}
	data.Events = events

	s.Templates.Render(w, "dashboard.html", data)
}
