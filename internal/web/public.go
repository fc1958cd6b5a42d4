package web

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/verifmatos/internal/checklist"
	"github.com/erazemk/verifmatos/internal/model"
)

// PublicPage handles GET /p/{slug}, the page opened by volunteers in the
// field. The tree is rendered server-side and public.js keeps it live.
func (s *Server) PublicPage(w http.ResponseWriter, r *http.Request) {
	// The slug is the credential; keep it out of Referer headers and caches.
	w.Header().Set("Referrer-Policy", "no-referrer")
	w.Header().Set("Cache-Control", "no-store")

	slug := r.PathValue("slug")
	pc, err := s.Checklists.PublicChecklist(r.Context(), slug)
	if errors.Is(err, checklist.ErrNotFound) {
		s.Templates.RenderStatus(w, http.StatusNotFound, "not_found.html", &PageData{Title: "Lien introuvable"})
		return
	}
	if err != nil {
		slog.Error("failed to load public checklist", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.Templates.Render(w, "public.html", &struct {
		PageData
		Slug      string
		Checklist *model.PublicChecklist
	}{
		PageData:  PageData{Title: pc.EventTitle},
		Slug:      slug,
		Checklist: pc,
	})
}
