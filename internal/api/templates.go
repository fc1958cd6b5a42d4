package api

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/store"
)

// TemplatesHandler handles checklist template endpoints.
type TemplatesHandler struct {
	DB *sql.DB
}

type createTemplateRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description"`
	VersionDate string                  `json:"version_date"`
	Sections    []model.TemplateSection `json:"sections"`
}

// Create handles POST /api/templates.
func (h *TemplatesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	t, field, msg := req.toTemplate()
	if field != "" {
		jsonFieldError(w, field, msg)
		return
	}

	created, err := store.CreateTemplate(r.Context(), h.DB, t)
	if errors.Is(err, store.ErrTemplateExists) {
		slog.Warn("template name already exists", "template", t.Name)
		jsonError(w, http.StatusConflict, "template name already exists")
		return
	}
	if err != nil {
		slog.Error("failed to create template", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create template")
		return
	}

	claims := GetClaims(r.Context())
	slog.Info("template created", "user", claims.Username, "template", created.Name)
	jsonResponse(w, http.StatusCreated, created)
}

// List handles GET /api/templates.
func (h *TemplatesHandler) List(w http.ResponseWriter, r *http.Request) {
	templates, err := store.ListTemplates(r.Context(), h.DB)
	if err != nil {
		slog.Error("failed to list templates", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	if templates == nil {
		templates = []model.Template{}
	}
	jsonResponse(w, http.StatusOK, templates)
}

// Get handles GET /api/templates/{id}.
func (h *TemplatesHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := store.GetTemplate(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get template", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get template")
		return
	}
	if t == nil {
		jsonError(w, http.StatusNotFound, "template not found")
		return
	}
	jsonResponse(w, http.StatusOK, t)
}

// toTemplate validates the request. On failure it returns the offending
// field and a message.
func (req createTemplateRequest) toTemplate() (model.Template, string, string) {
	t := model.Template{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Sections:    req.Sections,
	}
	if t.Name == "" {
		return t, "name", "name required"
	}

	if req.VersionDate != "" {
		d, err := time.Parse(time.DateOnly, req.VersionDate)
		if err != nil {
			return t, "version_date", "version_date must be YYYY-MM-DD"
		}
		t.VersionDate = &d
	}

	for i := range t.Sections {
		s := &t.Sections[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return t, fmt.Sprintf("sections[%d].name", i), "section name required"
		}
		for j := range s.Items {
			it := &s.Items[j]
			it.Label = strings.TrimSpace(it.Label)
			if it.Label == "" {
				return t, fmt.Sprintf("sections[%d].items[%d].label", i, j), "item label required"
			}
			if it.ExpectedQuantity < 0 {
				return t, fmt.Sprintf("sections[%d].items[%d].expected_quantity", i, j), "expected_quantity must be positive"
			}
		}
	}
	return t, "", ""
}
