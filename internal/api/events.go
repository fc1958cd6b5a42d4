package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/store"
)

// EventsHandler handles event administration. Chefs only see and manage the
// events they created.
type EventsHandler struct {
	DB *sql.DB
}

type createEventRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	TemplateID  string `json:"template_id"`
}

type updateEventStatusRequest struct {
	Status string `json:"status"`
}

type createSectionRequest struct {
	Name     string `json:"name"`
	Position int    `json:"position"`
}

type createItemRequest struct {
	Label                   string `json:"label"`
	ExpectedQuantity        int    `json:"expected_quantity"`
	Unit                    string `json:"unit"`
	RequiresExpiryCheck     bool   `json:"requires_expiry_check"`
	RequiresFunctionalCheck bool   `json:"requires_functional_check"`
	Position                int    `json:"position"`
}

// Create handles POST /api/events.
func (h *EventsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		jsonFieldError(w, "title", "title required")
		return
	}
	if req.Status != "" && !model.ValidEventStatus(req.Status) {
		jsonFieldError(w, "status", "status must be 'draft', 'active' or 'done'")
		return
	}

	claims := GetClaims(r.Context())
	event, err := store.CreateEventWithChecklist(r.Context(), h.DB, store.NewEvent{
		Title:       req.Title,
		Description: strings.TrimSpace(req.Description),
		Status:      req.Status,
		TemplateID:  req.TemplateID,
		CreatedBy:   &claims.UserID,
	})
	if errors.Is(err, store.ErrTemplateNotFound) {
		jsonError(w, http.StatusNotFound, "template not found")
		return
	}
	if err != nil {
		slog.Error("failed to create event", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to create event")
		return
	}

	slog.Info("event created", "user", claims.Username, "event", event.ID, "template", event.TemplateName)
	jsonResponse(w, http.StatusCreated, event)
}

// List handles GET /api/events.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	var createdBy *int64
	if claims := GetClaims(r.Context()); claims.Role == model.RoleChef {
		createdBy = &claims.UserID
	}

	events, err := store.ListEvents(r.Context(), h.DB, createdBy)
	if err != nil {
		slog.Error("failed to list events", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []model.Event{}
	}
	jsonResponse(w, http.StatusOK, events)
}

// Get handles GET /api/events/{id}.
func (h *EventsHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, event)
}

// UpdateStatus handles PUT /api/events/{id}/status.
func (h *EventsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	var req updateEventStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidEventStatus(req.Status) {
		jsonFieldError(w, "status", "status must be 'draft', 'active' or 'done'")
		return
	}

	if err := store.UpdateEventStatus(r.Context(), h.DB, event.ID, req.Status); err != nil {
		slog.Error("failed to update event status", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to update event")
		return
	}

	updated, err := store.GetEvent(r.Context(), h.DB, event.ID)
	if err != nil || updated == nil {
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}

	slog.Info("event status updated", "user", GetClaims(r.Context()).Username, "event", event.ID, "status", req.Status)
	jsonResponse(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/events/{id}.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	if err := store.DeleteEvent(r.Context(), h.DB, event.ID); err != nil {
		slog.Error("failed to delete event", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to delete event")
		return
	}

	slog.Info("event deleted", "user", GetClaims(r.Context()).Username, "event", event.ID)
	w.WriteHeader(http.StatusNoContent)
}

// Checklist handles GET /api/events/{id}/checklist.
func (h *EventsHandler) Checklist(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	c, err := store.GetChecklist(r.Context(), h.DB, event.ID)
	if err != nil || c == nil {
		slog.Error("failed to get checklist", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get checklist")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// AddSection handles POST /api/events/{id}/sections.
func (h *EventsHandler) AddSection(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	var req createSectionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		jsonFieldError(w, "name", "name required")
		return
	}

	section, err := store.AddSection(r.Context(), h.DB, event.ID, req.Name, req.Position)
	if err != nil {
		slog.Error("failed to add section", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to add section")
		return
	}
	jsonResponse(w, http.StatusCreated, section)
}

// AddItem handles POST /api/events/{id}/sections/{sectionID}/items.
func (h *EventsHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	event, ok := h.loadEvent(w, r)
	if !ok {
		return
	}

	sectionID := r.PathValue("sectionID")
	owner, err := store.GetSectionEventID(r.Context(), h.DB, sectionID)
	if err != nil {
		slog.Error("failed to get section", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if owner != event.ID {
		jsonError(w, http.StatusNotFound, "section not found")
		return
	}

	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" {
		jsonFieldError(w, "label", "label required")
		return
	}
	if req.ExpectedQuantity < 1 {
		jsonFieldError(w, "expected_quantity", "expected_quantity must be at least 1")
		return
	}

	item, err := store.AddItem(r.Context(), h.DB, sectionID, model.Item{
		Label:                   req.Label,
		ExpectedQuantity:        req.ExpectedQuantity,
		Unit:                    strings.TrimSpace(req.Unit),
		RequiresExpiryCheck:     req.RequiresExpiryCheck,
		RequiresFunctionalCheck: req.RequiresFunctionalCheck,
		Position:                req.Position,
	})
	if err != nil {
		slog.Error("failed to add item", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to add item")
		return
	}
	jsonResponse(w, http.StatusCreated, item)
}

// loadEvent resolves {id} and enforces chef ownership. It writes the error
// response itself and reports whether the handler may continue.
func (h *EventsHandler) loadEvent(w http.ResponseWriter, r *http.Request) (*model.Event, bool) {
	event, err := store.GetEvent(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		slog.Error("failed to get event", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to get event")
		return nil, false
	}
	if event == nil {
		jsonError(w, http.StatusNotFound, "event not found")
		return nil, false
	}

	claims := GetClaims(r.Context())
	if claims.Role == model.RoleChef && (event.CreatedBy == nil || *event.CreatedBy != claims.UserID) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return nil, false
	}
	return event, true
}
