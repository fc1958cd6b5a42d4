package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/erazemk/verifmatos/internal/checklist"
	"github.com/erazemk/verifmatos/internal/realtime"
)

// PublicHandler serves the unauthenticated checklist endpoints. The slug in
// the path is the only credential.
type PublicHandler struct {
	Checklists *checklist.Service
	Hub        *realtime.Hub
}

type submitCheckRequest struct {
	Status         string `json:"status"`
	Comment        string `json:"comment"`
	CheckedByLabel string `json:"checked_by_label"`
}

// Get handles GET /api/public/{slug}.
func (h *PublicHandler) Get(w http.ResponseWriter, r *http.Request) {
	pc, err := h.Checklists.PublicChecklist(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeChecklistError(w, err, "checklist not found")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	jsonResponse(w, http.StatusOK, pc)
}

// SubmitCheck handles POST /api/public/{slug}/lines/{lineID}.
func (h *PublicHandler) SubmitCheck(w http.ResponseWriter, r *http.Request) {
	var req submitCheckRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	line, err := h.Checklists.SubmitCheck(r.Context(), r.PathValue("slug"), r.PathValue("lineID"), checklist.CheckInput{
		Status:         req.Status,
		Comment:        req.Comment,
		CheckedByLabel: req.CheckedByLabel,
	})
	if err != nil {
		writeChecklistError(w, err, "line not found")
		return
	}
	jsonResponse(w, http.StatusOK, line)
}

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Signals carry no data, so any page holding the slug may listen.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Signal types sent over the websocket.
const (
	SignalSubscribed  = "subscribed"
	SignalLineUpdated = "line-updated"
)

type signalMessage struct {
	Type string `json:"type"`
}

// Subscribe handles GET /api/public/{slug}/ws. After the "subscribed" message
// the client receives a "line-updated" signal for every accepted check and
// re-fetches the checklist.
func (h *PublicHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if err := h.Checklists.Exists(r.Context(), slug); err != nil {
		writeChecklistError(w, err, "checklist not found")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client.
		slog.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.Hub.Subscribe(slug)
	defer sub.Close()

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	// Clients never send anything meaningful; reading only detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := writeSignal(conn, SignalSubscribed); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-sub.C:
			if err := writeSignal(conn, SignalLineUpdated); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeSignal(conn *websocket.Conn, signal string) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(signalMessage{Type: signal})
}

// writeChecklistError maps checklist errors to HTTP responses.
func writeChecklistError(w http.ResponseWriter, err error, notFound string) {
	var verr *checklist.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonFieldError(w, verr.Field, verr.Message)
	case errors.Is(err, checklist.ErrNotFound):
		jsonError(w, http.StatusNotFound, notFound)
	default:
		slog.Error("checklist request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
