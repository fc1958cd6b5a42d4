package api

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/verifmatos/internal/checklist"
	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/realtime"
)

// Options holds the dependencies of the API router. Nil limiters disable
// rate limiting.
type Options struct {
	DB            *sql.DB
	JWTSecret     string
	Checklists    *checklist.Service
	Hub           *realtime.Hub
	PublicLimiter *RateLimiter
	LoginLimiter  *RateLimiter
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(opts Options) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: opts.DB, JWTSecret: opts.JWTSecret}
	publicHandler := &PublicHandler{Checklists: opts.Checklists, Hub: opts.Hub}
	eventsHandler := &EventsHandler{DB: opts.DB}
	templatesHandler := &TemplatesHandler{DB: opts.DB}
	anomaliesHandler := &AnomaliesHandler{DB: opts.DB}

	authMW := AuthMiddleware(opts.JWTSecret, opts.DB)
	requireChef := RequireRole(model.RoleChef)
	requireMateriel := RequireRole(model.RoleMateriel)

	// Public checklist: the slug is the credential.
	mux.HandleFunc("GET /api/public/{slug}", publicHandler.Get)
	mux.Handle("POST /api/public/{slug}/lines/{lineID}", opts.PublicLimiter.Middleware(http.HandlerFunc(publicHandler.SubmitCheck)))
	mux.HandleFunc("GET /api/public/{slug}/ws", publicHandler.Subscribe)

	// Auth.
	mux.Handle("POST /api/auth/login", opts.LoginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.Handle("POST /api/auth/logout", authMW(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("PUT /api/auth/password", authMW(http.HandlerFunc(authHandler.ChangePassword)))

	// Events (chef+, chefs limited to their own).
	mux.Handle("POST /api/events", authMW(requireChef(http.HandlerFunc(eventsHandler.Create))))
	mux.Handle("GET /api/events", authMW(requireChef(http.HandlerFunc(eventsHandler.List))))
	mux.Handle("GET /api/events/{id}", authMW(requireChef(http.HandlerFunc(eventsHandler.Get))))
	mux.Handle("DELETE /api/events/{id}", authMW(requireChef(http.HandlerFunc(eventsHandler.Delete))))
	mux.Handle("PUT /api/events/{id}/status", authMW(requireChef(http.HandlerFunc(eventsHandler.UpdateStatus))))
	mux.Handle("GET /api/events/{id}/checklist", authMW(requireChef(http.HandlerFunc(eventsHandler.Checklist))))
	mux.Handle("POST /api/events/{id}/sections", authMW(requireChef(http.HandlerFunc(eventsHandler.AddSection))))
	mux.Handle("POST /api/events/{id}/sections/{sectionID}/items", authMW(requireChef(http.HandlerFunc(eventsHandler.AddItem))))

	// Templates and anomalies (materiel+).
	mux.Handle("POST /api/templates", authMW(requireMateriel(http.HandlerFunc(templatesHandler.Create))))
	mux.Handle("GET /api/templates", authMW(requireMateriel(http.HandlerFunc(templatesHandler.List))))
	mux.Handle("GET /api/templates/{id}", authMW(requireMateriel(http.HandlerFunc(templatesHandler.Get))))
	mux.Handle("GET /api/anomalies", authMW(requireMateriel(http.HandlerFunc(anomaliesHandler.List))))

	return mux
}
