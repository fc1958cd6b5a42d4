package web

import (
	"database/sql"
	"net/http"

	"github.com/erazemk/verifmatos/internal/checklist"
	"github.com/erazemk/verifmatos/internal/model"
	webembed "github.com/erazemk/verifmatos/web"
)

// Server holds all dependencies for page handlers.
type Server struct {
	DB         *sql.DB
	Templates  *Templates
	JWTSecret  string
	Checklists *checklist.Service
}

// NewRouter creates the web page router with all page routes registered.
func NewRouter(db *sql.DB, jwtSecret string, checklists *checklist.Service) (http.Handler, error) {
	templates, err := LoadTemplates()
	if err != nil {
		return nil, err
	}

	s := &Server{
		DB:         db,
		Templates:  templates,
		JWTSecret:  jwtSecret,
		Checklists: checklists,
	}

	mux := http.NewServeMux()
	cookieAuth := CookieAuthMiddleware(jwtSecret, db)

	// Static assets.
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(webembed.StaticFS()))))

	// Public checklist page.
	mux.HandleFunc("GET /p/{slug}", s.PublicPage)

	// Back office.
	mux.HandleFunc("GET /login", s.LoginPage)
	mux.HandleFunc("POST /login", s.LoginSubmit)
	mux.HandleFunc("POST /logout", s.Logout)

	mux.Handle("GET /{$}", cookieAuth(http.HandlerFunc(s.Dashboard)))
	mux.Handle("GET /anomalies", cookieAuth(requireRole(model.RoleMateriel)(http.HandlerFunc(s.AnomaliesPage))))

	return mux, nil
}
