package web

import (
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/erazemk/verifmatos/internal/auth"
	"github.com/erazemk/verifmatos/internal/model"
	webembed "github.com/erazemk/verifmatos/web"
)

// Templates holds parsed HTML templates.
type Templates struct {
	templates map[string]*template.Template
}

// FuncMap returns the template function map.
func FuncMap() template.FuncMap {
	return template.FuncMap{
		"hasRole": model.HasRole,
		"roleName": func(role string) string {
			switch role {
			case model.RoleAdmin:
				return "Administrateur"
			case model.RoleChef:
				return "Chef de poste"
			case model.RoleMateriel:
				return "Responsable matériel"
			default:
				return role
			}
		},
		"statusName": func(status string) string {
			switch status {
			case model.LineStatusOK:
				return "OK"
			case model.LineStatusMissing:
				return "Manquant"
			case model.LineStatusPending:
				return "À vérifier"
			default:
				return status
			}
		},
		"eventStatusName": func(status string) string {
			switch status {
			case model.EventStatusDraft:
				return "Brouillon"
			case model.EventStatusActive:
				return "En cours"
			case model.EventStatusDone:
				return "Terminé"
			default:
				return status
			}
		},
		"percent": func(p *model.Progress) int {
			if p == nil || p.Total == 0 {
				return 0
			}
			return p.Done * 100 / p.Total
		},
	}
}

// pages are rendered inside layout.html.
var pages = []string{
	"login.html",
	"dashboard.html",
	"anomalies.html",
	"public.html",
	"not_found.html",
}

// LoadTemplates parses all page templates with the layout.
func LoadTemplates() (*Templates, error) {
	tfs := webembed.TemplatesFS()

	layoutBytes, err := fs.ReadFile(tfs, "layout.html")
	if err != nil {
		return nil, fmt.Errorf("reading layout template: %w", err)
	}

	ts := &Templates{templates: make(map[string]*template.Template)}

	for _, page := range pages {
		pageBytes, err := fs.ReadFile(tfs, page)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", page, err)
		}

		tmpl := template.New(page).Funcs(FuncMap())
		tmpl, err = tmpl.Parse(string(layoutBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing layout for %s: %w", page, err)
		}
		tmpl, err = tmpl.Parse(string(pageBytes))
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", page, err)
		}

		ts.templates[page] = tmpl
	}

	return ts, nil
}

// Render renders a page with status 200.
func (ts *Templates) Render(w http.ResponseWriter, name string, data any) {
	ts.RenderStatus(w, http.StatusOK, name, data)
}

// RenderStatus renders a page with the given status code.
func (ts *Templates) RenderStatus(w http.ResponseWriter, status int, name string, data any) {
	tmpl, ok := ts.templates[name]
	if !ok {
		http.Error(w, "template not found", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		slog.Error("failed to render template", "template", name, "error", err)
	}
}

// PageData is the base data passed to all templates.
type PageData struct {
	Title string
	User  *auth.Claims
	Error string
}
