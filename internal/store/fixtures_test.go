package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/verifmatos/internal/model"
)

// createPostTemplate creates a two-section template with three items.
func createPostTemplate(t *testing.T, database *sql.DB) *model.Template {
	t.Helper()

	tmpl, err := CreateTemplate(context.Background(), database, *createPostTemplateInput())
	require.NoError(t, err)
	return tmpl
}

func createPostTemplateInput() *model.Template {
	return &model.Template{
		Name:        "Poste standard",
		Description: "Lot de base",
		Sections: []model.TemplateSection{
			{Name: "Sac d'intervention", Items: []model.TemplateItem{
				{Label: "Compresses", ExpectedQuantity: 20, Unit: "pcs"},
				{Label: "Gants", ExpectedQuantity: 10, Unit: "paires"},
			}},
			{Name: "Oxygénothérapie", Items: []model.TemplateItem{
				{Label: "Bouteille O2", ExpectedQuantity: 1, RequiresFunctionalCheck: true},
			}},
		},
	}
}

// createTemplatedEvent creates an event from the standard template.
func createTemplatedEvent(t *testing.T, database *sql.DB, title string) *model.Event {
	t.Helper()

	tmpl := createPostTemplate(t, database)
	event, err := CreateEventWithChecklist(context.Background(), database, NewEvent{
		Title:      title,
		TemplateID: tmpl.ID,
	})
	require.NoError(t, err)
	return event
}

// lineIDs returns the line IDs of a public checklist in display order.
func lineIDs(pc *model.PublicChecklist) []string {
	var ids []string
	for _, s := range pc.Sections {
		for _, it := range s.Items {
			ids = append(ids, it.ID)
		}
	}
	return ids
}

func strPtr(s string) *string { return &s }
