package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/verifmatos/internal/model"
)

// NewEvent holds the fields needed to create an event.
type NewEvent struct {
	Title       string
	Description string
	Status      string
	TemplateID  string
	CreatedBy   *int64
}

const eventColumns = `id, title, description, public_slug, status, template_name, created_by, created_at, updated_at`

// CreateEventWithChecklist creates an event with a freshly minted public slug.
// When a template is given, its sections and items are deep-copied and every
// item gets a PENDING verification line, all in the same transaction.
func CreateEventWithChecklist(ctx context.Context, db *sql.DB, e NewEvent) (*model.Event, error) {
	slug, err := NewPublicSlug(e.Title)
	if err != nil {
		return nil, err
	}
	if e.Status == "" {
		e.Status = model.EventStatusDraft
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var tmpl *model.Template
	if e.TemplateID != "" {
		tmpl = &model.Template{ID: e.TemplateID}
		err := tx.QueryRowContext(ctx,
			`SELECT name FROM templates WHERE id = ?`, e.TemplateID,
		).Scan(&tmpl.Name)
		if err == sql.ErrNoRows {
			return nil, ErrTemplateNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("getting template: %w", err)
		}
		tmpl.Sections, err = loadTemplateSections(ctx, tx, e.TemplateID)
		if err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	var templateName sql.NullString
	if tmpl != nil {
		templateName = nullString(tmpl.Name)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (id, title, description, public_slug, status, template_name, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, e.Title, nullString(e.Description), slug, e.Status, templateName, e.CreatedBy,
	)
	if err != nil {
		return nil, fmt.Errorf("creating event: %w", err)
	}

	if tmpl != nil {
		for _, s := range tmpl.Sections {
			sectionID, err := insertSection(ctx, tx, id, s.Name, s.Position)
			if err != nil {
				return nil, err
			}
			for _, it := range s.Items {
				_, err := insertItem(ctx, tx, sectionID, model.Item{
					Label:                   it.Label,
					ExpectedQuantity:        it.ExpectedQuantity,
					Unit:                    it.Unit,
					RequiresExpiryCheck:     it.RequiresExpiryCheck,
					RequiresFunctionalCheck: it.RequiresFunctionalCheck,
					Position:                it.Position,
				})
				if err != nil {
					return nil, err
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing event: %w", err)
	}

	return GetEvent(ctx, db, id)
}

// GetEvent returns an event by ID.
func GetEvent(ctx context.Context, db *sql.DB, id string) (*model.Event, error) {
	row := db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting event: %w", err)
	}
	return e, nil
}

// GetEventIDBySlug resolves a public slug to its event ID.
// Returns an empty string when no event carries the slug.
func GetEventIDBySlug(ctx context.Context, db *sql.DB, slug string) (string, error) {
	var id string
	err := db.QueryRowContext(ctx, `SELECT id FROM events WHERE public_slug = ?`, slug).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolving public slug: %w", err)
	}
	return id, nil
}

// ListEvents returns events newest first with their progress, optionally
// restricted to the events created by one user.
func ListEvents(ctx context.Context, db *sql.DB, createdBy *int64) ([]model.Event, error) {
	query := `SELECT e.id, e.title, e.description, e.public_slug, e.status, e.template_name,
	                 e.created_by, e.created_at, e.updated_at,
	                 COUNT(vl.id), COALESCE(SUM(vl.status <> 'PENDING'), 0)
	          FROM events e
	          LEFT JOIN checklist_sections cs ON cs.event_id = e.id
	          LEFT JOIN checklist_items ci ON ci.section_id = cs.id
	          LEFT JOIN verification_lines vl ON vl.checklist_item_id = ci.id`
	var args []any
	if createdBy != nil {
		query += ` WHERE e.created_by = ?`
		args = append(args, *createdBy)
	}
	query += ` GROUP BY e.id ORDER BY e.created_at DESC, e.rowid DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer rows.Close()

	var events []model.Event
	for rows.Next() {
		var e model.Event
		var description, templateName sql.NullString
		p := &model.Progress{}
		if err := rows.Scan(&e.ID, &e.Title, &description, &e.PublicSlug, &e.Status, &templateName,
			&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &p.Total, &p.Done); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		e.Description = description.String
		e.TemplateName = templateName.String
		e.Progress = p
		events = append(events, e)
	}
	return events, rows.Err()
}

// UpdateEventStatus changes an event's lifecycle status. The public slug is
// never rewritten.
func UpdateEventStatus(ctx context.Context, db *sql.DB, id, status string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE events SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("updating event status: %w", err)
	}
	return nil
}

// DeleteEvent deletes an event; its sections, items and lines cascade.
func DeleteEvent(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting event: %w", err)
	}
	return nil
}

func scanEvent(row *sql.Row) (*model.Event, error) {
	e := &model.Event{}
	var description, templateName sql.NullString
	err := row.Scan(&e.ID, &e.Title, &description, &e.PublicSlug, &e.Status, &templateName,
		&e.CreatedBy, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.Description = description.String
	e.TemplateName = templateName.String
	return e, nil
}
