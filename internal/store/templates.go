package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/erazemk/verifmatos/internal/model"
)

var (
	// ErrTemplateNotFound is returned when an event references an unknown template.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrTemplateExists is returned when a template name is already taken.
	ErrTemplateExists = errors.New("template name already exists")
)

// CreateTemplate creates a template with its sections and items in one transaction.
// Positions default to the order in which sections and items are given.
func CreateTemplate(ctx context.Context, db *sql.DB, t model.Template) (*model.Template, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO templates (id, name, description, version_date) VALUES (?, ?, ?, ?)`,
		id, t.Name, nullString(t.Description), t.VersionDate,
	)
	if isUniqueViolation(err) {
		return nil, ErrTemplateExists
	}
	if err != nil {
		return nil, fmt.Errorf("creating template: %w", err)
	}

	for i, s := range t.Sections {
		sectionID := uuid.NewString()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO template_sections (id, template_id, name, position) VALUES (?, ?, ?, ?)`,
			sectionID, id, s.Name, positionOr(s.Position, i),
		)
		if err != nil {
			return nil, fmt.Errorf("creating template section: %w", err)
		}

		for j, it := range s.Items {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO template_items (id, section_id, label, expected_quantity, unit,
				     requires_expiry_check, requires_functional_check, position)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				uuid.NewString(), sectionID, it.Label, quantityOr(it.ExpectedQuantity), nullString(it.Unit),
				it.RequiresExpiryCheck, it.RequiresFunctionalCheck, positionOr(it.Position, j),
			)
			if err != nil {
				return nil, fmt.Errorf("creating template item: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing template: %w", err)
	}

	return GetTemplate(ctx, db, id)
}

// GetTemplate returns a template with its ordered sections and items.
func GetTemplate(ctx context.Context, db *sql.DB, id string) (*model.Template, error) {
	t := &model.Template{}
	var description sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT id, name, description, version_date, created_at FROM templates WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &description, &t.VersionDate, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting template: %w", err)
	}
	t.Description = description.String

	sections, err := loadTemplateSections(ctx, db, id)
	if err != nil {
		return nil, err
	}
	t.Sections = sections
	return t, nil
}

// ListTemplates returns all templates without their sections.
func ListTemplates(ctx context.Context, db *sql.DB) ([]model.Template, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, description, version_date, created_at FROM templates ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing templates: %w", err)
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		var t model.Template
		var description sql.NullString
		if err := rows.Scan(&t.ID, &t.Name, &description, &t.VersionDate, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning template: %w", err)
		}
		t.Description = description.String
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func loadTemplateSections(ctx context.Context, q queryer, templateID string) ([]model.TemplateSection, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, name, position FROM template_sections
		 WHERE template_id = ? ORDER BY position, rowid`, templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing template sections: %w", err)
	}

	sections := []model.TemplateSection{}
	index := map[string]int{}
	for rows.Next() {
		s := model.TemplateSection{Items: []model.TemplateItem{}}
		if err := rows.Scan(&s.ID, &s.Name, &s.Position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning template section: %w", err)
		}
		index[s.ID] = len(sections)
		sections = append(sections, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing template sections: %w", err)
	}

	rows, err = q.QueryContext(ctx,
		`SELECT ti.id, ti.section_id, ti.label, ti.expected_quantity, ti.unit,
		        ti.requires_expiry_check, ti.requires_functional_check, ti.position
		 FROM template_items ti
		 JOIN template_sections ts ON ts.id = ti.section_id
		 WHERE ts.template_id = ?
		 ORDER BY ti.position, ti.rowid`, templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing template items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.TemplateItem
		var sectionID string
		var unit sql.NullString
		if err := rows.Scan(&it.ID, &sectionID, &it.Label, &it.ExpectedQuantity, &unit,
			&it.RequiresExpiryCheck, &it.RequiresFunctionalCheck, &it.Position); err != nil {
			return nil, fmt.Errorf("scanning template item: %w", err)
		}
		it.Unit = unit.String
		i, ok := index[sectionID]
		if !ok {
			continue
		}
		sections[i].Items = append(sections[i].Items, it)
	}
	return sections, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func positionOr(position, fallback int) int {
	if position != 0 {
		return position
	}
	return fallback
}

func quantityOr(q int) int {
	if q < 1 {
		return 1
	}
	return q
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
