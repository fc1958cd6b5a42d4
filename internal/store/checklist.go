package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/erazemk/verifmatos/internal/model"
)

// AddSection appends a section to an event's checklist.
func AddSection(ctx context.Context, db *sql.DB, eventID, name string, position int) (*model.Section, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertSection(ctx, tx, eventID, name, position)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing section: %w", err)
	}

	return &model.Section{ID: id, EventID: eventID, Name: name, Position: position, Items: []model.Item{}}, nil
}

// AddItem adds an item to a section together with its PENDING verification
// line, so an item never exists without a line.
func AddItem(ctx context.Context, db *sql.DB, sectionID string, item model.Item) (*model.Item, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	created, err := insertItem(ctx, tx, sectionID, item)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing item: %w", err)
	}

	created.Line, err = GetLine(ctx, db, created.Line.ID)
	if err != nil {
		return nil, err
	}
	return created, nil
}

// GetSectionEventID returns the event owning a section, or "" when absent.
func GetSectionEventID(ctx context.Context, db *sql.DB, sectionID string) (string, error) {
	var eventID string
	err := db.QueryRowContext(ctx,
		`SELECT event_id FROM checklist_sections WHERE id = ?`, sectionID,
	).Scan(&eventID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting section: %w", err)
	}
	return eventID, nil
}

// GetChecklist returns the full back-office tree of an event.
func GetChecklist(ctx context.Context, db *sql.DB, eventID string) (*model.Checklist, error) {
	event, err := GetEvent(ctx, db, eventID)
	if err != nil || event == nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT id, name, position FROM checklist_sections
		 WHERE event_id = ? ORDER BY position, rowid`, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sections: %w", err)
	}

	c := &model.Checklist{Event: *event, Sections: []model.Section{}}
	index := map[string]int{}
	for rows.Next() {
		s := model.Section{EventID: eventID, Items: []model.Item{}}
		if err := rows.Scan(&s.ID, &s.Name, &s.Position); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning section: %w", err)
		}
		index[s.ID] = len(c.Sections)
		c.Sections = append(c.Sections, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sections: %w", err)
	}

	rows, err = db.QueryContext(ctx,
		`SELECT ci.id, ci.section_id, ci.label, ci.expected_quantity, ci.unit,
		        ci.requires_expiry_check, ci.requires_functional_check, ci.position,
		        `+lineColumns+`
		 FROM checklist_items ci
		 JOIN checklist_sections cs ON cs.id = ci.section_id
		 JOIN verification_lines vl ON vl.checklist_item_id = ci.id
		 WHERE cs.event_id = ?
		 ORDER BY ci.position, ci.rowid`, eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it model.Item
		var unit sql.NullString
		line := &model.Line{}
		if err := rows.Scan(&it.ID, &it.SectionID, &it.Label, &it.ExpectedQuantity, &unit,
			&it.RequiresExpiryCheck, &it.RequiresFunctionalCheck, &it.Position,
			&line.ID, &line.ItemID, &line.Status, &line.Comment, &line.CheckedAt,
			&line.CheckedByLabel, &line.Version, &line.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning item: %w", err)
		}
		it.Unit = unit.String
		it.Line = line
		c.Progress.Add(line.Status)
		if i, ok := index[it.SectionID]; ok {
			c.Sections[i].Items = append(c.Sections[i].Items, it)
		}
	}
	return c, rows.Err()
}

func insertSection(ctx context.Context, tx *sql.Tx, eventID, name string, position int) (string, error) {
	id := uuid.NewString()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO checklist_sections (id, event_id, name, position) VALUES (?, ?, ?, ?)`,
		id, eventID, name, position,
	)
	if err != nil {
		return "", fmt.Errorf("creating section: %w", err)
	}
	return id, nil
}

func insertItem(ctx context.Context, tx *sql.Tx, sectionID string, item model.Item) (*model.Item, error) {
	item.ID = uuid.NewString()
	item.SectionID = sectionID
	item.ExpectedQuantity = quantityOr(item.ExpectedQuantity)

	_, err := tx.ExecContext(ctx,
		`INSERT INTO checklist_items (id, section_id, label, expected_quantity, unit,
		     requires_expiry_check, requires_functional_check, position)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, sectionID, item.Label, item.ExpectedQuantity, nullString(item.Unit),
		item.RequiresExpiryCheck, item.RequiresFunctionalCheck, item.Position,
	)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	lineID := uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO verification_lines (id, checklist_item_id, status) VALUES (?, ?, ?)`,
		lineID, item.ID, model.LineStatusPending,
	)
	if err != nil {
		return nil, fmt.Errorf("creating verification line: %w", err)
	}

	item.Line = &model.Line{ID: lineID, ItemID: item.ID, Status: model.LineStatusPending}
	return &item, nil
}
