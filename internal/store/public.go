package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/erazemk/verifmatos/internal/model"
)

// GetPublicChecklist assembles the public view of the event published under
// slug. Returns nil when no event carries the slug; an event without sections
// yields an empty tree.
func GetPublicChecklist(ctx context.Context, db *sql.DB, slug string) (*model.PublicChecklist, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT e.title, cs.id, cs.name, vl.id, ci.label, ci.expected_quantity, ci.unit, vl.status, vl.comment
		 FROM events e
		 LEFT JOIN checklist_sections cs ON cs.event_id = e.id
		 LEFT JOIN checklist_items ci ON ci.section_id = cs.id
		 LEFT JOIN verification_lines vl ON vl.checklist_item_id = ci.id
		 WHERE e.public_slug = ?
		 ORDER BY cs.position, cs.rowid, ci.position, ci.rowid`, slug,
	)
	if err != nil {
		return nil, fmt.Errorf("getting public checklist: %w", err)
	}
	defer rows.Close()

	var pc *model.PublicChecklist
	lastSection := ""
	for rows.Next() {
		var title string
		var sectionID, sectionName, lineID, label, unit, status, comment sql.NullString
		var quantity sql.NullInt64
		if err := rows.Scan(&title, &sectionID, &sectionName, &lineID, &label, &quantity, &unit, &status, &comment); err != nil {
			return nil, fmt.Errorf("scanning public checklist: %w", err)
		}

		if pc == nil {
			pc = &model.PublicChecklist{EventTitle: title, Sections: []model.PublicSection{}}
		}
		if !sectionID.Valid {
			continue
		}
		if sectionID.String != lastSection {
			pc.Sections = append(pc.Sections, model.PublicSection{Name: sectionName.String, Items: []model.PublicItem{}})
			lastSection = sectionID.String
		}
		if !lineID.Valid {
			continue
		}

		item := model.PublicItem{
			ID:               lineID.String,
			Label:            label.String,
			ExpectedQuantity: int(quantity.Int64),
			Unit:             unit.String,
			Status:           status.String,
		}
		if comment.Valid {
			c := comment.String
			item.Comment = &c
		}
		s := &pc.Sections[len(pc.Sections)-1]
		s.Items = append(s.Items, item)
		pc.Progress.Add(item.Status)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("getting public checklist: %w", err)
	}

	return pc, nil
}
