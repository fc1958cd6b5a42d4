package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/verifmatos/internal/model"
)

const lineColumns = `vl.id, vl.checklist_item_id, vl.status, vl.comment, vl.checked_at,
	vl.checked_by_label, vl.version, vl.updated_at`

// LineUpdate is the verification state written by a field check.
type LineUpdate struct {
	Status         string
	Comment        *string
	CheckedByLabel *string
	CheckedAt      time.Time
}

// GetLine returns a verification line by ID.
func GetLine(ctx context.Context, db *sql.DB, id string) (*model.Line, error) {
	return getLine(ctx, db, id)
}

func getLine(ctx context.Context, q queryer, id string) (*model.Line, error) {
	l := &model.Line{}
	err := q.QueryRowContext(ctx,
		`SELECT `+lineColumns+` FROM verification_lines vl WHERE vl.id = ?`, id,
	).Scan(&l.ID, &l.ItemID, &l.Status, &l.Comment, &l.CheckedAt, &l.CheckedByLabel, &l.Version, &l.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting verification line: %w", err)
	}
	return l, nil
}

// UpdateLineForEvent overwrites a line's verification state, but only if the
// line belongs to the event published under slug. Returns nil when it does not.
//
// The write is a single UPDATE, so concurrent checks of the same line resolve
// to the last one committed and each write bumps the line version.
func UpdateLineForEvent(ctx context.Context, db *sql.DB, slug, lineID string, u LineUpdate) (*model.Line, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE verification_lines
		 SET status = ?, comment = ?, checked_at = ?, checked_by_label = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND checklist_item_id IN (
		     SELECT ci.id FROM checklist_items ci
		     JOIN checklist_sections cs ON cs.id = ci.section_id
		     JOIN events e ON e.id = cs.event_id
		     WHERE e.public_slug = ?)`,
		u.Status, u.Comment, u.CheckedAt, u.CheckedByLabel, u.CheckedAt,
		lineID, slug,
	)
	if err != nil {
		return nil, fmt.Errorf("updating verification line: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("updating verification line: %w", err)
	}
	if n == 0 {
		return nil, nil
	}

	line, err := getLine(ctx, tx, lineID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing verification line: %w", err)
	}
	return line, nil
}

// ListAnomalies returns MISSING lines across events, most recently updated
// first. An empty eventID lists all events.
func ListAnomalies(ctx context.Context, db *sql.DB, eventID string) ([]model.Anomaly, error) {
	query := `SELECT vl.id, e.id, e.title, e.status, cs.name, ci.label, ci.expected_quantity, ci.unit,
	                 vl.comment, vl.checked_at, vl.checked_by_label, vl.updated_at
	          FROM verification_lines vl
	          JOIN checklist_items ci ON ci.id = vl.checklist_item_id
	          JOIN checklist_sections cs ON cs.id = ci.section_id
	          JOIN events e ON e.id = cs.event_id
	          WHERE vl.status = ?`
	args := []any{model.LineStatusMissing}
	if eventID != "" {
		query += ` AND e.id = ?`
		args = append(args, eventID)
	}
	query += ` ORDER BY vl.updated_at DESC, vl.rowid DESC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing anomalies: %w", err)
	}
	defer rows.Close()

	var anomalies []model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		var unit, comment, checkedBy sql.NullString
		if err := rows.Scan(&a.LineID, &a.EventID, &a.EventTitle, &a.EventStatus, &a.SectionName,
			&a.ItemLabel, &a.ExpectedQuantity, &unit, &comment, &a.CheckedAt, &checkedBy, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning anomaly: %w", err)
		}
		a.Unit = unit.String
		a.Comment = comment.String
		a.CheckedByLabel = checkedBy.String
		anomalies = append(anomalies, a)
	}
	return anomalies, rows.Err()
}
