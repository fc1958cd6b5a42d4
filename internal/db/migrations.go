package db

import (
	"database/sql"
	"fmt"
)

// migrations is a list of SQL statements applied in order after schema creation.
// Each migration must be idempotent. Append new migrations at the end.
var migrations = []string{
	// Migration 1: Lookup paths for the public checklist tree.
	`CREATE INDEX IF NOT EXISTS idx_checklist_sections_event
	     ON checklist_sections(event_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_checklist_items_section
	     ON checklist_items(section_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_template_sections_template
	     ON template_sections(template_id, position)`,
	`CREATE INDEX IF NOT EXISTS idx_template_items_section
	     ON template_items(section_id, position)`,

	// Migration 2: Anomaly listing scans MISSING lines newest first.
	`CREATE INDEX IF NOT EXISTS idx_verification_lines_status
	     ON verification_lines(status, updated_at)`,
}

// EnsureSchema creates all tables and indexes if they don't already exist,
// then applies the migrations.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("running migration %d: %w", i+1, err)
		}
	}

	return nil
}
