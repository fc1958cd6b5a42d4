package model

import "time"

// Template is a reusable checklist definition copied into new events.
type Template struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	VersionDate *time.Time        `json:"version_date,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Sections    []TemplateSection `json:"sections"`
}

// TemplateSection is an ordered group of template items.
type TemplateSection struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Position int            `json:"position"`
	Items    []TemplateItem `json:"items"`
}

// TemplateItem describes an item to verify.
type TemplateItem struct {
	ID                      string `json:"id"`
	Label                   string `json:"label"`
	ExpectedQuantity        int    `json:"expected_quantity"`
	Unit                    string `json:"unit,omitempty"`
	RequiresExpiryCheck     bool   `json:"requires_expiry_check"`
	RequiresFunctionalCheck bool   `json:"requires_functional_check"`
	Position                int    `json:"position"`
}
