package model

import "time"

// Verification line statuses.
const (
	LineStatusPending = "PENDING"
	LineStatusOK      = "OK"
	LineStatusMissing = "MISSING"
)

// Section is an ordered group of checklist items inside an event.
type Section struct {
	ID       string `json:"id"`
	EventID  string `json:"event_id"`
	Name     string `json:"name"`
	Position int    `json:"position"`
	Items    []Item `json:"items"`
}

// Item is a piece of equipment expected at the post.
type Item struct {
	ID                      string `json:"id"`
	SectionID               string `json:"section_id"`
	Label                   string `json:"label"`
	ExpectedQuantity        int    `json:"expected_quantity"`
	Unit                    string `json:"unit,omitempty"`
	RequiresExpiryCheck     bool   `json:"requires_expiry_check"`
	RequiresFunctionalCheck bool   `json:"requires_functional_check"`
	Position                int    `json:"position"`
	Line                    *Line  `json:"line,omitempty"`
}

// Line is the mutable verification state of one checklist item.
type Line struct {
	ID             string     `json:"id"`
	ItemID         string     `json:"checklist_item_id"`
	Status         string     `json:"status"`
	Comment        *string    `json:"comment"`
	CheckedAt      *time.Time `json:"checked_at,omitempty"`
	CheckedByLabel *string    `json:"checked_by_label,omitempty"`
	Version        int64      `json:"version"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Progress counts lines that are no longer pending.
type Progress struct {
	Done  int `json:"done"`
	Total int `json:"total"`
}

// Add counts one line with the given status.
func (p *Progress) Add(status string) {
	p.Total++
	if status != LineStatusPending {
		p.Done++
	}
}

// Checklist is the full back-office tree of an event.
type Checklist struct {
	Event    Event     `json:"event"`
	Sections []Section `json:"sections"`
	Progress Progress  `json:"progress"`
}

// Anomaly is a MISSING line with the context needed to act on it.
type Anomaly struct {
	LineID           string     `json:"line_id"`
	EventID          string     `json:"event_id"`
	EventTitle       string     `json:"event_title"`
	EventStatus      string     `json:"event_status"`
	SectionName      string     `json:"section_name"`
	ItemLabel        string     `json:"item_label"`
	ExpectedQuantity int        `json:"expected_quantity"`
	Unit             string     `json:"unit,omitempty"`
	Comment          string     `json:"comment"`
	CheckedAt        *time.Time `json:"checked_at,omitempty"`
	CheckedByLabel   string     `json:"checked_by_label,omitempty"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
