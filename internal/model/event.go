package model

import "time"

// Event represents a deployment (a first-aid post on a given occasion) and
// owns one checklist.
type Event struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	PublicSlug   string    `json:"public_slug"`
	Status       string    `json:"status"`
	TemplateName string    `json:"template_name,omitempty"`
	CreatedBy    *int64    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Aggregates (not always populated).
	Progress *Progress `json:"progress,omitempty"`
}

// Event statuses.
const (
	EventStatusDraft  = "draft"
	EventStatusActive = "active"
	EventStatusDone   = "done"
)

// ValidEventStatus reports whether status is a known event status.
func ValidEventStatus(status string) bool {
	switch status {
	case EventStatusDraft, EventStatusActive, EventStatusDone:
		return true
	}
	return false
}
