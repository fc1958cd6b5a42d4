package model

// PublicChecklist is the view served to holders of an event's public link.
// Only the verification line id is exposed as an identifier.
type PublicChecklist struct {
	EventTitle string          `json:"event_title"`
	Progress   Progress        `json:"progress"`
	Sections   []PublicSection `json:"sections"`
}

// PublicSection is a named group in the public view.
type PublicSection struct {
	Name  string       `json:"name"`
	Items []PublicItem `json:"items"`
}

// PublicItem is one verifiable line in the public view.
type PublicItem struct {
	ID               string  `json:"id"`
	Label            string  `json:"label"`
	ExpectedQuantity int     `json:"expected_quantity"`
	Unit             string  `json:"unit,omitempty"`
	Status           string  `json:"status"`
	Comment          *string `json:"comment"`
}
