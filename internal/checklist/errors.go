package checklist

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for an unknown slug, and for a line that does not
// exist or belongs to another event. Callers cannot tell these apart.
var ErrNotFound = errors.New("not found")

// ValidationError rejects a submission before anything is written.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}
