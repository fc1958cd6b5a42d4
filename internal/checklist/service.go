// Package checklist implements the public checklist flow: reading an event's
// tree by public slug and recording field checks on verification lines.
package checklist

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/erazemk/verifmatos/internal/metrics"
	"github.com/erazemk/verifmatos/internal/model"
	"github.com/erazemk/verifmatos/internal/store"
)

// Limits on free-text fields of a check.
const (
	MaxCommentLength = 500
	MaxLabelLength   = 80
)

// Notifier is told about every accepted check. Notify must not block.
type Notifier interface {
	Notify(topic string)
}

// CheckInput is a field check submitted through a public link.
type CheckInput struct {
	Status         string
	Comment        string
	CheckedByLabel string
}

// Service reads and updates checklists addressed by public slug.
type Service struct {
	DB       *sql.DB
	Notifier Notifier
	Now      func() time.Time
}

// NewService creates a checklist service.
func NewService(db *sql.DB, notifier Notifier) *Service {
	return &Service{DB: db, Notifier: notifier, Now: time.Now}
}

// PublicChecklist returns the current tree for slug.
func (s *Service) PublicChecklist(ctx context.Context, slug string) (*model.PublicChecklist, error) {
	pc, err := store.GetPublicChecklist(ctx, s.DB, slug)
	if err != nil {
		return nil, err
	}
	if pc == nil {
		return nil, ErrNotFound
	}
	return pc, nil
}

// Exists reports ErrNotFound when no event is published under slug.
func (s *Service) Exists(ctx context.Context, slug string) error {
	id, err := store.GetEventIDBySlug(ctx, s.DB, slug)
	if err != nil {
		return err
	}
	if id == "" {
		return ErrNotFound
	}
	return nil
}

// SubmitCheck records a field check on one line of the event published under
// slug, then notifies the event's viewers.
//
// Only OK and MISSING can be submitted, and MISSING needs a non-blank comment.
// The comment is dropped for OK. Rejected submissions write nothing and
// notify no one.
func (s *Service) SubmitCheck(ctx context.Context, slug, lineID string, in CheckInput) (*model.Line, error) {
	update, err := s.validate(in)
	if err != nil {
		metrics.IncLineCheck("invalid")
		return nil, err
	}

	if _, err := uuid.Parse(lineID); err != nil {
		metrics.IncLineCheck("not_found")
		return nil, ErrNotFound
	}

	line, err := store.UpdateLineForEvent(ctx, s.DB, slug, lineID, update)
	if err != nil {
		return nil, err
	}
	if line == nil {
		metrics.IncLineCheck("not_found")
		return nil, ErrNotFound
	}

	metrics.IncLineCheck(strings.ToLower(line.Status))
	slog.Info("line checked", "line", line.ID, "status", line.Status, "version", line.Version)

	if s.Notifier != nil {
		s.Notifier.Notify(slug)
	}
	return line, nil
}

func (s *Service) validate(in CheckInput) (store.LineUpdate, error) {
	u := store.LineUpdate{Status: in.Status}

	switch in.Status {
	case model.LineStatusOK:
	case model.LineStatusMissing:
		comment := strings.TrimSpace(in.Comment)
		if comment == "" {
			return u, &ValidationError{Field: "comment", Message: "a comment is required when status is MISSING"}
		}
		if utf8.RuneCountInString(comment) > MaxCommentLength {
			return u, &ValidationError{Field: "comment", Message: fmt.Sprintf("comment must be at most %d characters", MaxCommentLength)}
		}
		u.Comment = &comment
	default:
		return u, &ValidationError{Field: "status", Message: "status must be OK or MISSING"}
	}

	if label := strings.TrimSpace(in.CheckedByLabel); label != "" {
		if utf8.RuneCountInString(label) > MaxLabelLength {
			return u, &ValidationError{Field: "checked_by_label", Message: fmt.Sprintf("label must be at most %d characters", MaxLabelLength)}
		}
		u.CheckedByLabel = &label
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	u.CheckedAt = now().UTC()
	return u, nil
}
