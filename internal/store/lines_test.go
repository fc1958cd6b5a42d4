package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/verifmatos/internal/db"
	"github.com/erazemk/verifmatos/internal/model"
)

func TestUpdateLineForEvent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	event := createTemplatedEvent(t, database, "Festival d'été")
	pc, err := GetPublicChecklist(ctx, database, event.PublicSlug)
	require.NoError(t, err)
	lineID := lineIDs(pc)[0]

	now := time.Now().UTC()
	line, err := UpdateLineForEvent(ctx, database, event.PublicSlug, lineID, LineUpdate{
		Status:         model.LineStatusMissing,
		Comment:        strPtr("2 compresses manquantes"),
		CheckedByLabel: strPtr("Binôme 2"),
		CheckedAt:      now,
	})
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Equal(t, model.LineStatusMissing, line.Status)
	if assert.NotNil(t, line.Comment) {
		assert.Equal(t, "2 compresses manquantes", *line.Comment)
	}
	if assert.NotNil(t, line.CheckedByLabel) {
		assert.Equal(t, "Binôme 2", *line.CheckedByLabel)
	}
	if assert.NotNil(t, line.CheckedAt) {
		assert.True(t, line.CheckedAt.Equal(now), "checked_at %v, want %v", line.CheckedAt, now)
	}
	assert.Equal(t, int64(1), line.Version)

	// Back to OK clears the comment and bumps the version.
	line, err = UpdateLineForEvent(ctx, database, event.PublicSlug, lineID, LineUpdate{
		Status:    model.LineStatusOK,
		CheckedAt: now.Add(time.Second),
	})
	require.NoError(t, err)
	require.NotNil(t, line)
	assert.Nil(t, line.Comment)
	assert.Nil(t, line.CheckedByLabel)
	assert.Equal(t, int64(2), line.Version)
}

func TestUpdateLineForeignEvent(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	tmpl := createPostTemplate(t, database)
	a, err := CreateEventWithChecklist(ctx, database, NewEvent{Title: "A", TemplateID: tmpl.ID})
	require.NoError(t, err)
	b, err := CreateEventWithChecklist(ctx, database, NewEvent{Title: "B", TemplateID: tmpl.ID})
	require.NoError(t, err)

	pcA, err := GetPublicChecklist(ctx, database, a.PublicSlug)
	require.NoError(t, err)
	lineA := lineIDs(pcA)[0]

	line, err := UpdateLineForEvent(ctx, database, b.PublicSlug, lineA, LineUpdate{Status: model.LineStatusOK})
	require.NoError(t, err)
	require.Nil(t, line, "a line of another event is not found")

	got, err := GetLine(ctx, database, lineA)
	require.NoError(t, err)
	assert.Equal(t, model.LineStatusPending, got.Status)
	assert.Zero(t, got.Version)

	line, err = UpdateLineForEvent(ctx, database, a.PublicSlug, "not-a-line", LineUpdate{Status: model.LineStatusOK})
	assert.NoError(t, err)
	assert.Nil(t, line)
}

func TestMissingRequiresCommentInSchema(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	event := createTemplatedEvent(t, database, "Brocante")
	pc, err := GetPublicChecklist(ctx, database, event.PublicSlug)
	require.NoError(t, err)
	lineID := lineIDs(pc)[0]

	for _, u := range []LineUpdate{
		{Status: model.LineStatusMissing},
		{Status: model.LineStatusMissing, Comment: strPtr("")},
		{Status: model.LineStatusOK, Comment: strPtr("stray")},
	} {
		_, err := UpdateLineForEvent(ctx, database, event.PublicSlug, lineID, u)
		assert.Error(t, err, "constraint violation for %+v", u)
	}

	got, err := GetLine(ctx, database, lineID)
	require.NoError(t, err)
	assert.Equal(t, model.LineStatusPending, got.Status)
}

func TestListAnomalies(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	tmpl := createPostTemplate(t, database)
	a, err := CreateEventWithChecklist(ctx, database, NewEvent{Title: "A", TemplateID: tmpl.ID})
	require.NoError(t, err)
	b, err := CreateEventWithChecklist(ctx, database, NewEvent{Title: "B", TemplateID: tmpl.ID})
	require.NoError(t, err)
	pcA, err := GetPublicChecklist(ctx, database, a.PublicSlug)
	require.NoError(t, err)
	pcB, err := GetPublicChecklist(ctx, database, b.PublicSlug)
	require.NoError(t, err)

	base := time.Now().UTC()
	check := func(slug, lineID string, u LineUpdate) {
		t.Helper()
		_, err := UpdateLineForEvent(ctx, database, slug, lineID, u)
		require.NoError(t, err)
	}
	check(a.PublicSlug, lineIDs(pcA)[0], LineUpdate{Status: model.LineStatusMissing, Comment: strPtr("vides"), CheckedAt: base})
	check(b.PublicSlug, lineIDs(pcB)[2], LineUpdate{Status: model.LineStatusMissing, Comment: strPtr("bouteille vide"), CheckedAt: base.Add(time.Second)})
	check(a.PublicSlug, lineIDs(pcA)[1], LineUpdate{Status: model.LineStatusOK, CheckedAt: base})

	all, err := ListAnomalies(ctx, database, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	// Newest first.
	first := all[0]
	assert.Equal(t, "B", first.EventTitle)
	assert.Equal(t, "Bouteille O2", first.ItemLabel)
	assert.Equal(t, "Oxygénothérapie", first.SectionName)
	assert.Equal(t, "bouteille vide", first.Comment)

	onlyA, err := ListAnomalies(ctx, database, a.ID)
	require.NoError(t, err)
	require.Len(t, onlyA, 1)
	assert.Equal(t, a.ID, onlyA[0].EventID)
}
