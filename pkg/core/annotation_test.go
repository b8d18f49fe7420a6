package core_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiaflow/annotengine/pkg/core"
)

func sampleAnnotation(t *testing.T) *core.Annotation {
	t.Helper()
	doc := &core.Document{ID: "pdf-42", PageCount: 3}
	a := core.NewAnnotation(core.Draft{
		Page:     2,
		Kind:     core.KindNote,
		Color:    "#FF000080",
		Contents: "check this derivation",
		Bounds:   core.NewBounds(10, 10, 100, 20),
		Category: "methods",
		Tags:     []string{"todo", "proof", "todo"},
	}, doc, time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC))
	a.Hidden = true
	return a
}

func TestNewAnnotation(t *testing.T) {
	a := sampleAnnotation(t)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, a.CreatedAt, a.LastModified)
	assert.Equal(t, core.Tags{"todo", "proof"}, a.Tags)

	b := sampleAnnotation(t)
	assert.NotEqual(t, a.ID, b.ID, "ids must never be reused")
}

func TestSnapshot_RoundTrip(t *testing.T) {
	a := sampleAnnotation(t)
	a.LastModified = a.CreatedAt.Add(time.Minute)

	s := a.Snapshot()
	assert.Equal(t, "pdf-42", s.DocumentID)

	back := core.FromSnapshot(s, a.Document)
	if diff := cmp.Diff(a, back); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s, back.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshot_IsIndependentOfEntity(t *testing.T) {
	a := sampleAnnotation(t)
	s := a.Snapshot()

	a.Tags[0] = "mutated"
	a.Color = "#000000FF"

	assert.Equal(t, core.Tags{"todo", "proof"}, s.Tags)
	assert.Equal(t, "#FF000080", s.Color)

	back := core.FromSnapshot(s, nil)
	back.Tags[0] = "again"
	assert.Equal(t, "todo", s.Tags[0])
	require.NotNil(t, back.Document)
	assert.Equal(t, "pdf-42", back.Document.ID)
}

func TestAnnotation_Validate(t *testing.T) {
	a := sampleAnnotation(t)
	assert.NoError(t, a.Validate(3))
	assert.ErrorIs(t, a.Validate(1), core.ErrInvalidAnnotation)

	a.Page = 0
	assert.ErrorIs(t, a.Validate(3), core.ErrInvalidAnnotation)

	a.Page = 1
	a.Bounds = core.NewBounds(0, 0, -5, 1)
	assert.ErrorIs(t, a.Validate(3), core.ErrInvalidAnnotation)
}

func TestAnnotation_Drawable(t *testing.T) {
	cases := map[core.Kind]core.Subtype{
		core.KindHighlight:     core.SubtypeHighlight,
		core.KindUnderline:     core.SubtypeUnderline,
		core.KindStrikethrough: core.SubtypeStrikeOut,
		core.KindNote:          core.SubtypeText,
		core.Kind("squiggly"):  core.SubtypeHighlight,
	}
	for kind, want := range cases {
		a := &core.Annotation{ID: "a1", Kind: kind, Color: "#00FF00FF", Bounds: core.NewBounds(1, 2, 3, 4)}
		p := a.Drawable()
		assert.Equal(t, want, p.Subtype, kind)
		assert.Equal(t, "a1", p.AnnotationID)
		assert.Equal(t, core.NewBounds(1, 2, 3, 4), p.Rect)
	}

	bad := &core.Annotation{Kind: core.KindHighlight, Color: "garbage"}
	assert.Equal(t, core.Yellow, bad.Drawable().Color)
}

func TestParseKind(t *testing.T) {
	k, err := core.ParseKind("StrikeOut")
	require.NoError(t, err)
	assert.Equal(t, core.KindStrikethrough, k)

	_, err = core.ParseKind("circle")
	assert.Error(t, err)

	assert.True(t, core.KindNote.Known())
	assert.False(t, core.Kind("circle").Known())
}

func TestTags(t *testing.T) {
	// "é" precomposed vs. decomposed
	composed := "caf\u00e9"
	decomposed := "cafe\u0301"

	tags := core.NewTags(composed, "", decomposed, "ml")
	assert.Equal(t, core.Tags{composed, "ml"}, tags)
	assert.True(t, tags.Has(decomposed))
	assert.True(t, tags.Intersects(core.NewTags("x", decomposed)))
	assert.False(t, tags.Intersects(core.NewTags("x", "y")))
	assert.False(t, tags.Intersects(nil))
	assert.Nil(t, core.NewTags())
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, core.ValidateID("pdf-42"))
	assert.NoError(t, core.ValidateID("3f2a9c1e-0000-4000-8000-000000000000"))
	for _, bad := range []string{"", "../etc", "a/b", "*", ".hidden", "a b"} {
		assert.ErrorIs(t, core.ValidateID(bad), core.ErrInvalidID, bad)
	}
}
