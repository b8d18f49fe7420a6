package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Draft carries the user-supplied fields of an annotation about to be created.
type Draft struct {
	Page     int // 1-based
	Kind     Kind
	Color    string
	Contents string
	Bounds   Bounds
	Category string
	Tags     []string
}

// Annotation is the live, mutable entity owned by a session.
// It never crosses into the persistence domain; Snapshot does.
type Annotation struct {
	ID           string
	Page         int // 1-based page number
	Kind         Kind
	Color        string // "#RRGGBBAA"
	Contents     string // empty means absent
	Bounds       Bounds
	CreatedAt    time.Time
	LastModified time.Time
	Category     string
	Tags         Tags
	Hidden       bool

	// Document is a non-owning back-reference; it is never persisted.
	Document *Document
}

// NewAnnotation creates an annotation with a fresh id. CreatedAt and
// LastModified are both set to now.
func NewAnnotation(d Draft, doc *Document, now time.Time) *Annotation {
	now = now.UTC()
	return &Annotation{
		ID:           uuid.NewString(),
		Page:         d.Page,
		Kind:         d.Kind,
		Color:        d.Color,
		Contents:     d.Contents,
		Bounds:       d.Bounds,
		CreatedAt:    now,
		LastModified: now,
		Category:     d.Category,
		Tags:         NewTags(d.Tags...),
		Document:     doc,
	}
}

// Validate checks the bounds and that Page lies in [1, pageCount].
// A non-positive pageCount skips the page check.
func (a *Annotation) Validate(pageCount int) error {
	if !a.Bounds.Valid() {
		return fmt.Errorf("%w: bounds %v", ErrInvalidAnnotation, a.Bounds.Array())
	}
	if a.Page < 1 || (pageCount > 0 && a.Page > pageCount) {
		return fmt.Errorf("%w: page %d outside 1..%d", ErrInvalidAnnotation, a.Page, pageCount)
	}
	return nil
}

// RGBA decodes the stored color, falling back to Yellow.
func (a *Annotation) RGBA() Color {
	return DecodeColor(a.Color)
}

// Snapshot copies every scalar field into an immutable value.
func (a *Annotation) Snapshot() Snapshot {
	s := Snapshot{
		ID:           a.ID,
		Page:         a.Page,
		Kind:         a.Kind,
		Color:        a.Color,
		Contents:     a.Contents,
		X:            a.Bounds.X,
		Y:            a.Bounds.Y,
		Width:        a.Bounds.Width,
		Height:       a.Bounds.Height,
		CreatedAt:    a.CreatedAt,
		LastModified: a.LastModified,
		Category:     a.Category,
		Tags:         a.Tags.Clone(),
		Hidden:       a.Hidden,
	}
	if a.Document != nil {
		s.DocumentID = a.Document.ID
	}
	return s
}

// FromSnapshot rebuilds a live annotation. Identity and timestamps come from
// the snapshot, which makes restoring the same snapshot twice idempotent.
// When doc is nil but the snapshot names a document, a reference holding
// only that id is attached.
func FromSnapshot(s Snapshot, doc *Document) *Annotation {
	if doc == nil && s.DocumentID != "" {
		doc = &Document{ID: s.DocumentID}
	}
	return &Annotation{
		ID:           s.ID,
		Page:         s.Page,
		Kind:         s.Kind,
		Color:        s.Color,
		Contents:     s.Contents,
		Bounds:       s.Bounds(),
		CreatedAt:    s.CreatedAt,
		LastModified: s.LastModified,
		Category:     s.Category,
		Tags:         s.Tags.Clone(),
		Hidden:       s.Hidden,
		Document:     doc,
	}
}

// Drawable maps the annotation to the rendering backend's vocabulary.
// Unknown kinds are drawn as highlights.
func (a *Annotation) Drawable() Primitive {
	sub := SubtypeHighlight
	switch a.Kind {
	case KindUnderline:
		sub = SubtypeUnderline
	case KindStrikethrough:
		sub = SubtypeStrikeOut
	case KindNote:
		sub = SubtypeText
	}
	return Primitive{
		Subtype:      sub,
		Rect:         a.Bounds,
		Color:        a.RGBA(),
		Contents:     a.Contents,
		Hidden:       a.Hidden,
		AnnotationID: a.ID,
	}
}
