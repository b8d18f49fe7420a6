// Package core holds the annotation domain: geometry, the annotation entity
// and its snapshot, the error taxonomy, and the contracts of the collaborators
// (store, PDF surface, error sink) the engine talks to.
package core

import (
	"fmt"
	"regexp"
	"time"
)

// Document is the PDF record that owns a set of annotations.
// Deleting a Document deletes its annotations.
type Document struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title,omitempty" yaml:"title,omitempty"`
	Path      string    `json:"path,omitempty" yaml:"path,omitempty"`
	PageCount int       `json:"pageCount" yaml:"pageCount"`
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateID checks that id is usable as a stable record key. The allowed
// alphabet keeps ids safe as file names and glob literals.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidID)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

// EventType represents the type of change in the store.
type EventType string

const (
	EventCreate EventType = "CREATE"
	EventModify EventType = "MODIFY"
	EventDelete EventType = "DELETE"
)

// Event represents a change in the store. AnnotationID is empty for
// document-level changes.
type Event struct {
	Type         EventType
	DocumentID   string
	AnnotationID string
	Timestamp    int64 // Unix timestamp
}

// String implements fmt.Stringer.
func (e Event) String() string {
	if e.AnnotationID == "" {
		return fmt.Sprintf("%s document %s", e.Type, e.DocumentID)
	}
	return fmt.Sprintf("%s annotation %s/%s", e.Type, e.DocumentID, e.AnnotationID)
}
