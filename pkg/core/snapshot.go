package core

import "time"

// Snapshot is the boundary-safe copy of an Annotation. It is the only form in
// which annotations travel to and from the store. Treat it as immutable: the
// Tags slice is copied whenever a snapshot is built or consumed.
type Snapshot struct {
	ID           string    `json:"id" yaml:"id"`
	DocumentID   string    `json:"documentId,omitempty" yaml:"documentId,omitempty"`
	Page         int       `json:"pageIndex" yaml:"pageIndex"`
	Kind         Kind      `json:"kind" yaml:"kind"`
	Color        string    `json:"color" yaml:"color"`
	Contents     string    `json:"contents,omitempty" yaml:"contents,omitempty"`
	X            float64   `json:"x" yaml:"x"`
	Y            float64   `json:"y" yaml:"y"`
	Width        float64   `json:"width" yaml:"width"`
	Height       float64   `json:"height" yaml:"height"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
	LastModified time.Time `json:"lastModified" yaml:"lastModified"`
	Category     string    `json:"category,omitempty" yaml:"category,omitempty"`
	Tags         Tags      `json:"tags,omitempty" yaml:"tags,omitempty"`
	Hidden       bool      `json:"isHidden" yaml:"isHidden"`
}

// Bounds derives the rectangle from the four stored scalars.
func (s Snapshot) Bounds() Bounds {
	return NewBounds(s.X, s.Y, s.Width, s.Height)
}

// WithDocument returns a copy bound to docID.
func (s Snapshot) WithDocument(docID string) Snapshot {
	s.Tags = s.Tags.Clone()
	s.DocumentID = docID
	return s
}
