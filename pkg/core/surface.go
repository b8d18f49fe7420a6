package core

import "context"

// Subtype is the rendering backend's annotation vocabulary (PDF /Subtype names).
type Subtype string

const (
	SubtypeHighlight Subtype = "Highlight"
	SubtypeUnderline Subtype = "Underline"
	SubtypeStrikeOut Subtype = "StrikeOut"
	SubtypeText      Subtype = "Text"
)

// Primitive is what the surface draws. AnnotationID travels with it so a
// hit-tested primitive can be mapped back to its annotation without
// comparing geometry.
type Primitive struct {
	Subtype      Subtype
	Rect         Bounds
	Color        Color
	Contents     string
	Hidden       bool
	AnnotationID string
}

// PageSize is the media box size of a page, in points.
type PageSize struct {
	Width  float64
	Height float64
}

// DocumentInfo describes an opened PDF.
type DocumentInfo struct {
	PageCount int
	Pages     []PageSize
}

// Surface is the PDF rendering backend. Page indices are 0-based.
type Surface interface {
	// Open loads the PDF identified by docID. Implementations should return
	// errors matching ErrFileNotFound or ErrInvalidDocument.
	Open(ctx context.Context, docID string) (DocumentInfo, error)

	AddPrimitive(pageIndex int, p Primitive) error
	RemovePrimitive(pageIndex int, p Primitive) error

	// HitTest returns the topmost primitive at pt, if any.
	HitTest(pageIndex int, pt Point) (Primitive, bool)
}
