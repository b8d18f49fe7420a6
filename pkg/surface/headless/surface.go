// Package headless is a core.Surface that renders nothing. It records the
// primitives it is asked to draw and answers hit tests against them, which
// makes it usable for command-line replay and for tests.
package headless

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/academiaflow/annotengine/pkg/core"
)

// DefaultPageSize is US Letter in points.
var DefaultPageSize = core.PageSize{Width: 612, Height: 792}

// Surface keeps primitives per page, in drawing order.
type Surface struct {
	mu    sync.RWMutex
	docs  map[string]registration
	pages map[int][]core.Primitive
}

type registration struct {
	info core.DocumentInfo
	path string
}

// New creates an empty surface.
func New() *Surface {
	return &Surface{
		docs:  make(map[string]registration),
		pages: make(map[int][]core.Primitive),
	}
}

// Register makes docID openable with pageCount pages of DefaultPageSize.
// A non-empty path must exist on disk when Open is called.
func (s *Surface) Register(docID string, pageCount int, path string) {
	pages := make([]core.PageSize, pageCount)
	for i := range pages {
		pages[i] = DefaultPageSize
	}
	s.RegisterInfo(docID, core.DocumentInfo{PageCount: pageCount, Pages: pages}, path)
}

// RegisterInfo registers an explicit page layout.
func (s *Surface) RegisterInfo(docID string, info core.DocumentInfo, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[docID] = registration{info: info, path: path}
}

// Open returns the registered layout and clears previously drawn primitives.
func (s *Surface) Open(ctx context.Context, docID string) (core.DocumentInfo, error) {
	if err := ctx.Err(); err != nil {
		return core.DocumentInfo{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.docs[docID]
	if !ok {
		return core.DocumentInfo{}, fmt.Errorf("%w: %s", core.ErrFileNotFound, docID)
	}
	if reg.path != "" {
		info, err := os.Stat(reg.path)
		if err != nil {
			return core.DocumentInfo{}, fmt.Errorf("%w: %s: %v", core.ErrFileNotFound, reg.path, err)
		}
		if info.IsDir() {
			return core.DocumentInfo{}, fmt.Errorf("%w: %s is a directory", core.ErrInvalidDocument, reg.path)
		}
	}
	if reg.info.PageCount < 1 {
		return core.DocumentInfo{}, fmt.Errorf("%w: %s has no pages", core.ErrInvalidDocument, docID)
	}

	s.pages = make(map[int][]core.Primitive)
	return reg.info, nil
}

func (s *Surface) AddPrimitive(pageIndex int, p core.Primitive) error {
	if pageIndex < 0 {
		return fmt.Errorf("page index %d out of range", pageIndex)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[pageIndex] = append(s.pages[pageIndex], p)
	return nil
}

// RemovePrimitive removes the primitive carrying the same annotation id, or,
// for primitives without one, the first with identical geometry and subtype.
func (s *Surface) RemovePrimitive(pageIndex int, p core.Primitive) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.pages[pageIndex]
	for i, q := range list {
		if matches(q, p) {
			s.pages[pageIndex] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return nil
}

func matches(a, b core.Primitive) bool {
	if a.AnnotationID != "" || b.AnnotationID != "" {
		return a.AnnotationID == b.AnnotationID
	}
	return a.Subtype == b.Subtype && a.Rect == b.Rect
}

// HitTest returns the most recently drawn visible primitive containing pt.
func (s *Surface) HitTest(pageIndex int, pt core.Point) (core.Primitive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.pages[pageIndex]
	for i := len(list) - 1; i >= 0; i-- {
		if !list[i].Hidden && list[i].Rect.Contains(pt) {
			return list[i], true
		}
	}
	return core.Primitive{}, false
}

// Primitives returns a copy of what is drawn on a page.
func (s *Surface) Primitives(pageIndex int) []core.Primitive {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Primitive(nil), s.pages[pageIndex]...)
}

// Count returns the number of primitives drawn across all pages.
func (s *Surface) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, list := range s.pages {
		n += len(list)
	}
	return n
}

var _ core.Surface = (*Surface)(nil)
