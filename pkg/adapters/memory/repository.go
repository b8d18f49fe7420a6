// Package memory implements core.Repository in process memory.
//
// Documents act as arenas: each keeps the index of the annotation ids it
// owns, and deleting a document walks that index under the same lock.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/introspection"

	"github.com/academiaflow/annotengine/pkg/core"
)

// Repository is an ephemeral store.
type Repository struct {
	mu    sync.RWMutex
	docs  map[string]core.Document
	anns  map[string]core.Snapshot
	owned map[string]map[string]bool // document id -> annotation ids
}

// NewRepository creates an empty store.
func NewRepository() *Repository {
	return &Repository{
		docs:  make(map[string]core.Document),
		anns:  make(map[string]core.Snapshot),
		owned: make(map[string]map[string]bool),
	}
}

func (r *Repository) Initialize(ctx context.Context) error { return nil }

func (r *Repository) PutDocument(ctx context.Context, doc core.Document) error {
	if err := core.ValidateID(doc.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.docs[doc.ID] = doc
	if r.owned[doc.ID] == nil {
		r.owned[doc.ID] = make(map[string]bool)
	}
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id string) (core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return core.Document{}, fmt.Errorf("document %s: %w", id, core.ErrNotFound)
	}
	return doc, nil
}

func (r *Repository) ListDocuments(ctx context.Context) ([]core.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	docs := make([]core.Document, 0, len(r.docs))
	for _, d := range r.docs {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (r *Repository) DeleteDocument(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for annID := range r.owned[id] {
		delete(r.anns, annID)
	}
	delete(r.owned, id)
	delete(r.docs, id)
	return nil
}

func (r *Repository) Save(ctx context.Context, docID string, s core.Snapshot) error {
	if err := core.ValidateID(s.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[docID]; !ok {
		return fmt.Errorf("document %s: %w", docID, core.ErrNotFound)
	}
	// An id moving to another document leaves its old owner's index.
	if prev, ok := r.anns[s.ID]; ok && prev.DocumentID != docID {
		delete(r.owned[prev.DocumentID], s.ID)
	}
	r.anns[s.ID] = s.WithDocument(docID)
	r.owned[docID][s.ID] = true
	return nil
}

func (r *Repository) Get(ctx context.Context, id string) (core.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.anns[id]
	if !ok {
		return core.Snapshot{}, fmt.Errorf("annotation %s: %w", id, core.ErrNotFound)
	}
	return s.WithDocument(s.DocumentID), nil
}

func (r *Repository) List(ctx context.Context, docID string) ([]core.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]core.Snapshot, 0, len(r.owned[docID]))
	for id := range r.owned[docID] {
		s := r.anns[id]
		out = append(out, s.WithDocument(s.DocumentID))
	}
	return out, nil
}

func (r *Repository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.anns[id]
	if !ok {
		return nil
	}
	delete(r.owned[s.DocumentID], id)
	delete(r.anns, id)
	return nil
}

// Len returns the number of stored annotations.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.anns)
}

// State is the introspection view of the store.
type State struct {
	Documents   int `json:"documents"`
	Annotations int `json:"annotations"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return State{Documents: len(r.docs), Annotations: len(r.anns)}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "memory-repository"
}

var (
	_ core.Repository              = (*Repository)(nil)
	_ introspection.Introspectable = (*Repository)(nil)
	_ introspection.Component      = (*Repository)(nil)
)
