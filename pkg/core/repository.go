package core

import "context"

// Repository defines the contract for storing documents and their annotations.
// Adhering to this interface keeps the engine independent of the underlying
// storage mechanism (filesystem, SQL, memory).
//
// Implementations are not required to be safe for concurrent use: the
// gateway is their only caller and serializes every call.
type Repository interface {
	// Initialize ensures the underlying storage is ready (directories, schema).
	Initialize(ctx context.Context) error

	// PutDocument creates or replaces a document record.
	PutDocument(ctx context.Context, doc Document) error

	// GetDocument returns ErrNotFound when the record is absent.
	GetDocument(ctx context.Context, id string) (Document, error)

	// ListDocuments returns all document records.
	ListDocuments(ctx context.Context) ([]Document, error)

	// DeleteDocument removes the record and every annotation it owns in one unit.
	DeleteDocument(ctx context.Context, id string) error

	// Save upserts an annotation owned by docID. It returns ErrNotFound when the
	// document record is absent. Either every field is written or none is.
	Save(ctx context.Context, docID string, s Snapshot) error

	// Get retrieves an annotation by id.
	Get(ctx context.Context, id string) (Snapshot, error)

	// List returns the annotations owned by docID, in no particular order.
	List(ctx context.Context, docID string) ([]Snapshot, error)

	// Delete removes an annotation. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

type contextKey string

// ChangeReasonKey is the context key for passing a change reason (commit message)
// to versioned repositories during Save/Delete operations.
const ChangeReasonKey contextKey = "change_reason"

// Transaction defines the contract for a unit of work.
// Changes made within a transaction are applied together on Commit.
type Transaction interface {
	// Save stages an annotation for persistence.
	Save(ctx context.Context, docID string, s Snapshot) error

	// Delete stages an annotation for removal.
	Delete(ctx context.Context, id string) error

	// Commit applies all staged changes atomically.
	Commit(ctx context.Context, changeReason string) error

	// Rollback discards all staged changes.
	Rollback(ctx context.Context) error
}

// Transactional is implemented by repositories supporting multi-record units of work.
type Transactional interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Watchable is implemented by repositories that can report external changes.
type Watchable interface {
	Watch(ctx context.Context) (<-chan Event, error)
}

// Versioned is implemented by repositories that keep a change history.
type Versioned interface {
	History(ctx context.Context, id string) ([]Revision, error)
}

// Reindexable is implemented by repositories keeping a derived index that can
// be rebuilt from the records themselves.
type Reindexable interface {
	Reindex(ctx context.Context) error
}

// Revision is one entry of an annotation's change history.
type Revision struct {
	Hash    string
	Author  string
	Date    string
	Subject string
}
