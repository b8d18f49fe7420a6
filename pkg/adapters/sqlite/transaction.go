package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/academiaflow/annotengine/pkg/core"
)

// Transaction wraps an SQL transaction. Staged writes are visible only to
// the transaction until Commit.
type Transaction struct {
	mu   sync.Mutex
	tx   *sql.Tx
	done bool
}

// Begin starts a transaction.
func (r *Repository) Begin(ctx context.Context) (core.Transaction, error) {
	if err := r.writable("begin", ""); err != nil {
		return nil, err
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx}, nil
}

func (t *Transaction) Save(ctx context.Context, docID string, s core.Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	return save(ctx, t.tx, docID, s)
}

func (t *Transaction) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	return remove(ctx, t.tx, id)
}

// Commit commits the transaction. The change reason is not recorded.
func (t *Transaction) Commit(ctx context.Context, changeReason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return sql.ErrTxDone
	}
	t.done = true
	return t.tx.Commit()
}

func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return nil
	}
	t.done = true
	return t.tx.Rollback()
}
