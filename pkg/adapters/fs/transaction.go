package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/academiaflow/annotengine/pkg/core"
)

// ErrTransactionClosed is returned by a transaction after Commit or Rollback.
var ErrTransactionClosed = errors.New("transaction closed")

type stagedSave struct {
	docID string
	snap  core.Snapshot
}

// Transaction applies a batch of annotation writes and removals, then records
// them in a single commit. If any file operation fails, files already touched
// are restored.
type Transaction struct {
	repo    *Repository
	mu      sync.Mutex
	order   []string // ids in staging order
	saves   map[string]stagedSave
	deletes map[string]bool
	closed  bool
}

// Begin starts a transaction.
func (r *Repository) Begin(ctx context.Context) (core.Transaction, error) {
	if err := r.writable("begin", ""); err != nil {
		return nil, err
	}
	return r.begin(), nil
}

func (r *Repository) begin() *Transaction {
	return &Transaction{
		repo:    r,
		saves:   make(map[string]stagedSave),
		deletes: make(map[string]bool),
	}
}

func (t *Transaction) stage(id string) {
	for _, o := range t.order {
		if o == id {
			return
		}
	}
	t.order = append(t.order, id)
}

// Save stages an annotation write. The last staged operation per id wins.
func (t *Transaction) Save(ctx context.Context, docID string, s core.Snapshot) error {
	if err := core.ValidateID(docID); err != nil {
		return err
	}
	if err := core.ValidateID(s.ID); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransactionClosed
	}
	t.stage(s.ID)
	t.saves[s.ID] = stagedSave{docID: docID, snap: s.WithDocument(docID)}
	delete(t.deletes, s.ID)
	return nil
}

// Delete stages an annotation removal.
func (t *Transaction) Delete(ctx context.Context, id string) error {
	if err := core.ValidateID(id); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransactionClosed
	}
	t.stage(id)
	t.deletes[id] = true
	delete(t.saves, id)
	return nil
}

// backup is the prior content of a touched file; nil data means it did not exist.
type backup struct {
	rel  string
	data []byte
}

func (r *Repository) backupFile(rel string) (backup, error) {
	data, err := os.ReadFile(r.abs(rel))
	if errors.Is(err, os.ErrNotExist) {
		return backup{rel: rel}, nil
	}
	if err != nil {
		return backup{}, err
	}
	return backup{rel: rel, data: data}, nil
}

func (r *Repository) restoreFiles(backups []backup) {
	for i := len(backups) - 1; i >= 0; i-- {
		b := backups[i]
		var err error
		if b.data == nil {
			err = os.Remove(r.abs(b.rel))
			if errors.Is(err, os.ErrNotExist) {
				err = nil
			}
		} else {
			err = writeFileAtomic(r.abs(b.rel), b.data, 0644)
		}
		if err != nil {
			r.config.Logger.Error("failed to restore file after aborted write", "path", b.rel, "error", err)
		}
	}
}

// Commit applies the staged operations in staging order.
func (t *Transaction) Commit(ctx context.Context, changeReason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrTransactionClosed
	}
	t.closed = true

	r := t.repo
	unlock, err := r.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	var (
		backups []backup
		added   []string
		removed []string
	)
	// Index updates are applied only once every file operation succeeded.
	var apply []func()

	fail := func(err error) error {
		r.restoreFiles(backups)
		return err
	}

	for _, id := range t.order {
		prev, hadPrev, err := r.findAnnotation(id)
		if err != nil {
			return fail(err)
		}

		if st, ok := t.saves[id]; ok {
			if _, ok, err := r.findDocument(st.docID); err != nil {
				return fail(err)
			} else if !ok {
				return fail(fmt.Errorf("document %s: %w", st.docID, core.ErrNotFound))
			}

			rel := annotationPath(st.docID, id, r.serializer.Ext())
			b, err := r.backupFile(rel)
			if err != nil {
				return fail(err)
			}
			backups = append(backups, b)
			if err := r.writeRecord(rel, st.snap); err != nil {
				return fail(err)
			}
			added = append(added, rel)

			if hadPrev && prev.Path != rel {
				b, err := r.backupFile(prev.Path)
				if err != nil {
					return fail(err)
				}
				backups = append(backups, b)
				if err := os.Remove(r.abs(prev.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fail(err)
				}
				removed = append(removed, prev.Path)
			}

			entry := &indexEntry{DocumentID: st.docID, Path: rel}
			apply = append(apply, func() { r.cache.Set(id, entry) })
			continue
		}

		if t.deletes[id] && hadPrev {
			b, err := r.backupFile(prev.Path)
			if err != nil {
				return fail(err)
			}
			backups = append(backups, b)
			if err := os.Remove(r.abs(prev.Path)); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fail(err)
			}
			removed = append(removed, prev.Path)
			apply = append(apply, func() { r.cache.Delete(id) })
		}
	}

	if len(added) == 0 && len(removed) == 0 {
		return nil
	}

	msg := changeReason
	if msg == "" {
		msg = fmt.Sprintf("annotation: batch of %d changes", len(t.order))
	}
	if err := r.commit(ctx, msg, added, removed); err != nil {
		return fail(err)
	}

	for _, fn := range apply {
		fn()
	}
	r.flushCache()
	return nil
}

// Rollback discards staged operations. Nothing was written yet.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.order, t.saves, t.deletes = nil, nil, nil
	t.closed = true
	return nil
}
