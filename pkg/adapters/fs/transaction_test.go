package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiaflow/annotengine/pkg/core"
)

func newTestRepo(t *testing.T) (*Repository, string) {
	t.Helper()
	root := t.TempDir()
	repo := NewRepository(Config{Path: root, Gitless: true})
	ctx := context.Background()
	require.NoError(t, repo.Initialize(ctx))
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "pdf-42", PageCount: 2}))
	return repo, root
}

func txSnap(id string) core.Snapshot {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return core.Snapshot{ID: id, Page: 1, Kind: core.KindNote, Width: 1, Height: 1, CreatedAt: now, LastModified: now}
}

func annotationFile(root, docID, id string) string {
	return filepath.Join(root, "documents", docID, "annotations", id+".json")
}

func TestTransaction_CommitAppliesAll(t *testing.T) {
	repo, root := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Save(ctx, "pdf-42", txSnap("old")))

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Save(ctx, "pdf-42", txSnap("n1")))
	require.NoError(t, tx.Save(ctx, "pdf-42", txSnap("n2")))
	require.NoError(t, tx.Delete(ctx, "old"))

	assert.NoFileExists(t, annotationFile(root, "pdf-42", "n1"), "nothing is written before commit")
	assert.FileExists(t, annotationFile(root, "pdf-42", "old"))

	require.NoError(t, tx.Commit(ctx, "import"))

	assert.FileExists(t, annotationFile(root, "pdf-42", "n1"))
	assert.FileExists(t, annotationFile(root, "pdf-42", "n2"))
	assert.NoFileExists(t, annotationFile(root, "pdf-42", "old"))

	_, err = repo.Get(ctx, "n2")
	assert.NoError(t, err)

	assert.ErrorIs(t, tx.Commit(ctx, ""), ErrTransactionClosed)
	assert.ErrorIs(t, tx.Save(ctx, "pdf-42", txSnap("late")), ErrTransactionClosed)
}

func TestTransaction_LastOperationWins(t *testing.T) {
	repo, root := newTestRepo(t)
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Save(ctx, "pdf-42", txSnap("n1")))
	require.NoError(t, tx.Delete(ctx, "n1"))
	require.NoError(t, tx.Commit(ctx, ""))

	assert.NoFileExists(t, annotationFile(root, "pdf-42", "n1"))
}

func TestTransaction_FailureRestoresFiles(t *testing.T) {
	repo, root := newTestRepo(t)
	ctx := context.Background()

	original := txSnap("keep")
	original.Contents = "original"
	require.NoError(t, repo.Save(ctx, "pdf-42", original))
	before, err := os.ReadFile(annotationFile(root, "pdf-42", "keep"))
	require.NoError(t, err)

	changed := txSnap("keep")
	changed.Contents = "changed"

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Save(ctx, "pdf-42", changed))
	require.NoError(t, tx.Save(ctx, "pdf-42", txSnap("fresh")))
	require.NoError(t, tx.Save(ctx, "missing-doc", txSnap("orphan")))

	err = tx.Commit(ctx, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	after, err := os.ReadFile(annotationFile(root, "pdf-42", "keep"))
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	assert.NoFileExists(t, annotationFile(root, "pdf-42", "fresh"))
}

func TestTransaction_Rollback(t *testing.T) {
	repo, root := newTestRepo(t)
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Save(ctx, "pdf-42", txSnap("n1")))
	require.NoError(t, tx.Rollback(ctx))
	require.NoError(t, tx.Rollback(ctx))

	assert.NoFileExists(t, annotationFile(root, "pdf-42", "n1"))
	assert.ErrorIs(t, tx.Commit(ctx, ""), ErrTransactionClosed)
}
