package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiaflow/annotengine/pkg/adapters/memory"
	"github.com/academiaflow/annotengine/pkg/core"
)

func snap(id string) core.Snapshot {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return core.Snapshot{ID: id, Page: 1, Kind: core.KindNote, Width: 1, Height: 1,
		CreatedAt: now, LastModified: now, Tags: core.Tags{"x"}}
}

func TestRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	require.NoError(t, repo.Initialize(ctx))

	err := repo.Save(ctx, "doc", snap("a1"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "doc", PageCount: 2}))
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "other", PageCount: 1}))
	require.NoError(t, repo.Save(ctx, "doc", snap("a1")))
	require.NoError(t, repo.Save(ctx, "doc", snap("a2")))
	require.NoError(t, repo.Save(ctx, "other", snap("b1")))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "doc", got.DocumentID)

	list, err := repo.List(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "doc", docs[0].ID)

	require.NoError(t, repo.Delete(ctx, "a2"))
	require.NoError(t, repo.Delete(ctx, "a2"), "delete is idempotent")
	_, err = repo.Get(ctx, "a2")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, repo.DeleteDocument(ctx, "doc"))
	assert.Equal(t, 1, repo.Len())
	_, err = repo.GetDocument(ctx, "doc")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "doc"}))

	s := snap("a1")
	require.NoError(t, repo.Save(ctx, "doc", s))
	s.Tags[0] = "mutated"

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, core.Tags{"x"}, got.Tags)
}

func TestRepository_MoveBetweenDocuments(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "d1"}))
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "d2"}))

	require.NoError(t, repo.Save(ctx, "d1", snap("a1")))
	require.NoError(t, repo.Save(ctx, "d2", snap("a1")))

	l1, _ := repo.List(ctx, "d1")
	l2, _ := repo.List(ctx, "d2")
	assert.Empty(t, l1)
	assert.Len(t, l2, 1)
}

func TestRepository_InvalidID(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	assert.ErrorIs(t, repo.PutDocument(ctx, core.Document{ID: "../escape"}), core.ErrInvalidID)
}

func TestRepository_NotFoundMessages(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()

	_, err := repo.Get(ctx, "a1")
	assert.EqualError(t, err, "annotation a1: not found")
	_, err = repo.GetDocument(ctx, "doc")
	assert.EqualError(t, err, "document doc: not found")
	assert.EqualError(t, repo.Save(ctx, "doc", snap("a1")), "document doc: not found")
}

func TestRepository_State(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "doc", PageCount: 1}))
	require.NoError(t, repo.Save(ctx, "doc", snap("a1")))

	assert.Equal(t, memory.State{Documents: 1, Annotations: 1}, repo.State())
	assert.Equal(t, "memory-repository", repo.ComponentType())
}
