package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiaflow/annotengine/pkg/adapters/sqlite"
	"github.com/academiaflow/annotengine/pkg/core"
)

func setup(t *testing.T, cfg sqlite.Config) *sqlite.Repository {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "annotations.db")
	}
	repo, err := sqlite.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	ctx := context.Background()
	require.NoError(t, repo.Initialize(ctx))
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "pdf-42", Title: "Paper", PageCount: 3}))
	return repo
}

func snap(id string, page int) core.Snapshot {
	created := time.Date(2026, 1, 2, 3, 4, 5, 123456789, time.UTC)
	return core.Snapshot{
		ID: id, DocumentID: "pdf-42", Page: page, Kind: core.KindUnderline, Color: "#00FF00FF",
		Contents: "note", X: 1.5, Y: 2.5, Width: 100, Height: 20,
		CreatedAt: created, LastModified: created.Add(time.Minute),
		Category: "methods", Tags: core.Tags{"todo", "stats"}, Hidden: true,
	}
}

func TestRepository_RoundTrip(t *testing.T) {
	repo := setup(t, sqlite.Config{})
	ctx := context.Background()

	want := snap("a1", 2)
	require.NoError(t, repo.Save(ctx, "pdf-42", want))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}

	plain := snap("a2", 1)
	plain.Tags = nil
	plain.Hidden = false
	require.NoError(t, repo.Save(ctx, "pdf-42", plain))
	got, err = repo.Get(ctx, "a2")
	require.NoError(t, err)
	assert.Nil(t, got.Tags)
	assert.False(t, got.Hidden)

	list, err := repo.List(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestRepository_Upsert(t *testing.T) {
	repo := setup(t, sqlite.Config{})
	ctx := context.Background()

	s := snap("a1", 1)
	require.NoError(t, repo.Save(ctx, "pdf-42", s))
	s.Contents = "edited"
	require.NoError(t, repo.Save(ctx, "pdf-42", s))

	got, err := repo.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "edited", got.Contents)

	list, err := repo.List(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRepository_Errors(t *testing.T) {
	repo := setup(t, sqlite.Config{})
	ctx := context.Background()

	assert.ErrorIs(t, repo.Save(ctx, "missing", snap("a1", 1)), core.ErrNotFound)
	_, err := repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = repo.GetDocument(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, repo.Delete(ctx, "nope"))
}

func TestRepository_FailedSaveReleasesConnection(t *testing.T) {
	repo := setup(t, sqlite.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Each save runs in its own transaction on the single connection, so a
	// failed one must roll back before anything else can run.
	assert.ErrorIs(t, repo.Save(ctx, "missing", snap("a1", 1)), core.ErrNotFound)
	assert.ErrorIs(t, repo.Save(ctx, "pdf-42", snap("../bad", 1)), core.ErrInvalidID)

	require.NoError(t, repo.Save(ctx, "pdf-42", snap("a1", 1)))
	require.NoError(t, repo.Delete(ctx, "a1"))
	list, err := repo.List(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRepository_DeleteDocumentCascades(t *testing.T) {
	repo := setup(t, sqlite.Config{})
	ctx := context.Background()
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "other", PageCount: 1}))

	require.NoError(t, repo.Save(ctx, "pdf-42", snap("a1", 1)))
	require.NoError(t, repo.Save(ctx, "pdf-42", snap("a2", 2)))
	require.NoError(t, repo.Save(ctx, "other", snap("b1", 1)))

	require.NoError(t, repo.DeleteDocument(ctx, "pdf-42"))

	list, err := repo.List(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = repo.Get(ctx, "b1")
	assert.NoError(t, err)

	docs, err := repo.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "other", docs[0].ID)
}

func TestRepository_DocumentKeepsCreationTime(t *testing.T) {
	repo := setup(t, sqlite.Config{})
	ctx := context.Background()

	first, err := repo.GetDocument(ctx, "pdf-42")
	require.NoError(t, err)
	require.NoError(t, repo.PutDocument(ctx, core.Document{ID: "pdf-42", Title: "Renamed", PageCount: 5}))

	second, err := repo.GetDocument(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", second.Title)
	assert.Equal(t, 5, second.PageCount)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))
}

func TestRepository_Transaction(t *testing.T) {
	repo := setup(t, sqlite.Config{})
	ctx := context.Background()

	tx, err := repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Save(ctx, "pdf-42", snap("a1", 1)))
	require.NoError(t, tx.Save(ctx, "pdf-42", snap("a2", 1)))
	require.NoError(t, tx.Rollback(ctx))

	list, err := repo.List(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Empty(t, list)

	tx, err = repo.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Save(ctx, "pdf-42", snap("a1", 1)))
	require.NoError(t, tx.Commit(ctx, "import"))
	assert.Error(t, tx.Commit(ctx, ""))

	_, err = repo.Get(ctx, "a1")
	assert.NoError(t, err)
}

func TestRepository_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret.db")
	repo := setup(t, sqlite.Config{Path: path, Key: "correct horse"})
	require.NoError(t, repo.Save(context.Background(), "pdf-42", snap("a1", 1)))
	require.NoError(t, repo.Close())

	reopened, err := sqlite.Open(sqlite.Config{Path: path, Key: "correct horse"})
	require.NoError(t, err)
	defer reopened.Close()
	_, err = reopened.Get(context.Background(), "a1")
	assert.NoError(t, err)

	st := reopened.State().(sqlite.RepositoryState)
	assert.True(t, st.Encrypted)
	assert.Equal(t, "sqlite-repository", reopened.ComponentType())
}

func TestRepository_ReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	setup(t, sqlite.Config{Path: path})

	ro, err := sqlite.Open(sqlite.Config{Path: path, ReadOnly: true})
	require.NoError(t, err)
	defer ro.Close()

	ctx := context.Background()
	assert.ErrorIs(t, ro.Save(ctx, "pdf-42", snap("a1", 1)), core.ErrReadOnly)
	_, err = ro.GetDocument(ctx, "pdf-42")
	assert.NoError(t, err)
}
