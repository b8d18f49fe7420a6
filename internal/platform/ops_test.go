package platform_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiaflow/annotengine/internal/platform"
	"github.com/academiaflow/annotengine/pkg/adapters/fs"
	"github.com/academiaflow/annotengine/pkg/adapters/memory"
	"github.com/academiaflow/annotengine/pkg/adapters/sqlite"
	"github.com/academiaflow/annotengine/pkg/core"
	"github.com/academiaflow/annotengine/pkg/git"
)

func TestInit_FS(t *testing.T) {
	t.Run("AutoInit creates a versioned store", func(t *testing.T) {
		if !git.IsInstalled() {
			t.Skip("git not installed")
		}
		path := filepath.Join(t.TempDir(), "store")

		repo, err := platform.Init(path, platform.WithAutoInit(true), platform.WithForceTemp(true))
		require.NoError(t, err)

		fsRepo, ok := repo.(*fs.Repository)
		require.True(t, ok, "expected fs repository, got %T", repo)
		assert.Equal(t, path, fsRepo.Path)
		assert.DirExists(t, filepath.Join(path, ".git"))
		assert.DirExists(t, filepath.Join(path, "documents"))
	})

	t.Run("MustExist fails on a missing directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing")

		_, err := platform.Init(path, platform.WithMustExist(true), platform.WithForceTemp(true))
		assert.Error(t, err)
	})

	t.Run("Versioning off skips git", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "plain")

		repo, err := platform.Init(path,
			platform.WithAutoInit(true),
			platform.WithVersioning(false),
			platform.WithForceTemp(true),
			platform.WithFormat("yaml"),
		)
		require.NoError(t, err)
		assert.NoDirExists(t, filepath.Join(path, ".git"))

		state := repo.(*fs.Repository).State().(fs.RepositoryState)
		assert.True(t, state.Gitless)
		assert.Equal(t, ".yaml", state.Format)
	})

	t.Run("Existing store without git stays gitless", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "legacy")
		require.NoError(t, os.MkdirAll(filepath.Join(path, ".annot"), 0755))

		repo, err := platform.Init(path, platform.WithAutoInit(true), platform.WithForceTemp(true))
		require.NoError(t, err)
		assert.True(t, repo.(*fs.Repository).State().(fs.RepositoryState).Gitless)
	})

	t.Run("ReadOnly rejects writes", func(t *testing.T) {
		path := t.TempDir()

		repo, err := platform.Init(path, platform.WithReadOnly(true), platform.WithVersioning(false))
		require.NoError(t, err)
		assert.NoDirExists(t, filepath.Join(path, "documents"))

		err = repo.PutDocument(context.Background(), core.Document{ID: "d"})
		assert.ErrorIs(t, err, core.ErrReadOnly)
	})
}

func TestInit_Adapters(t *testing.T) {
	t.Run("memory", func(t *testing.T) {
		repo, err := platform.Init("", platform.WithAdapter(platform.AdapterMemory))
		require.NoError(t, err)
		assert.IsType(t, &memory.Repository{}, repo)
	})

	t.Run("sqlite", func(t *testing.T) {
		dir := t.TempDir()
		repo, err := platform.Init(dir, platform.WithAdapter(platform.AdapterSQLite), platform.WithForceTemp(true))
		require.NoError(t, err)
		db, ok := repo.(*sqlite.Repository)
		require.True(t, ok)
		t.Cleanup(func() { _ = db.Close() })
		assert.FileExists(t, filepath.Join(dir, "annotations.db"))
	})

	t.Run("injected", func(t *testing.T) {
		mem := memory.NewRepository()
		repo, err := platform.Init("ignored", platform.WithRepository(mem), platform.WithAdapter("bogus"))
		require.NoError(t, err)
		assert.Same(t, mem, repo)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := platform.Init("", platform.WithAdapter("bogus"))
		assert.ErrorContains(t, err, "unknown adapter")
	})
}

func TestNew_StartsGateway(t *testing.T) {
	ctx := context.Background()
	gw, err := platform.New("", platform.WithAdapter(platform.AdapterMemory))
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close(ctx) })

	require.NoError(t, gw.PutDocument(ctx, core.Document{ID: "pdf-1", Title: "Paper"}))
	docs, err := gw.ListDocuments(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "pdf-1", docs[0].ID)
}
