package gateway_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/academiaflow/annotengine/pkg/adapters/fs"
	"github.com/academiaflow/annotengine/pkg/adapters/memory"
	"github.com/academiaflow/annotengine/pkg/core"
	"github.com/academiaflow/annotengine/pkg/gateway"
)

// hookedRepo wraps the memory adapter with optional per-call hooks.
type hookedRepo struct {
	*memory.Repository
	onSave   func(ctx context.Context, s core.Snapshot) error
	onDelete func(ctx context.Context, id string) error
	events   chan core.Event
}

func (h *hookedRepo) Save(ctx context.Context, docID string, s core.Snapshot) error {
	if h.onSave != nil {
		if err := h.onSave(ctx, s); err != nil {
			return err
		}
	}
	return h.Repository.Save(ctx, docID, s)
}

func (h *hookedRepo) Delete(ctx context.Context, id string) error {
	if h.onDelete != nil {
		if err := h.onDelete(ctx, id); err != nil {
			return err
		}
	}
	return h.Repository.Delete(ctx, id)
}

func (h *hookedRepo) Watch(ctx context.Context) (<-chan core.Event, error) {
	return h.events, nil
}

func setup(t *testing.T, repo core.Repository, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	gw := gateway.New(repo, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, gw.Start(ctx))
	t.Cleanup(func() {
		_ = gw.Close(context.Background())
		cancel()
	})
	require.NoError(t, gw.PutDocument(context.Background(), core.Document{ID: "pdf-42", PageCount: 3}))
	return gw
}

func snap(id string, page int) core.Snapshot {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return core.Snapshot{
		ID: id, Page: page, Kind: core.KindHighlight, Color: "#FFFF00FF",
		X: 10, Y: 10, Width: 100, Height: 20, CreatedAt: now, LastModified: now,
	}
}

func TestGateway_SaveLoadDelete(t *testing.T) {
	gw := setup(t, memory.NewRepository())
	ctx := context.Background()

	require.NoError(t, gw.Save(ctx, "pdf-42", snap("a1", 1)))
	require.NoError(t, gw.Save(ctx, "pdf-42", snap("a2", 3)))

	list, err := gw.LoadAll(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Len(t, list, 2)
	for _, s := range list {
		assert.Equal(t, "pdf-42", s.DocumentID)
	}

	got, err := gw.Get(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.Page)

	require.NoError(t, gw.Delete(ctx, "a1"))
	require.NoError(t, gw.Delete(ctx, "a1"), "deleting twice is a no-op")

	list, err = gw.LoadAll(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	empty, err := gw.LoadAll(ctx, "unknown")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGateway_SaveMissingDocument(t *testing.T) {
	gw := setup(t, memory.NewRepository())

	err := gw.Save(context.Background(), "nope", snap("a1", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistFailed)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGateway_FIFO(t *testing.T) {
	var mu sync.Mutex
	var order []string
	repo := &hookedRepo{Repository: memory.NewRepository()}
	repo.onSave = func(ctx context.Context, s core.Snapshot) error {
		mu.Lock()
		order = append(order, "save:"+s.Contents)
		mu.Unlock()
		return nil
	}
	repo.onDelete = func(ctx context.Context, id string) error {
		mu.Lock()
		order = append(order, "delete:"+id)
		mu.Unlock()
		return nil
	}
	gw := setup(t, repo)

	var wg sync.WaitGroup
	done := func(error) { wg.Done() }
	wg.Add(4)
	for _, c := range []string{"v1", "v2", "v3"} {
		s := snap("a1", 1)
		s.Contents = c
		gw.SaveAsync("pdf-42", s, done)
	}
	gw.DeleteAsync("a1", done)
	wg.Wait()

	assert.Equal(t, []string{"save:v1", "save:v2", "save:v3", "delete:a1"}, order)
	_, err := gw.Get(context.Background(), "a1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGateway_Timeout(t *testing.T) {
	repo := &hookedRepo{Repository: memory.NewRepository()}
	repo.onSave = func(ctx context.Context, s core.Snapshot) error {
		<-ctx.Done()
		return ctx.Err()
	}
	gw := setup(t, repo, gateway.WithTimeout(20*time.Millisecond))

	err := gw.Save(context.Background(), "pdf-42", snap("a1", 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrPersistFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGateway_AsyncFailureIsClassified(t *testing.T) {
	boom := errors.New("disk full")
	repo := &hookedRepo{Repository: memory.NewRepository()}
	repo.onSave = func(ctx context.Context, s core.Snapshot) error { return boom }
	gw := setup(t, repo)

	result := make(chan error, 1)
	gw.SaveAsync("pdf-42", snap("a1", 1), func(err error) { result <- err })

	select {
	case err := <-result:
		assert.ErrorIs(t, err, core.ErrPersistFailed)
		assert.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("async save never completed")
	}

	st := gw.State().(gateway.State)
	assert.GreaterOrEqual(t, st.Failed, uint64(1))
	assert.Equal(t, "memory-repository", st.RepositoryType)
}

func TestGateway_CloseDrainsQueue(t *testing.T) {
	release := make(chan struct{})
	repo := &hookedRepo{Repository: memory.NewRepository()}
	repo.onSave = func(ctx context.Context, s core.Snapshot) error {
		<-release
		return nil
	}
	gw := gateway.New(repo, gateway.WithTimeout(time.Minute))
	require.NoError(t, gw.Start(context.Background()))
	require.NoError(t, gw.PutDocument(context.Background(), core.Document{ID: "pdf-42"}))

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex
	for _, id := range []string{"a1", "a2"} {
		wg.Add(1)
		gw.SaveAsync("pdf-42", snap(id, 1), func(err error) {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			wg.Done()
		})
	}

	closed := make(chan error, 1)
	go func() { closed <- gw.Close(context.Background()) }()

	// New work is refused once Close has begun.
	require.Eventually(t, func() bool {
		return gw.State().(gateway.State).Closed
	}, time.Second, 5*time.Millisecond)
	err := gw.Save(context.Background(), "pdf-42", snap("a3", 1))
	assert.ErrorIs(t, err, core.ErrClosed)

	close(release)
	require.NoError(t, <-closed)
	wg.Wait()
	assert.Equal(t, []error{nil, nil}, errs)
	assert.Equal(t, 2, repo.Len())
}

func TestGateway_Watch(t *testing.T) {
	repo := &hookedRepo{Repository: memory.NewRepository(), events: make(chan core.Event)}
	gw := setup(t, repo, gateway.WithEventBuffer(8))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := gw.Watch(ctx)
	require.NoError(t, err)

	// Producer must not block on a consumer that is not reading yet.
	for i := 0; i < 5; i++ {
		select {
		case repo.events <- core.Event{Type: core.EventModify, DocumentID: "pdf-42"}:
		case <-time.After(time.Second):
			t.Fatal("producer blocked")
		}
	}
	for i := 0; i < 5; i++ {
		select {
		case e := <-stream:
			assert.Equal(t, core.EventModify, e.Type)
		case <-time.After(time.Second):
			t.Fatal("missing event")
		}
	}
}

func TestGateway_WatchUnsupported(t *testing.T) {
	gw := setup(t, memory.NewRepository())
	_, err := gw.Watch(context.Background())
	assert.Error(t, err)
}

func TestGateway_DeleteDocumentCascades(t *testing.T) {
	gw := setup(t, memory.NewRepository())
	ctx := context.Background()

	require.NoError(t, gw.Save(ctx, "pdf-42", snap("a1", 1)))
	require.NoError(t, gw.Save(ctx, "pdf-42", snap("a2", 2)))
	require.NoError(t, gw.DeleteDocument(ctx, "pdf-42"))

	_, err := gw.GetDocument(ctx, "pdf-42")
	assert.ErrorIs(t, err, core.ErrNotFound)
	list, err := gw.LoadAll(ctx, "pdf-42")
	require.NoError(t, err)
	assert.Empty(t, list)
	_, err = gw.Get(ctx, "a1")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestGateway_AsyncAfterCloseReportsElsewhere(t *testing.T) {
	gw := gateway.New(memory.NewRepository())
	require.NoError(t, gw.Start(context.Background()))
	require.NoError(t, gw.Close(context.Background()))

	// The caller holds a lock its own callback needs.
	var mu sync.Mutex
	result := make(chan error, 1)
	mu.Lock()
	returned := make(chan struct{})
	go func() {
		gw.SaveAsync("pdf-42", snap("a1", 1), func(err error) {
			mu.Lock()
			defer mu.Unlock()
			result <- err
		})
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("SaveAsync ran its callback on the calling goroutine")
	}
	mu.Unlock()

	select {
	case err := <-result:
		assert.ErrorIs(t, err, core.ErrPersistFailed)
		assert.ErrorIs(t, err, core.ErrClosed)
	case <-time.After(time.Second):
		t.Fatal("callback never ran")
	}
}

func TestGateway_QueryCallerStopsWaiting(t *testing.T) {
	release := make(chan struct{})
	repo := &hookedRepo{Repository: memory.NewRepository()}
	repo.onSave = func(ctx context.Context, s core.Snapshot) error {
		<-release
		return nil
	}
	gw := setup(t, repo, gateway.WithTimeout(time.Minute))
	ctx := context.Background()

	gw.SaveAsync("pdf-42", snap("a1", 1), nil)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	list, err := gw.LoadAll(short, "pdf-42")
	assert.ErrorIs(t, err, core.ErrLoadFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, list)

	_, err = gw.GetDocument(short, "pdf-42")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The abandoned reads still run once the worker is free.
	close(release)
	list, err = gw.LoadAll(ctx, "pdf-42")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "pdf-42", list[0].DocumentID)
}

func TestGateway_Reindex(t *testing.T) {
	ctx := context.Background()

	t.Run("unsupported", func(t *testing.T) {
		gw := setup(t, memory.NewRepository())
		assert.Error(t, gw.Reindex(ctx))
	})

	t.Run("file store", func(t *testing.T) {
		repo := fs.NewRepository(fs.Config{Path: t.TempDir(), AutoInit: true, Gitless: true})
		require.NoError(t, repo.Initialize(ctx))
		gw := setup(t, repo)
		require.NoError(t, gw.Save(ctx, "pdf-42", snap("a1", 1)))
		require.NoError(t, gw.Reindex(ctx))

		got, err := gw.Get(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, "pdf-42", got.DocumentID)
	})
}
