// Package gateway serializes every access to an annotation store through a
// single worker goroutine.
//
// Callers never touch the repository directly. Each call is appended to one
// FIFO queue at call time, so operations are applied in the order they were
// issued, whichever goroutine issued them. Only snapshots cross the queue.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aretw0/lifecycle"

	"github.com/academiaflow/annotengine/pkg/core"
)

// DefaultTimeout bounds every operation, measured from the moment it is queued.
const DefaultTimeout = 5 * time.Second

// Gateway owns a core.Repository and applies operations one at a time.
type Gateway struct {
	repo            core.Repository
	logger          *slog.Logger
	timeout         time.Duration
	eventBufferSize int

	mu      sync.Mutex
	queue   []*request
	closed  bool
	started bool
	wake    chan struct{}
	done    chan struct{}

	processed atomic.Uint64
	failed    atomic.Uint64
}

type request struct {
	op       string
	id       string
	ctx      context.Context
	deadline time.Time
	run      func(ctx context.Context) error
	classify func(err error) error
	done     func(err error)
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithTimeout bounds each operation. Zero or negative keeps DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithEventBuffer sets the size of the Watch buffer. Zero means default (100).
func WithEventBuffer(size int) Option {
	return func(g *Gateway) {
		if size > 0 {
			g.eventBufferSize = size
		}
	}
}

// New creates a Gateway over repo. Call Start before use.
func New(repo core.Repository, opts ...Option) *Gateway {
	g := &Gateway{
		repo:            repo,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
		timeout:         DefaultTimeout,
		eventBufferSize: 100,
		wake:            make(chan struct{}, 1),
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the worker. The worker exits when Close has drained the
// queue or when ctx is cancelled; work still queued at cancellation fails
// with the context error.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return fmt.Errorf("gateway: %w", core.ErrClosed)
	}
	if g.started {
		return errors.New("gateway already started")
	}
	g.started = true

	lifecycle.Go(ctx, g.run, lifecycle.WithErrorHandler(func(err error) {
		g.logger.Error("gateway worker stopped", "error", err)
	}))
	return nil
}

// Close stops accepting work, lets queued operations finish and waits for
// the worker to exit (or for ctx to expire). A repository implementing
// io.Closer is closed once the worker is gone.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	started := g.started
	pending := g.queue
	if !started {
		g.queue = nil
	}
	g.mu.Unlock()

	if !started {
		for _, req := range pending {
			g.finish(req, core.ErrClosed)
		}
		close(g.done)
		return g.closeRepo()
	}

	g.signal()
	select {
	case <-g.done:
		return g.closeRepo()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) closeRepo() error {
	if c, ok := g.repo.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("gateway: close repository: %w", err)
		}
	}
	return nil
}

func (g *Gateway) signal() {
	select {
	case g.wake <- struct{}{}:
	default:
	}
}

// enqueue appends a request. It never blocks. A queued request's done runs
// on the worker goroutine and must not call back into the gateway
// synchronously.
func (g *Gateway) enqueue(ctx context.Context, req *request) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req.ctx = context.WithoutCancel(ctx)
	req.deadline = time.Now().Add(g.timeout)

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return fmt.Errorf("gateway: %w", core.ErrClosed)
	}
	g.queue = append(g.queue, req)
	g.mu.Unlock()

	g.signal()
	return nil
}

func (g *Gateway) next(ctx context.Context) (*request, bool) {
	for {
		g.mu.Lock()
		if len(g.queue) > 0 {
			req := g.queue[0]
			g.queue[0] = nil
			g.queue = g.queue[1:]
			g.mu.Unlock()
			return req, true
		}
		closed := g.closed
		g.mu.Unlock()

		if closed {
			return nil, false
		}

		select {
		case <-g.wake:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (g *Gateway) run(ctx context.Context) error {
	defer close(g.done)
	defer g.abandon(ctx)

	for {
		req, ok := g.next(ctx)
		if !ok {
			return nil
		}
		g.exec(req)
	}
}

// abandon fails whatever is still queued when the worker exits early.
func (g *Gateway) abandon(ctx context.Context) {
	g.mu.Lock()
	g.closed = true
	rest := g.queue
	g.queue = nil
	g.mu.Unlock()

	cause := ctx.Err()
	if cause == nil {
		cause = core.ErrClosed
	}
	for _, req := range rest {
		g.finish(req, cause)
	}
}

func (g *Gateway) exec(req *request) {
	opCtx, cancel := context.WithDeadline(req.ctx, req.deadline)
	defer cancel()

	err := opCtx.Err()
	if err == nil {
		err = g.safeRun(opCtx, req)
	}
	if err == nil && opCtx.Err() != nil {
		err = opCtx.Err()
	}
	g.finish(req, err)
}

func (g *Gateway) safeRun(ctx context.Context, req *request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in %s: %v", req.op, r)
		}
	}()
	return req.run(ctx)
}

func (g *Gateway) finish(req *request, err error) {
	if err != nil && req.classify != nil {
		err = req.classify(err)
	}
	g.processed.Add(1)
	if err != nil {
		g.failed.Add(1)
		g.logger.Debug("gateway operation failed", "op", req.op, "id", req.id, "error", err)
	} else {
		g.logger.Debug("gateway operation applied", "op", req.op, "id", req.id)
	}
	if req.done != nil {
		req.done(err)
	}
}

// call enqueues and waits for the result. If ctx ends first the operation
// stays queued and still runs.
func (g *Gateway) call(ctx context.Context, req *request) error {
	result := make(chan error, 1)
	req.done = func(err error) { result <- err }
	if err := g.enqueue(ctx, req); err != nil {
		if req.classify != nil {
			return req.classify(err)
		}
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		err := ctx.Err()
		if req.classify != nil {
			err = req.classify(err)
		}
		return err
	}
}

type result[T any] struct {
	v   T
	err error
}

// query is call for operations returning a value. The value is produced and
// handed over on the worker, so a caller that stops waiting never races it.
func query[T any](g *Gateway, ctx context.Context, op, id string, classify func(error) error, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	out := make(chan result[T], 1)
	var v T
	req := &request{
		op: op,
		id: id,
		run: func(ctx context.Context) error {
			var err error
			v, err = fn(ctx)
			return err
		},
		classify: classify,
		done: func(err error) {
			if err != nil {
				out <- result[T]{err: err}
				return
			}
			out <- result[T]{v: v}
		},
	}
	if err := g.enqueue(ctx, req); err != nil {
		if classify != nil {
			err = classify(err)
		}
		return zero, err
	}
	select {
	case r := <-out:
		return r.v, r.err
	case <-ctx.Done():
		err := ctx.Err()
		if classify != nil {
			err = classify(err)
		}
		return zero, err
	}
}

func persist(op, id string) func(error) error {
	return func(err error) error { return core.PersistFailed(op, id, err) }
}

func load(docID string) func(error) error {
	return func(err error) error { return core.LoadFailed(docID, err) }
}

// Save upserts s under docID. A missing document record yields an error
// matching both core.ErrPersistFailed and core.ErrNotFound.
func (g *Gateway) Save(ctx context.Context, docID string, s core.Snapshot) error {
	return g.call(ctx, g.saveRequest(docID, s))
}

// SaveAsync queues a save and returns immediately. done (optional) receives
// the classified result, never on the calling goroutine.
func (g *Gateway) SaveAsync(docID string, s core.Snapshot, done func(error)) {
	req := g.saveRequest(docID, s)
	req.done = done
	g.dispatch(req)
}

func (g *Gateway) saveRequest(docID string, s core.Snapshot) *request {
	s = s.WithDocument(docID)
	return &request{
		op:       "save",
		id:       s.ID,
		run:      func(ctx context.Context) error { return g.repo.Save(ctx, docID, s) },
		classify: persist("save", s.ID),
	}
}

// Delete removes an annotation; unknown ids are a no-op.
func (g *Gateway) Delete(ctx context.Context, id string) error {
	return g.call(ctx, g.deleteRequest(id))
}

// DeleteAsync queues a delete and returns immediately. done is called as for
// SaveAsync.
func (g *Gateway) DeleteAsync(id string, done func(error)) {
	req := g.deleteRequest(id)
	req.done = done
	g.dispatch(req)
}

func (g *Gateway) deleteRequest(id string) *request {
	return &request{
		op:       "delete",
		id:       id,
		run:      func(ctx context.Context) error { return g.repo.Delete(ctx, id) },
		classify: persist("delete", id),
	}
}

// dispatch queues req without waiting. When the gateway no longer accepts
// work, done still runs on its own goroutine, never on the caller's.
func (g *Gateway) dispatch(req *request) {
	if err := g.enqueue(context.Background(), req); err != nil {
		if req.done != nil {
			err = req.classify(err)
			go req.done(err)
		}
	}
}

// LoadAll returns every snapshot owned by docID, in no particular order.
func (g *Gateway) LoadAll(ctx context.Context, docID string) ([]core.Snapshot, error) {
	return query(g, ctx, "load", docID, load(docID), func(ctx context.Context) ([]core.Snapshot, error) {
		list, err := g.repo.List(ctx, docID)
		if err != nil {
			return nil, err
		}
		out := make([]core.Snapshot, len(list))
		for i, s := range list {
			out[i] = s.WithDocument(docID)
		}
		return out, nil
	})
}

// Get returns a single annotation.
func (g *Gateway) Get(ctx context.Context, id string) (core.Snapshot, error) {
	return query(g, ctx, "get", id, nil, func(ctx context.Context) (core.Snapshot, error) {
		s, err := g.repo.Get(ctx, id)
		if err != nil {
			return core.Snapshot{}, err
		}
		return s.WithDocument(s.DocumentID), nil
	})
}

// PutDocument creates or replaces a document record.
func (g *Gateway) PutDocument(ctx context.Context, doc core.Document) error {
	return g.call(ctx, &request{
		op:       "put-document",
		id:       doc.ID,
		run:      func(ctx context.Context) error { return g.repo.PutDocument(ctx, doc) },
		classify: persist("put-document", doc.ID),
	})
}

// GetDocument returns the record for id.
func (g *Gateway) GetDocument(ctx context.Context, id string) (core.Document, error) {
	return query(g, ctx, "get-document", id, nil, func(ctx context.Context) (core.Document, error) {
		return g.repo.GetDocument(ctx, id)
	})
}

// ListDocuments returns all document records.
func (g *Gateway) ListDocuments(ctx context.Context) ([]core.Document, error) {
	return query(g, ctx, "list-documents", "", nil, g.repo.ListDocuments)
}

// DeleteDocument removes a document and, in the same unit, its annotations.
func (g *Gateway) DeleteDocument(ctx context.Context, id string) error {
	return g.call(ctx, &request{
		op:       "delete-document",
		id:       id,
		run:      func(ctx context.Context) error { return g.repo.DeleteDocument(ctx, id) },
		classify: persist("delete-document", id),
	})
}

// History returns the change history of an annotation when the repository
// is versioned.
func (g *Gateway) History(ctx context.Context, id string) ([]core.Revision, error) {
	v, ok := g.repo.(core.Versioned)
	if !ok {
		return nil, errors.New("repository does not support history")
	}
	return query(g, ctx, "history", id, nil, func(ctx context.Context) ([]core.Revision, error) {
		return v.History(ctx, id)
	})
}

// Reindex rebuilds the repository's derived index when it keeps one.
func (g *Gateway) Reindex(ctx context.Context) error {
	rx, ok := g.repo.(core.Reindexable)
	if !ok {
		return errors.New("repository does not support reindexing")
	}
	return g.call(ctx, &request{
		op:  "reindex",
		run: rx.Reindex,
	})
}
