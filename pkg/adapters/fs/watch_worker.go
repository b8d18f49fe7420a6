package fs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/lifecycle"
	"github.com/fsnotify/fsnotify"

	"github.com/academiaflow/annotengine/pkg/core"
)

// DebounceInterval coalesces bursts of events on one record, such as the
// create+rename pair of an atomic write.
var DebounceInterval = 50 * time.Millisecond

// Watch reports changes to document and annotation files, including those
// made by other processes. The channel closes when ctx ends.
func (r *Repository) Watch(ctx context.Context) (<-chan core.Event, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	root := filepath.Join(r.Path, documentsDir)
	if err := os.MkdirAll(root, 0755); err != nil && !r.config.ReadOnly {
		_ = watcher.Close()
		return nil, err
	}
	if err := addTree(watcher, root); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	events := make(chan core.Event, 64)
	w := &watchWorker{
		repo:      r,
		watcher:   watcher,
		events:    events,
		debouncer: newDebouncer(DebounceInterval),
	}
	r.setWatcherActive(true)

	lifecycle.Go(ctx, w.run, lifecycle.WithErrorHandler(func(err error) {
		r.config.Logger.Error("watcher stopped", "error", err)
		if r.config.ErrorHandler != nil {
			r.config.ErrorHandler(err)
		}
	}))
	return events, nil
}

// addTree watches dir and every directory below it.
func addTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := watcher.Add(p); err != nil {
				return fmt.Errorf("failed to watch %s: %w", p, err)
			}
		}
		return nil
	})
}

type watchWorker struct {
	repo      *Repository
	watcher   *fsnotify.Watcher
	events    chan core.Event
	debouncer *debouncer
}

func (w *watchWorker) run(ctx context.Context) error {
	defer close(w.events)
	defer w.repo.setWatcherActive(false)
	defer w.debouncer.stopAndWait()
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.repo.config.Logger.Error("fsnotify error", "error", err)
			if w.repo.config.ErrorHandler != nil {
				w.repo.config.ErrorHandler(err)
			}
			// Dropped events may hide external edits the index missed.
			if errors.Is(err, fsnotify.ErrEventOverflow) && !w.repo.config.ReadOnly {
				if err := w.repo.Reindex(ctx); err != nil {
					w.repo.config.Logger.Error("failed to reindex after overflow", "error", err)
				}
			}
		}
	}
}

func (w *watchWorker) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := addTree(w.watcher, ev.Name); err != nil {
				w.repo.config.Logger.Debug("failed to watch new directory", "path", ev.Name, "error", err)
			}
			return
		}
	}

	rel, err := filepath.Rel(w.repo.Path, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	e, ok := classifyPath(rel)
	if !ok {
		// A document directory moved away as a whole reports only itself.
		docID, isDir := documentDir(rel)
		if !isDir || !(ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)) {
			return
		}
		e = core.Event{DocumentID: docID}
	}
	switch {
	case ev.Has(fsnotify.Create):
		e.Type = core.EventCreate
	case ev.Has(fsnotify.Write):
		e.Type = core.EventModify
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// An atomic write renames a temp file onto the target; the target
		// then reports Create, so a real removal is confirmed by absence.
		if _, err := os.Stat(ev.Name); err == nil {
			e.Type = core.EventModify
		} else {
			e.Type = core.EventDelete
		}
	default:
		return
	}
	e.Timestamp = time.Now().Unix()

	key := e.DocumentID + "/" + e.AnnotationID
	w.debouncer.add(key, e, func(e core.Event) {
		select {
		case w.events <- e:
		case <-ctx.Done():
		}
	})
}

// documentDir reports whether rel is a document directory.
func documentDir(rel string) (string, bool) {
	parts := strings.Split(rel, "/")
	if len(parts) == 2 && parts[0] == documentsDir && parts[1] != "" {
		return parts[1], true
	}
	return "", false
}

// classifyPath maps a store-relative path to the record it holds.
func classifyPath(rel string) (core.Event, bool) {
	parts := strings.Split(rel, "/")
	base := path.Base(rel)
	if strings.HasPrefix(base, TempFilePrefix) {
		return core.Event{}, false
	}
	switch ext := path.Ext(base); ext {
	case ".json", ".yaml", ".yml":
	default:
		return core.Event{}, false
	}
	name := strings.TrimSuffix(base, path.Ext(base))

	switch {
	case len(parts) == 3 && parts[0] == documentsDir && name == documentBase:
		return core.Event{DocumentID: parts[1]}, true
	case len(parts) == 4 && parts[0] == documentsDir && parts[2] == annotDir:
		return core.Event{DocumentID: parts[1], AnnotationID: name}, true
	}
	return core.Event{}, false
}

// debouncer delivers the last event per key once the key has been quiet for
// the interval.
type debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timers   map[string]*time.Timer
	pending  map[string]core.Event
	stopped  bool
	wg       sync.WaitGroup
}

func newDebouncer(interval time.Duration) *debouncer {
	return &debouncer{
		interval: interval,
		timers:   make(map[string]*time.Timer),
		pending:  make(map[string]core.Event),
	}
}

func (d *debouncer) add(key string, e core.Event, deliver func(core.Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	// A create followed by writes is still a create.
	if prev, ok := d.pending[key]; ok && prev.Type == core.EventCreate && e.Type == core.EventModify {
		e.Type = core.EventCreate
	}
	d.pending[key] = e

	if t, ok := d.timers[key]; ok && t.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	d.timers[key] = time.AfterFunc(d.interval, func() {
		defer d.wg.Done()
		d.mu.Lock()
		ev, ok := d.pending[key]
		delete(d.pending, key)
		delete(d.timers, key)
		stopped := d.stopped
		d.mu.Unlock()
		if ok && !stopped {
			deliver(ev)
		}
	})
}

// stopAndWait cancels pending deliveries and waits for running ones.
func (d *debouncer) stopAndWait() {
	d.mu.Lock()
	d.stopped = true
	for key, t := range d.timers {
		if t.Stop() {
			d.wg.Done()
		}
		delete(d.timers, key)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
