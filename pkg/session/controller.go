// Package session implements the interactive side of the annotation engine:
// the in-memory annotation list of one open PDF, selection, filtering and the
// undo/redo state machine.
//
// Every mutation is applied locally first and then mirrored to the gateway
// without waiting. A failed mirror is reported to the error sink; the local
// state is not rolled back and the operation is not retried.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/academiaflow/annotengine/pkg/core"
)

var (
	// ErrUnknownAnnotation is returned when an id is not in the live list.
	ErrUnknownAnnotation = errors.New("annotation not in session")
	// ErrNotStarted is returned by mutations before Start has succeeded.
	ErrNotStarted = errors.New("session not started")
	// ErrReloading is returned by mutations while Reload replays the store.
	ErrReloading = errors.New("session is reloading")
)

// Gateway is the persistence side the controller mirrors to.
// *gateway.Gateway satisfies it. SaveAsync and DeleteAsync are called with
// the controller's lock held, so their done callbacks must never run on the
// calling goroutine.
type Gateway interface {
	Loader
	SaveAsync(docID string, s core.Snapshot, done func(error))
	DeleteAsync(id string, done func(error))
}

// Tool is the kind and color applied by Annotate.
type Tool struct {
	Kind  core.Kind
	Color core.Color
}

type opType int

const (
	opAdded opType = iota
	opRemoved
	opEdited
)

// record is one undoable step. before is the state prior to the step (unset
// for additions), after the state it produced (unset for removals).
type record struct {
	op     opType
	before core.Snapshot
	after  core.Snapshot
}

// Controller owns the session state of one document.
type Controller struct {
	gw       Gateway
	surface  core.Surface
	doc      *core.Document
	reporter core.Reporter
	logger   *slog.Logger
	now      func() time.Time

	mu        sync.Mutex
	info      core.DocumentInfo
	started   bool
	reloading bool
	closed    bool
	list      []*core.Annotation
	undo      []record
	redo      []record
	filter    Filter
	selection string
	tool      Tool

	listeners    map[int]func(Event)
	nextListener int

	inflight sync.WaitGroup
}

// New creates a controller for docID. Call Start to restore persisted
// annotations before editing.
func New(gw Gateway, surface core.Surface, docID string, opts ...Option) *Controller {
	c := &Controller{
		gw:        gw,
		surface:   surface,
		doc:       &core.Document{ID: docID},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
		tool:      Tool{Kind: core.KindHighlight, Color: core.Yellow},
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.doc.ID == "" {
		c.doc.ID = docID
	}
	if c.reporter == nil {
		c.reporter = core.LogReporter{Logger: c.logger}
	}
	return c
}

// Start opens the document on the surface and replays its persisted
// annotations. Failures are reported to the sink and returned.
func (c *Controller) Start(ctx context.Context) error {
	info, err := c.surface.Open(ctx, c.doc.ID)
	if err != nil {
		err = classifyOpen(c.doc.ID, err)
		c.reporter.Report(err)
		return err
	}

	res, err := Restore(ctx, c.gw, c.surface, c.doc, info, c.logger)
	if err != nil {
		c.reporter.Report(err)
		return err
	}

	c.mu.Lock()
	c.info = info
	c.list = res.Annotations
	c.undo, c.redo = nil, nil
	c.selection = ""
	c.started = true
	c.mu.Unlock()

	c.notify([]Event{{Type: EventRestored}})
	return nil
}

// Reload drops local state and replays the store again, picking up changes
// made by other sessions. Undo and redo history is discarded. Mutations are
// rejected with ErrReloading until it returns; on failure the previous list
// is drawn again.
func (c *Controller) Reload(ctx context.Context) error {
	c.mu.Lock()
	if err := c.writable(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.reloading = true
	for _, a := range c.list {
		erase(c.surface, a, c.logger)
	}
	info := c.info
	c.mu.Unlock()

	res, err := Restore(ctx, c.gw, c.surface, c.doc, info, c.logger)

	c.mu.Lock()
	c.reloading = false
	if err != nil {
		for _, a := range c.list {
			draw(c.surface, a, c.logger)
		}
		c.mu.Unlock()
		c.reporter.Report(err)
		return err
	}
	c.list = res.Annotations
	c.undo, c.redo = nil, nil
	c.selection = ""
	c.mu.Unlock()

	c.notify([]Event{{Type: EventRestored}})
	return nil
}

func classifyOpen(docID string, err error) error {
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	kind := core.Classify(err)
	if kind == 0 {
		kind = core.KindInvalidDocument
	}
	return &core.Error{Kind: kind, Op: "open", ID: docID, Err: err}
}

// Close stops accepting mutations and waits for mirror operations already
// dispatched to finish, or for ctx to end.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetTool changes the kind and color used by Annotate.
func (c *Controller) SetTool(kind core.Kind, color core.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tool = Tool{Kind: kind, Color: color}
}

// Tool returns the current tool.
func (c *Controller) Tool() Tool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tool
}

// Annotate finalizes a selected region with the current tool.
func (c *Controller) Annotate(page int, b core.Bounds, contents string) (core.Snapshot, error) {
	tool := c.Tool()
	return c.Add(core.Draft{
		Page:     page,
		Kind:     tool.Kind,
		Color:    tool.Color.Hex(),
		Contents: contents,
		Bounds:   b,
	})
}

// Add creates an annotation, draws it and mirrors it to the store.
// An empty Color uses the current tool's color.
func (c *Controller) Add(d core.Draft) (core.Snapshot, error) {
	c.mu.Lock()
	if err := c.writable(); err != nil {
		c.mu.Unlock()
		return core.Snapshot{}, err
	}

	if d.Color == "" {
		d.Color = c.tool.Color.Hex()
	} else {
		col, err := core.ParseColor(d.Color)
		if err != nil {
			c.mu.Unlock()
			return core.Snapshot{}, fmt.Errorf("%w: %v", core.ErrInvalidAnnotation, err)
		}
		d.Color = col.Hex()
	}
	if d.Kind == "" {
		d.Kind = c.tool.Kind
	}

	a := core.NewAnnotation(d, c.doc, c.now())
	if err := a.Validate(c.info.PageCount); err != nil {
		c.mu.Unlock()
		return core.Snapshot{}, err
	}

	c.list = append(c.list, a)
	draw(c.surface, a, c.logger)
	s := a.Snapshot()
	c.undo = append(c.undo, record{op: opAdded, after: s})
	c.redo = nil
	c.mirrorSave(s)
	c.mu.Unlock()

	c.notify([]Event{{Type: EventAdded, Annotation: s}})
	return s, nil
}

// Remove deletes an annotation at the user's request. The removal can be undone.
func (c *Controller) Remove(id string) error {
	c.mu.Lock()
	if err := c.writable(); err != nil {
		c.mu.Unlock()
		return err
	}

	a, ok := c.detach(id)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAnnotation, id)
	}
	s := a.Snapshot()
	c.undo = append(c.undo, record{op: opRemoved, before: s})
	c.redo = nil
	c.mirrorDelete(id)
	events := []Event{{Type: EventRemoved, Annotation: s}}
	if c.selection == id {
		c.selection = ""
		events = append(events, Event{Type: EventSelection})
	}
	c.mu.Unlock()

	c.notify(events)
	return nil
}

// Change mutates an annotation being edited.
type Change func(a *core.Annotation)

// SetColor changes the color.
func SetColor(col core.Color) Change {
	return func(a *core.Annotation) { a.Color = col.Hex() }
}

// SetContents changes the free text.
func SetContents(s string) Change {
	return func(a *core.Annotation) { a.Contents = s }
}

// SetCategory changes the category.
func SetCategory(s string) Change {
	return func(a *core.Annotation) { a.Category = s }
}

// SetTags replaces the tag set.
func SetTags(tags ...string) Change {
	return func(a *core.Annotation) { a.Tags = core.NewTags(tags...) }
}

// SetHidden changes visibility.
func SetHidden(hidden bool) Change {
	return func(a *core.Annotation) { a.Hidden = hidden }
}

// Edit applies changes to an annotation, bumps LastModified and mirrors the
// whole updated snapshot to the store.
func (c *Controller) Edit(id string, changes ...Change) (core.Snapshot, error) {
	c.mu.Lock()
	if err := c.writable(); err != nil {
		c.mu.Unlock()
		return core.Snapshot{}, err
	}

	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return core.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownAnnotation, id)
	}
	a := c.list[i]
	before := a.Snapshot()

	erase(c.surface, a, c.logger)
	for _, ch := range changes {
		ch(a)
	}
	a.LastModified = c.now().UTC()
	draw(c.surface, a, c.logger)

	after := a.Snapshot()
	c.undo = append(c.undo, record{op: opEdited, before: before, after: after})
	c.redo = nil
	c.mirrorSave(after)
	c.mu.Unlock()

	c.notify([]Event{{Type: EventUpdated, Annotation: after}})
	return after, nil
}

// EditSelected edits the selected annotation.
func (c *Controller) EditSelected(changes ...Change) (core.Snapshot, error) {
	c.mu.Lock()
	id := c.selection
	c.mu.Unlock()
	if id == "" {
		return core.Snapshot{}, errors.New("no annotation selected")
	}
	return c.Edit(id, changes...)
}

// Undo reverts the most recent step. It returns false when there is nothing to undo.
func (c *Controller) Undo() bool {
	c.mu.Lock()
	if c.writable() != nil || len(c.undo) == 0 {
		c.mu.Unlock()
		return false
	}
	rec := c.undo[len(c.undo)-1]
	c.undo = c.undo[:len(c.undo)-1]

	var events []Event
	switch rec.op {
	case opAdded:
		events = c.unapply(rec.after)
	case opRemoved:
		events = c.reapply(rec.before)
	case opEdited:
		events = c.replace(rec.before)
	}
	c.redo = append(c.redo, rec)
	c.mu.Unlock()

	c.notify(events)
	return true
}

// Redo re-applies the most recently undone step with the annotation's
// original identity. It returns false when there is nothing to redo.
func (c *Controller) Redo() bool {
	c.mu.Lock()
	if c.writable() != nil || len(c.redo) == 0 {
		c.mu.Unlock()
		return false
	}
	rec := c.redo[len(c.redo)-1]
	c.redo = c.redo[:len(c.redo)-1]

	var events []Event
	switch rec.op {
	case opAdded:
		events = c.reapply(rec.after)
	case opRemoved:
		events = c.unapply(rec.before)
	case opEdited:
		events = c.replace(rec.after)
	}
	c.undo = append(c.undo, rec)
	c.mu.Unlock()

	c.notify(events)
	return true
}

// reapply puts s back in the list, on the surface and in the store.
func (c *Controller) reapply(s core.Snapshot) []Event {
	a := core.FromSnapshot(s, c.doc)
	c.list = append(c.list, a)
	draw(c.surface, a, c.logger)
	c.mirrorSave(s)
	return []Event{{Type: EventAdded, Annotation: s}}
}

// unapply takes s out of the list, off the surface and out of the store.
func (c *Controller) unapply(s core.Snapshot) []Event {
	if _, ok := c.detach(s.ID); !ok {
		return nil
	}
	c.mirrorDelete(s.ID)
	events := []Event{{Type: EventRemoved, Annotation: s}}
	if c.selection == s.ID {
		c.selection = ""
		events = append(events, Event{Type: EventSelection})
	}
	return events
}

// replace overwrites the live annotation with the fields of s.
func (c *Controller) replace(s core.Snapshot) []Event {
	i := c.indexOf(s.ID)
	if i < 0 {
		return nil
	}
	erase(c.surface, c.list[i], c.logger)
	a := core.FromSnapshot(s, c.doc)
	c.list[i] = a
	draw(c.surface, a, c.logger)
	c.mirrorSave(s)
	return []Event{{Type: EventUpdated, Annotation: s}}
}

func (c *Controller) detach(id string) (*core.Annotation, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return nil, false
	}
	a := c.list[i]
	c.list = append(c.list[:i:i], c.list[i+1:]...)
	erase(c.surface, a, c.logger)
	return a, true
}

func (c *Controller) indexOf(id string) int {
	for i, a := range c.list {
		if a.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) writable() error {
	switch {
	case c.closed:
		return fmt.Errorf("session: %w", core.ErrClosed)
	case !c.started:
		return ErrNotStarted
	case c.reloading:
		return ErrReloading
	}
	return nil
}

// mirrorSave and mirrorDelete are called with c.mu held so mirror operations
// reach the gateway queue in the order the mutations happened. The completion
// callback only reports and must never take c.mu.
func (c *Controller) mirrorSave(s core.Snapshot) {
	c.inflight.Add(1)
	c.gw.SaveAsync(c.doc.ID, s, func(err error) {
		defer c.inflight.Done()
		if err != nil {
			c.reporter.Report(core.PersistFailed("save", s.ID, err))
		}
	})
}

func (c *Controller) mirrorDelete(id string) {
	c.inflight.Add(1)
	c.gw.DeleteAsync(id, func(err error) {
		defer c.inflight.Done()
		if err != nil {
			c.reporter.Report(core.PersistFailed("delete", id, err))
		}
	})
}

// SetFilter changes the filter behind View.
func (c *Controller) SetFilter(f Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
	c.notify([]Event{{Type: EventFilter}})
}

// Filter returns the current filter.
func (c *Controller) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Snapshots returns the full live list.
func (c *Controller) Snapshots() []core.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotsLocked()
}

func (c *Controller) snapshotsLocked() []core.Snapshot {
	out := make([]core.Snapshot, len(c.list))
	for i, a := range c.list {
		out[i] = a.Snapshot()
	}
	return out
}

// View returns the live list narrowed by the current filter.
func (c *Controller) View() []core.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ApplyFilter(c.snapshotsLocked(), c.filter)
}

// Select hit-tests the surface at pt on a 1-based page and selects the
// annotation found there. A miss leaves the selection unchanged.
func (c *Controller) Select(page int, pt core.Point) (core.Snapshot, bool) {
	p, ok := c.surface.HitTest(page-1, pt)
	if !ok {
		return core.Snapshot{}, false
	}

	c.mu.Lock()
	a := c.resolve(page, p)
	if a == nil {
		c.mu.Unlock()
		return core.Snapshot{}, false
	}
	c.selection = a.ID
	s := a.Snapshot()
	c.mu.Unlock()

	c.notify([]Event{{Type: EventSelection, Annotation: s}})
	return s, true
}

// geometryEpsilon tolerates float drift when a primitive carries no id.
const geometryEpsilon = 1e-6

// resolve maps a hit primitive back to its annotation: by the id it carries
// when present, otherwise by matching geometry on the same page.
func (c *Controller) resolve(page int, p core.Primitive) *core.Annotation {
	if p.AnnotationID != "" {
		if i := c.indexOf(p.AnnotationID); i >= 0 {
			return c.list[i]
		}
		return nil
	}
	for i := len(c.list) - 1; i >= 0; i-- {
		a := c.list[i]
		if a.Page == page && a.Bounds.ApproxEqual(p.Rect, geometryEpsilon) {
			return a
		}
	}
	return nil
}

// SelectID selects an annotation by id.
func (c *Controller) SelectID(id string) error {
	c.mu.Lock()
	i := c.indexOf(id)
	if i < 0 {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAnnotation, id)
	}
	c.selection = id
	s := c.list[i].Snapshot()
	c.mu.Unlock()

	c.notify([]Event{{Type: EventSelection, Annotation: s}})
	return nil
}

// ClearSelection deselects.
func (c *Controller) ClearSelection() {
	c.mu.Lock()
	changed := c.selection != ""
	c.selection = ""
	c.mu.Unlock()
	if changed {
		c.notify([]Event{{Type: EventSelection}})
	}
}

// Selection returns the selected annotation, if any.
func (c *Controller) Selection() (core.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.indexOf(c.selection); i >= 0 {
		return c.list[i].Snapshot(), true
	}
	return core.Snapshot{}, false
}

// CanUndo reports whether Undo would do anything.
func (c *Controller) CanUndo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.undo) > 0
}

// CanRedo reports whether Redo would do anything.
func (c *Controller) CanRedo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.redo) > 0
}
