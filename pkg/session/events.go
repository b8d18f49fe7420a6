package session

import "github.com/academiaflow/annotengine/pkg/core"

// EventType names a change in session state.
type EventType string

const (
	EventAdded     EventType = "added"
	EventRemoved   EventType = "removed"
	EventUpdated   EventType = "updated"
	EventRestored  EventType = "restored"
	EventSelection EventType = "selection"
	EventFilter    EventType = "filter"
)

// Event is delivered to subscribers after the state change is complete.
// Annotation is zero for restored/filter events and for a cleared selection.
type Event struct {
	Type       EventType
	Annotation core.Snapshot
}

// Subscribe registers fn for change notifications and returns a function
// that unregisters it. fn runs on the goroutine that made the change,
// after the controller's lock is released.
func (c *Controller) Subscribe(fn func(Event)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) notify(events []Event) {
	if len(events) == 0 {
		return
	}
	c.mu.Lock()
	fns := make([]func(Event), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, e := range events {
		for _, fn := range fns {
			fn(e)
		}
	}
}
