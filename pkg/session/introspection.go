package session

import (
	"github.com/aretw0/introspection"
)

// State exposes session state for observability.
type State struct {
	Document    string `json:"document"`
	Pages       int    `json:"pages"`
	Started     bool   `json:"started"`
	Closed      bool   `json:"closed"`
	Annotations int    `json:"annotations"`
	UndoDepth   int    `json:"undo_depth"`
	RedoDepth   int    `json:"redo_depth"`
	Filter      string `json:"filter"`
	Selection   string `json:"selection,omitempty"`
	Tool        string `json:"tool"`
}

// State implements introspection.Introspectable.
func (c *Controller) State() any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Document:    c.doc.ID,
		Pages:       c.info.PageCount,
		Started:     c.started,
		Closed:      c.closed,
		Annotations: len(c.list),
		UndoDepth:   len(c.undo),
		RedoDepth:   len(c.redo),
		Filter:      c.filter.String(),
		Selection:   c.selection,
		Tool:        string(c.tool.Kind) + " " + c.tool.Color.Hex(),
	}
}

// ComponentType implements introspection.Component.
func (c *Controller) ComponentType() string {
	return "session"
}

var _ introspection.Introspectable = (*Controller)(nil)
var _ introspection.Component = (*Controller)(nil)
