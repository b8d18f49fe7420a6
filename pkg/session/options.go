package session

import (
	"log/slog"
	"time"

	"github.com/academiaflow/annotengine/pkg/core"
)

// Option configures a Controller.
type Option func(*Controller)

// WithReporter sets the error sink. Defaults to a core.LogReporter.
func WithReporter(r core.Reporter) Option {
	return func(c *Controller) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithDocument attaches the full document record instead of an id-only reference.
func WithDocument(doc core.Document) Option {
	return func(c *Controller) {
		d := doc
		c.doc = &d
	}
}

// WithTool sets the initial annotation tool.
func WithTool(kind core.Kind, color core.Color) Option {
	return func(c *Controller) {
		c.tool = Tool{Kind: kind, Color: color}
	}
}
