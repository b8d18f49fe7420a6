package gateway

import (
	"github.com/aretw0/introspection"
)

// State exposes internal state for observability.
type State struct {
	QueueDepth     int    `json:"queue_depth"`
	Processed      uint64 `json:"processed"`
	Failed         uint64 `json:"failed"`
	Closed         bool   `json:"closed"`
	Timeout        string `json:"timeout"`
	RepositoryType string `json:"repository_type"`
}

// State implements introspection.Introspectable.
func (g *Gateway) State() any {
	g.mu.Lock()
	depth := len(g.queue)
	closed := g.closed
	g.mu.Unlock()

	repoType := "repository"
	if comp, ok := g.repo.(introspection.Component); ok {
		repoType = comp.ComponentType()
	}

	return State{
		QueueDepth:     depth,
		Processed:      g.processed.Load(),
		Failed:         g.failed.Load(),
		Closed:         closed,
		Timeout:        g.timeout.String(),
		RepositoryType: repoType,
	}
}

// ComponentType implements introspection.Component.
func (g *Gateway) ComponentType() string {
	return "gateway"
}

var _ introspection.Introspectable = (*Gateway)(nil)
var _ introspection.Component = (*Gateway)(nil)
