package sqlite

import (
	"github.com/aretw0/introspection"
)

// RepositoryState exposes internal state for observability.
type RepositoryState struct {
	Path            string `json:"path"`
	Encrypted       bool   `json:"encrypted"`
	ReadOnly        bool   `json:"read_only"`
	OpenConnections int    `json:"open_connections"`
	InUse           int    `json:"in_use"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	stats := r.db.Stats()
	return RepositoryState{
		Path:            r.config.Path,
		Encrypted:       r.config.Key != "",
		ReadOnly:        r.config.ReadOnly,
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
	}
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "sqlite-repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
