package annotengine

import (
	"context"
	"log/slog"
	"time"

	"github.com/academiaflow/annotengine/internal/platform"
	"github.com/academiaflow/annotengine/pkg/core"
	"github.com/academiaflow/annotengine/pkg/gateway"
	"github.com/academiaflow/annotengine/pkg/git"
	"github.com/academiaflow/annotengine/pkg/session"
)

// --- Types ---

// Gateway is the single-writer persistence front.
type Gateway = gateway.Gateway

// Session is the per-document annotation controller.
type Session = session.Controller

// SessionOption configures a Session.
type SessionOption = session.Option

// --- Configuration ---

// Option configures the engine.
type Option = platform.Option

// Adapter names.
const (
	AdapterFS     = platform.AdapterFS
	AdapterSQLite = platform.AdapterSQLite
	AdapterMemory = platform.AdapterMemory
)

// WithAutoInit creates the store (directory, git repository, schema) when missing.
func WithAutoInit(auto bool) Option {
	return platform.WithAutoInit(auto)
}

// WithVersioning enables or disables git history for the fs adapter.
func WithVersioning(enabled bool) Option {
	return platform.WithVersioning(enabled)
}

// WithForceTemp moves the store into the system temp directory.
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithMustExist fails when the store is missing.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository injects a custom store.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithAdapter selects the store by name.
func WithAdapter(name string) Option {
	return platform.WithAdapter(name)
}

// WithSystemDir sets the fs adapter's hidden directory (default ".annot").
func WithSystemDir(name string) Option {
	return platform.WithSystemDir(name)
}

// WithFormat sets the fs record format, "json" or "yaml".
func WithFormat(format string) Option {
	return platform.WithFormat(format)
}

// WithEncryptionKey sets the sqlite adapter's SQLCipher key.
func WithEncryptionKey(key string) Option {
	return platform.WithEncryptionKey(key)
}

// WithTimeout bounds each gateway operation.
func WithTimeout(d time.Duration) Option {
	return platform.WithTimeout(d)
}

// WithEventBuffer sets the size of the gateway watch buffer.
func WithEventBuffer(size int) Option {
	return platform.WithEventBuffer(size)
}

// WithErrorHandler receives non-fatal store errors.
func WithErrorHandler(fn func(error)) Option {
	return platform.WithErrorHandler(fn)
}

// WithReadOnly opens the store read-only.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithDevSafety toggles the `go run`/`go test` sandbox.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// --- Factory ---

// New initializes the store at uri and returns a started gateway.
func New(uri string, opts ...Option) (*Gateway, error) {
	return platform.New(uri, opts...)
}

// Init initializes the store without starting a gateway.
func Init(uri string, opts ...Option) (core.Repository, error) {
	return platform.Init(uri, opts...)
}

// OpenSession creates a controller for docID on surface and starts it,
// replaying the document's persisted annotations.
func OpenSession(ctx context.Context, gw *Gateway, surface core.Surface, docID string, opts ...SessionOption) (*Session, error) {
	c := session.New(gw, surface, docID, opts...)
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// --- Versioning ---

// WithChangeReason returns a context whose writes are committed with msg.
func WithChangeReason(ctx context.Context, msg string) context.Context {
	return context.WithValue(ctx, core.ChangeReasonKey, msg)
}

// FormatChangeReason builds a conventional commit message.
func FormatChangeReason(ctype, scope, subject, body string) string {
	return git.FormatMessage(ctype, scope, subject, body)
}

// --- Safety & Utils ---

// ResolvePath returns the store path after the dev sandbox rules.
func ResolvePath(userPath string, forceTemp bool) string {
	return platform.ResolvePath(userPath, forceTemp)
}

// IsDevRun reports whether the process runs under `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards from startDir for a store root.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir, "")
}
