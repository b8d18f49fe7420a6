package platform

import (
	"log/slog"
	"time"

	"github.com/academiaflow/annotengine/pkg/core"
)

// Adapter names accepted by WithAdapter.
const (
	AdapterFS     = "fs"
	AdapterSQLite = "sqlite"
	AdapterMemory = "memory"
)

// options holds the configuration shared by Init and New.
type options struct {
	repository   core.Repository
	logger       *slog.Logger
	adapter      string
	autoInit     bool
	versioning   *bool // nil means detect
	forceTemp    bool
	mustExist    bool
	readOnly     bool
	devSafety    bool
	systemDir    string
	format       string
	key          string
	timeout      time.Duration
	eventBuffer  int
	errorHandler func(error)
}

// Option configures the engine.
type Option func(*options)

func defaultOptions() *options {
	return &options{
		adapter:   AdapterFS,
		devSafety: true,
	}
}

func apply(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithAutoInit creates the store (directory, git repository, schema) when missing.
func WithAutoInit(auto bool) Option {
	return func(o *options) { o.autoInit = auto }
}

// WithVersioning enables or disables git history for the fs adapter.
// Left unset, an existing .git directory decides.
func WithVersioning(enabled bool) Option {
	return func(o *options) { o.versioning = &enabled }
}

// WithForceTemp re-roots the store path into the system temp directory.
func WithForceTemp(force bool) Option {
	return func(o *options) { o.forceTemp = force }
}

// WithMustExist fails instead of creating a missing store.
func WithMustExist(must bool) Option {
	return func(o *options) { o.mustExist = must }
}

// WithLogger sets the logger handed to adapters and the gateway.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRepository injects a store, skipping adapter selection.
func WithRepository(repo core.Repository) Option {
	return func(o *options) { o.repository = repo }
}

// WithAdapter selects the store by name: "fs" (default), "sqlite" or "memory".
func WithAdapter(name string) Option {
	return func(o *options) { o.adapter = name }
}

// WithSystemDir sets the fs adapter's hidden directory. Defaults to ".annot".
func WithSystemDir(name string) Option {
	return func(o *options) { o.systemDir = name }
}

// WithFormat sets the fs record format, "json" or "yaml".
func WithFormat(format string) Option {
	return func(o *options) { o.format = format }
}

// WithEncryptionKey sets the SQLCipher passphrase of the sqlite adapter.
func WithEncryptionKey(key string) Option {
	return func(o *options) { o.key = key }
}

// WithTimeout bounds each gateway operation.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithEventBuffer sets the gateway Watch buffer size.
func WithEventBuffer(size int) Option {
	return func(o *options) { o.eventBuffer = size }
}

// WithErrorHandler receives non-fatal adapter errors (skipped records,
// watcher failures).
func WithErrorHandler(fn func(error)) Option {
	return func(o *options) { o.errorHandler = fn }
}

// WithReadOnly opens the store read-only: writes fail with core.ErrReadOnly
// and initialization is skipped. The dev sandbox is bypassed.
func WithReadOnly(enabled bool) Option {
	return func(o *options) { o.readOnly = enabled }
}

// WithDevSafety controls the sandbox applied under `go run` and `go test`.
// Enabled by default.
func WithDevSafety(enabled bool) Option {
	return func(o *options) { o.devSafety = enabled }
}
