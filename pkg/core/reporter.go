package core

import "log/slog"

// Reporter is the error sink owned by the UI layer. The engine only decides
// that an error happened and how it is classified.
type Reporter interface {
	Report(err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(err error)

func (f ReporterFunc) Report(err error) { f(err) }

// LogReporter reports errors to a structured logger.
type LogReporter struct {
	Logger *slog.Logger
}

func (r LogReporter) Report(err error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Error("annotation error", "kind", Classify(err).String(), "error", err)
}
