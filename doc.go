// Package annotengine is the composition root of the AcademiaFlow annotation
// engine.
//
// It wires the annotation domain (pkg/core), the single-writer persistence
// gateway (pkg/gateway) and the per-document session controller
// (pkg/session) to a store adapter chosen by option.
//
// Stores:
//
//   - fs (default): one file per record under documents/<id>/, atomic writes,
//     optional git history per annotation.
//   - sqlite: one database file, optionally encrypted with SQLCipher.
//   - memory: process-local, for tests and scratch sessions.
//
// Usage:
//
//	gw, err := annotengine.New("./annotations", annotengine.WithAutoInit(true))
//	if err != nil {
//		return err
//	}
//	defer gw.Close(ctx)
//
//	s, err := annotengine.OpenSession(ctx, gw, surface, "pdf-42")
//	if err != nil {
//		return err
//	}
//	a, err := s.Annotate(1, core.NewBounds(72, 700, 200, 14), "key result")
package annotengine
