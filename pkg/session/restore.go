package session

import (
	"context"
	"log/slog"
	"sort"

	"github.com/academiaflow/annotengine/pkg/core"
)

// Loader is the read side of the gateway used at session start.
type Loader interface {
	LoadAll(ctx context.Context, docID string) ([]core.Snapshot, error)
}

// RestoreResult is the outcome of a replay.
type RestoreResult struct {
	// Annotations ordered by page, creation time, then id.
	Annotations []*core.Annotation
	// Skipped holds snapshots whose page no longer exists in the document.
	Skipped []core.Snapshot
}

// Restore loads every snapshot of doc, rebuilds the live annotations with
// their original identity and draws them on surface. Snapshots pointing at
// pages outside [1, info.PageCount] are skipped, not treated as failures.
func Restore(ctx context.Context, loader Loader, surface core.Surface, doc *core.Document, info core.DocumentInfo, logger *slog.Logger) (RestoreResult, error) {
	snaps, err := loader.LoadAll(ctx, doc.ID)
	if err != nil {
		return RestoreResult{}, core.LoadFailed(doc.ID, err)
	}

	var res RestoreResult
	for _, s := range snaps {
		a := core.FromSnapshot(s, doc)
		if a.Page < 1 || a.Page > info.PageCount {
			logger.Warn("skipping annotation on missing page",
				"document", doc.ID, "annotation", a.ID, "page", a.Page, "pages", info.PageCount)
			res.Skipped = append(res.Skipped, s)
			continue
		}
		res.Annotations = append(res.Annotations, a)
	}

	sort.SliceStable(res.Annotations, func(i, j int) bool {
		a, b := res.Annotations[i], res.Annotations[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	for _, a := range res.Annotations {
		draw(surface, a, logger)
	}

	logger.Debug("restored annotations",
		"document", doc.ID, "restored", len(res.Annotations), "skipped", len(res.Skipped))
	return res, nil
}

// draw and erase convert the 1-based page number to the surface's 0-based
// index. This is the only place the conversion happens.
func draw(surface core.Surface, a *core.Annotation, logger *slog.Logger) {
	if err := surface.AddPrimitive(a.Page-1, a.Drawable()); err != nil {
		logger.Warn("failed to draw annotation", "annotation", a.ID, "page", a.Page, "error", err)
	}
}

func erase(surface core.Surface, a *core.Annotation, logger *slog.Logger) {
	if err := surface.RemovePrimitive(a.Page-1, a.Drawable()); err != nil {
		logger.Warn("failed to erase annotation", "annotation", a.ID, "page", a.Page, "error", err)
	}
}
