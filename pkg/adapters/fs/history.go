package fs

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/academiaflow/annotengine/pkg/core"
)

// History lists the commits that touched an annotation, newest first. The
// annotation may already be deleted; its last known location is searched.
func (r *Repository) History(ctx context.Context, id string) ([]core.Revision, error) {
	if r.config.Gitless {
		return nil, fmt.Errorf("history unavailable: store is not versioned")
	}
	if err := core.ValidateID(id); err != nil {
		return nil, err
	}

	// A pathspec glob also finds files that no longer exist in the work tree.
	spec := ":(glob)" + path.Join(documentsDir, "*", annotDir, id+".*")
	entries, err := r.git.Log(ctx, spec)
	if err != nil {
		return nil, err
	}

	revs := make([]core.Revision, 0, len(entries))
	for _, e := range entries {
		revs = append(revs, core.Revision{
			Hash:    e.Hash,
			Author:  e.Author,
			Date:    e.Date.UTC().Format(time.RFC3339),
			Subject: e.Subject,
		})
	}
	return revs, nil
}
