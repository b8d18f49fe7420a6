package gateway

import (
	"context"
	"errors"

	"github.com/aretw0/lifecycle"

	"github.com/academiaflow/annotengine/pkg/core"
)

// Watch observes changes in the repository if supported.
//
// Events are relayed through a buffered channel so a slow consumer does not
// stall the repository's watcher. The returned channel is closed when ctx
// ends or the upstream closes.
func (g *Gateway) Watch(ctx context.Context) (<-chan core.Event, error) {
	w, ok := g.repo.(core.Watchable)
	if !ok {
		return nil, errors.New("repository does not support watching")
	}

	upstream, err := w.Watch(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan core.Event, g.eventBufferSize)
	lifecycle.Go(ctx, func(ctx context.Context) error {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return nil
			case e, ok := <-upstream:
				if !ok {
					return nil
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return nil
				}
			}
		}
	})
	return out, nil
}
