package platform

import (
	"context"

	"github.com/academiaflow/annotengine/pkg/gateway"
)

// New initializes the store and returns a started persistence gateway.
// Callers own the gateway and must Close it.
func New(uri string, opts ...Option) (*gateway.Gateway, error) {
	o := apply(opts)
	repo, err := initRepository(uri, o)
	if err != nil {
		return nil, err
	}

	var gwOpts []gateway.Option
	if o.logger != nil {
		gwOpts = append(gwOpts, gateway.WithLogger(o.logger))
	}
	if o.timeout > 0 {
		gwOpts = append(gwOpts, gateway.WithTimeout(o.timeout))
	}
	if o.eventBuffer > 0 {
		gwOpts = append(gwOpts, gateway.WithEventBuffer(o.eventBuffer))
	}

	gw := gateway.New(repo, gwOpts...)
	if err := gw.Start(context.Background()); err != nil {
		closeQuietly(repo)
		return nil, err
	}
	return gw, nil
}
