package service

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/firestarter/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("service")

// Registry is an ordered, immutable chain of services
type Registry[M transport.Envelope] struct {
	services []Service[M]
}

// NewRegistry creates a registry, services are tried in the given order
func NewRegistry[M transport.Envelope](services ...Service[M]) *Registry[M] {
	return &Registry[M]{
		services: append([]Service[M](nil), services...),
	}
}

// Len returns the number of registered services
func (r *Registry[M]) Len() int {
	return len(r.services)
}

// Services returns the registered services in routing order
func (r *Registry[M]) Services() []Service[M] {
	return append([]Service[M](nil), r.services...)
}

// Route hands msg to the first service that accepts it
func (r *Registry[M]) Route(ctx context.Context, shared *ClientShared, msg M) (Outcome, error) {
	h := msg.Header()

	var lastErr error
	for _, svc := range r.services {
		method, err := svc.Accept(h)
		if err != nil {
			lastErr = err
			continue
		}

		Logger.Debugf("routing %s to %s.%s", h, svc.Name(), method.Name)
		return svc.Handle(ctx, method, shared, msg)
	}

	if lastErr != nil {
		return Outcome{}, fmt.Errorf("%w (%s): %w", ErrNoRoute, h, lastErr)
	}
	return Outcome{}, fmt.Errorf("%w (%s): registry is empty", ErrNoRoute, h)
}
