// Package plugin runs external component executables and talks to them over
// JSON-RPC on stdio.
package plugin

import (
	"context"
	"fmt"

	gocache "github.com/patrickmn/go-cache"

	"github.com/alucardeht/amgp/internal/logger"
	"github.com/alucardeht/amgp/internal/registry"
	"github.com/alucardeht/amgp/internal/temporal"
	"github.com/alucardeht/amgp/pkg/protocol"
)

var log = logger.ForComponent("plugin")

const capabilitiesKey = "capabilities"

// Remote adapts a protocol connection to registry.Component. Capability
// listings are cached for CapabilityTTL; zero disables the cache. Calls go
// through a circuit breaker.
type Remote struct {
	client  *Client
	config  Config
	breaker *breaker
	cache   *gocache.Cache
}

func NewRemote(client *Client, config Config) *Remote {
	cleanup := config.CapabilityTTL * 2
	if cleanup <= 0 {
		cleanup = gocache.NoExpiration
	}
	return &Remote{
		client:  client,
		config:  config,
		breaker: newBreaker(config.Breaker),
		cache:   gocache.New(config.CapabilityTTL, cleanup),
	}
}

func (r *Remote) guard(fn func() error) error {
	if !r.breaker.allow() {
		return fmt.Errorf("%w: %s", ErrBreakerOpen, r.client.name)
	}
	if err := fn(); err != nil {
		r.breaker.failure()
		return err
	}
	r.breaker.success()
	return nil
}

func (r *Remote) Identity(ctx context.Context) (registry.Identity, error) {
	var id protocol.Identity
	err := r.guard(func() error {
		var err error
		id, err = r.client.Identity(ctx, r.config.InitTimeout)
		return err
	})
	if err != nil {
		return registry.Identity{}, err
	}
	return registry.Identity{Name: id.Name, UID: id.UID}, nil
}

func (r *Remote) Capabilities(ctx context.Context) (map[string]registry.Capability, error) {
	caching := r.config.CapabilityTTL > 0
	if cached, ok := r.cache.Get(capabilitiesKey); caching && ok {
		if caps, ok := cached.(map[string]registry.Capability); ok {
			log.Debug("capability cache hit", "plugin", r.client.name)
			return caps, nil
		}
	}

	var wire map[string]protocol.Capability
	err := r.guard(func() error {
		var err error
		wire, err = r.client.Capabilities(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	caps, err := convertCapabilities(wire)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.client.name, err)
	}
	if caching {
		r.cache.Set(capabilitiesKey, caps, gocache.DefaultExpiration)
	}
	return caps, nil
}

func convertCapabilities(wire map[string]protocol.Capability) (map[string]registry.Capability, error) {
	caps := make(map[string]registry.Capability, len(wire))
	for name, w := range wire {
		res := make(temporal.Resolution, len(w.TimeFormat))
		for i, tag := range w.TimeFormat {
			res[i] = temporal.Tag(tag)
		}
		if err := res.Validate(); err != nil {
			return nil, fmt.Errorf("capability %q: %w", name, err)
		}
		caps[name] = registry.Capability{
			Description: w.Description,
			Options:     w.Options,
			Resolution:  res,
			Fill:        w.Fill,
		}
	}
	return caps, nil
}

func (r *Remote) Ping(ctx context.Context) (string, error) {
	var status string
	err := r.guard(func() error {
		var err error
		status, err = r.client.Ping(ctx)
		return err
	})
	return status, err
}

// Invalidate drops the cached capability listing.
func (r *Remote) Invalidate() {
	r.cache.Delete(capabilitiesKey)
}

func (r *Remote) BreakerState() BreakerState {
	return r.breaker.State()
}

func (r *Remote) Close() error {
	return r.client.Close()
}
