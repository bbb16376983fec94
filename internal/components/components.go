// Package components holds the components compiled into amgp. They declare
// identity and capabilities only; fetching and drawing live outside this
// module.
package components

import (
	"context"

	"github.com/alucardeht/amgp/internal/registry"
)

// LocationName is the name the built-in location reports.
const LocationName = "builtin"

// Static is a component whose identity and capability listing are fixed.
type Static struct {
	identity     registry.Identity
	capabilities map[string]registry.Capability
}

func NewStatic(name, uid string, capabilities map[string]registry.Capability) *Static {
	return &Static{
		identity:     registry.Identity{Name: name, UID: uid},
		capabilities: capabilities,
	}
}

func (s *Static) Identity(context.Context) (registry.Identity, error) {
	return s.identity, nil
}

// Capabilities returns a copy so callers cannot alter the listing.
func (s *Static) Capabilities(context.Context) (map[string]registry.Capability, error) {
	out := make(map[string]registry.Capability, len(s.capabilities))
	for name, c := range s.capabilities {
		opts := make(map[string][]string, len(c.Options))
		for k, v := range c.Options {
			opts[k] = append([]string(nil), v...)
		}
		c.Options = opts
		c.Resolution = append(c.Resolution[:0:0], c.Resolution...)
		out[name] = c
	}
	return out, nil
}

// Ping reports "static": built-ins have no upstream to reach from here.
func (s *Static) Ping(context.Context) (string, error) {
	return "static", nil
}

// All returns the built-in components keyed by candidate name.
func All() map[string]registry.Component {
	return map[string]registry.Component{
		"AMGP_MAP":        Map(),
		"AMGP_UTIL":       Util(),
		"AMGP_MENU":       Menu(),
		"AMGP_OBS":        Obs(),
		"AMGP_MODEL_FILL": ModelFill(),
	}
}

// Location is the baseline location every registry scans first.
func Location() registry.Location {
	return registry.NewStaticLocation(LocationName, false, All())
}
