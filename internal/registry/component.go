package registry

import (
	"context"

	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/temporal"
)

// Identity is what a component answers to its no-argument identity call.
type Identity struct {
	Name string `json:"name"`
	UID  string `json:"uid"`
}

// Capability describes one thing a component can contribute to a figure.
// Options maps an option name to the values it accepts.
type Capability struct {
	Description string              `json:"description"`
	Options     map[string][]string `json:"options,omitempty"`
	Resolution  temporal.Resolution `json:"time_format"`
	Fill        bool                `json:"fill,omitempty"`
}

// Component is the contract every discoverable unit exposes. The registry
// reads only these two calls.
type Component interface {
	Identity(ctx context.Context) (Identity, error)
	Capabilities(ctx context.Context) (map[string]Capability, error)
}

// Pinger is implemented by components that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) (string, error)
}

// Refresher is implemented by components that cache their capability
// listing.
type Refresher interface {
	Invalidate()
}

// Record is the read-only handle callers get for a registered component.
type Record struct {
	ID        identifier.ID
	Parts     identifier.Parts
	Name      string
	Location  string
	Candidate string
	Component Component
}

func (r *Record) Role() identifier.RoleClass { return r.Parts.Role }

func (r *Record) Priority() int { return r.Parts.Priority }

// Capabilities forwards to the component.
func (r *Record) Capabilities(ctx context.Context) (map[string]Capability, error) {
	return r.Component.Capabilities(ctx)
}
