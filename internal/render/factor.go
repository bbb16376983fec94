package render

import (
	"context"
	"fmt"
	"sort"

	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/registry"
	"github.com/alucardeht/amgp/internal/temporal"
)

// Factor is one plottable capability of a data component.
type Factor struct {
	SourceModule identifier.ID       `json:"source_module"`
	Component    string              `json:"component"`
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	Options      map[string][]string `json:"options,omitempty"`
	Resolution   temporal.Resolution `json:"time_format"`
	Fill         bool                `json:"is_fill"`
}

// Key identifies the factor when its resolution is pooled.
func (f Factor) Key() string {
	return fmt.Sprintf("%s-%s", f.SourceModule, f.Name)
}

func newFactor(rec *registry.Record, name string, c registry.Capability) Factor {
	return Factor{
		SourceModule: rec.ID,
		Component:    rec.Name,
		Name:         name,
		Description:  c.Description,
		Options:      c.Options,
		Resolution:   c.Resolution,
		Fill:         c.Fill,
	}
}

// Factors lists every capability of every data component, in component
// priority order and then by name.
func Factors(ctx context.Context, reg *registry.Registry) ([]Factor, error) {
	var out []Factor
	for _, rec := range reg.AllOfRole(identifier.RoleData) {
		caps, err := rec.Capabilities(ctx)
		if err != nil {
			return nil, fmt.Errorf("capabilities of %s: %w", rec.Name, err)
		}
		names := make([]string, 0, len(caps))
		for name := range caps {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			out = append(out, newFactor(rec, name, caps[name]))
		}
	}
	return out, nil
}
