// Package render turns a preset into a plan: the timestamps every layer of
// every figure is fetched and labelled at.
package render

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/logger"
	"github.com/alucardeht/amgp/internal/preset"
	"github.com/alucardeht/amgp/internal/registry"
	"github.com/alucardeht/amgp/internal/temporal"
)

var log = logger.ForComponent("render")

// TitleLayout formats the timestamp prefixed to axis titles.
const TitleLayout = "20060102 1504Z"

var ErrComponentNotFound = errors.New("data component not found")

type Plan struct {
	ID        uuid.UUID `json:"id"`
	Preset    string    `json:"preset"`
	CreatedAt time.Time `json:"created_at"`
	Anchor    time.Time `json:"anchor"`
	Figures   []Figure  `json:"figures"`
	Warnings  []string  `json:"warnings,omitempty"`
}

type Figure struct {
	Index int         `json:"index"`
	Axes  []AxisFrame `json:"axes"`
}

type AxisFrame struct {
	Axis      int             `json:"axis"`
	Policy    temporal.Policy `json:"policy"`
	Title     string          `json:"title"`
	TitleTime time.Time       `json:"title_time"`
	Layers    []Layer         `json:"layers"`
}

type Layer struct {
	Factor  Factor            `json:"factor"`
	Options map[string]string `json:"options,omitempty"`
	Time    time.Time         `json:"time"`
}

// Planner builds plans against one registry.
type Planner struct {
	reg      *registry.Registry
	maxSteps int
	now      func() time.Time
}

type PlannerOption func(*Planner)

func WithMaxSteps(n int) PlannerOption {
	return func(p *Planner) { p.maxSteps = n }
}

// WithClock sets the source of the anchor "recent" resolves to.
func WithClock(now func() time.Time) PlannerOption {
	return func(p *Planner) { p.now = now }
}

func NewPlanner(reg *registry.Registry, opts ...PlannerOption) *Planner {
	p := &Planner{reg: reg, maxSteps: temporal.DefaultMaxSteps, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type axisPlan struct {
	axis   preset.Axis
	layers []plannedLayer
	length int
}

type plannedLayer struct {
	factor  Factor
	options map[string]string
	pass    *temporal.Pass
}

// Plan resolves every plotable of the preset. A plotable whose component is
// missing fails the plan; one whose capability is missing is dropped with a
// warning.
func (p *Planner) Plan(ctx context.Context, ps *preset.Preset) (*Plan, error) {
	anchor := p.now().UTC()
	plan := &Plan{
		ID:        uuid.New(),
		Preset:    ps.Name,
		CreatedAt: anchor,
		Anchor:    anchor,
	}

	axes := make([]axisPlan, 0, len(ps.Axes))
	figures := 0
	for i, axis := range ps.Axes {
		ap, warnings, err := p.planAxis(ctx, i, axis, anchor)
		if err != nil {
			return nil, fmt.Errorf("axis %d: %w", i, err)
		}
		plan.Warnings = append(plan.Warnings, warnings...)
		axes = append(axes, ap)
		if ap.length > figures {
			figures = ap.length
		}
	}

	for n := 0; n < figures; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fig := Figure{Index: n, Axes: make([]AxisFrame, 0, len(axes))}
		for i, ap := range axes {
			frame, err := ap.frame(i, n)
			if err != nil {
				return nil, fmt.Errorf("figure %d axis %d: %w", n, i, err)
			}
			fig.Axes = append(fig.Axes, frame)
		}
		plan.Figures = append(plan.Figures, fig)
	}

	log.Info("plan built", "id", plan.ID, "preset", plan.Preset, "figures", len(plan.Figures), "warnings", len(plan.Warnings))
	return plan, nil
}

func (p *Planner) planAxis(ctx context.Context, idx int, axis preset.Axis, anchor time.Time) (axisPlan, []string, error) {
	base := temporal.NewPass(axis.Mode, temporal.WithMaxSteps(p.maxSteps))
	if err := base.Parse(axis.Time.Spec, anchor); err != nil {
		return axisPlan{}, nil, err
	}
	if err := base.Expand(); err != nil {
		return axisPlan{}, nil, err
	}

	var (
		factors  []Factor
		options  []map[string]string
		warnings []string
	)
	for _, pl := range axis.Plotables {
		rec, err := p.reg.Resolve(pl.SourceModule)
		if err != nil {
			if errors.Is(err, registry.ErrNotFound) {
				return axisPlan{}, nil, fmt.Errorf("%w: %s for plotable %s", ErrComponentNotFound, pl.SourceModule, pl.Name)
			}
			return axisPlan{}, nil, err
		}
		if rec.Role() != identifier.RoleData {
			return axisPlan{}, nil, fmt.Errorf("%w: %s is a %s component", ErrComponentNotFound, rec.Name, rec.Role())
		}

		caps, err := rec.Capabilities(ctx)
		if err != nil {
			return axisPlan{}, nil, fmt.Errorf("capabilities of %s: %w", rec.Name, err)
		}
		c, ok := caps[pl.Name]
		if !ok {
			msg := fmt.Sprintf("axis %d: %s has no capability %q", idx, rec.Name, pl.Name)
			log.Warn("plotable skipped", "axis", idx, "component", rec.Name, "capability", pl.Name)
			warnings = append(warnings, msg)
			continue
		}

		f := newFactor(rec, pl.Name, c)
		if err := base.Pool(f.Key(), f.Resolution); err != nil {
			return axisPlan{}, nil, err
		}
		factors = append(factors, f)
		options = append(options, pl.Options)
	}

	ap := axisPlan{axis: axis, length: base.Len()}
	for i, f := range factors {
		pass := base.Clone()
		if err := pass.Quantize(f.Resolution); err != nil {
			return axisPlan{}, nil, fmt.Errorf("%s: %w", f.Key(), err)
		}
		ap.layers = append(ap.layers, plannedLayer{factor: f, options: options[i], pass: pass})
	}
	if len(ap.layers) == 0 {
		return axisPlan{}, nil, fmt.Errorf("no usable plotables: %w", temporal.ErrPrematureQuantization)
	}
	return ap, warnings, nil
}

func (ap axisPlan) frame(axisIdx, n int) (AxisFrame, error) {
	frame := AxisFrame{Axis: axisIdx, Policy: ap.axis.Mode, Layers: make([]Layer, 0, len(ap.layers))}
	for _, l := range ap.layers {
		if err := l.pass.Index(n); err != nil {
			return AxisFrame{}, err
		}
		frame.Layers = append(frame.Layers, Layer{
			Factor:  l.factor,
			Options: l.options,
			Time:    l.pass.Times()[0],
		})
	}

	// the first plotable labels the axis
	frame.TitleTime = frame.Layers[0].Time
	frame.Title = ap.axis.Title
	if ap.axis.AppendDate {
		frame.Title = fmt.Sprintf("%s - %s", frame.TitleTime.Format(TitleLayout), ap.axis.Title)
	}
	return frame, nil
}
