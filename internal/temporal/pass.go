package temporal

import (
	"fmt"
	"time"

	"github.com/alucardeht/amgp/internal/logger"
	"github.com/alucardeht/amgp/internal/timespec"
)

var log = logger.ForComponent("temporal")

// State is the stage a Pass has reached.
type State int

const (
	StateRaw State = iota
	StateParsed
	StateExpanded
	StateQuantized
	StateIndexed
)

func (s State) String() string {
	switch s {
	case StateRaw:
		return "raw"
	case StateParsed:
		return "parsed"
	case StateExpanded:
		return "expanded"
	case StateQuantized:
		return "quantized"
	case StateIndexed:
		return "indexed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Pass carries one time axis of a render through parsing, expansion,
// resolution pooling, quantization and figure selection.
type Pass struct {
	policy   Policy
	maxSteps int

	state     State
	expr      timespec.Expression
	series    Series
	quantized bool
	selected  int

	pooled  map[Tag]struct{}
	sources map[string]struct{}
}

type PassOption func(*Pass)

// WithMaxSteps caps the number of timestamps Expand may produce. Zero
// disables the cap.
func WithMaxSteps(n int) PassOption {
	return func(p *Pass) { p.maxSteps = n }
}

func NewPass(policy Policy, opts ...PassOption) *Pass {
	p := &Pass{
		policy:   policy,
		maxSteps: DefaultMaxSteps,
		selected: -1,
		pooled:   make(map[Tag]struct{}),
		sources:  make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Pass) Policy() Policy { return p.policy }

func (p *Pass) State() State { return p.state }

func (p *Pass) Expression() timespec.Expression { return p.expr }

// Parse resolves spec against anchor, the instant "recent" stands for.
func (p *Pass) Parse(spec timespec.Spec, anchor time.Time) error {
	if p.state != StateRaw {
		return fmt.Errorf("%w: parse from %s", ErrInvalidTransition, p.state)
	}
	expr, err := spec.Resolve(anchor)
	if err != nil {
		return err
	}
	p.expr = expr
	p.state = StateParsed
	return nil
}

func (p *Pass) Expand() error {
	if p.state != StateParsed {
		return fmt.Errorf("%w: expand from %s", ErrInvalidTransition, p.state)
	}
	series, err := Expand(p.expr, p.maxSteps)
	if err != nil {
		return err
	}
	p.series = series
	p.state = StateExpanded
	log.Debug("series expanded", "start", series[0], "figures", len(series))
	return nil
}

// Pool registers the resolution a participating capability declares. The
// key identifies the contributor; pooling the same key twice is a no-op.
func (p *Pass) Pool(key string, res Resolution) error {
	if p.quantized {
		return fmt.Errorf("%w: pool after quantization", ErrInvalidTransition)
	}
	if err := res.Validate(); err != nil {
		return fmt.Errorf("pool %s: %w", key, err)
	}
	if _, seen := p.sources[key]; seen {
		return nil
	}
	p.sources[key] = struct{}{}
	for _, t := range res {
		p.pooled[t] = struct{}{}
	}
	return nil
}

// Pooled returns the pooled tags, coarse to fine, irregular tags last.
func (p *Pass) Pooled() []Tag {
	out := make([]Tag, 0, len(p.pooled))
	for _, g := range granularities {
		if _, ok := p.pooled[g.tag]; ok {
			out = append(out, g.tag)
		}
	}
	for _, t := range []Tag{TagDay1, TagDay2, TagDay3, TagDay4, TagDay5, TagDay6, TagDay7, TagDay8} {
		if _, ok := p.pooled[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Quantize snaps every timestamp in the series under the pass policy. res is
// the resolution of the capability the quantized times are for; it selects
// the granularity under async and supplies any irregular schedule.
func (p *Pass) Quantize(res Resolution) error {
	if p.state < StateExpanded {
		return fmt.Errorf("%w: quantize from %s", ErrInvalidTransition, p.state)
	}
	if p.quantized {
		return fmt.Errorf("%w: series already quantized", ErrInvalidTransition)
	}
	if len(p.pooled) == 0 {
		return ErrPrematureQuantization
	}
	if err := res.Validate(); err != nil {
		return err
	}

	for i, ts := range p.series {
		p.series[i] = reconcile(ts, p.policy, p.pooled, res)
	}
	p.quantized = true
	if p.state < StateQuantized {
		p.state = StateQuantized
	}
	return nil
}

// Index selects figure n. The full series is retained, so repeating a call
// with the same n yields the same selection.
func (p *Pass) Index(n int) error {
	if p.state < StateExpanded {
		return fmt.Errorf("%w: index from %s", ErrInvalidTransition, p.state)
	}
	if n < 0 || n >= len(p.series) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrIndexOutOfRange, n, len(p.series))
	}
	p.selected = n
	p.state = StateIndexed
	return nil
}

// Len is the length of the full series, regardless of any selection.
func (p *Pass) Len() int { return len(p.series) }

// Times returns the current view: the selected figure once indexed,
// otherwise the whole series.
func (p *Pass) Times() []time.Time {
	if p.selected >= 0 {
		return []time.Time{p.series[p.selected]}
	}
	return p.series.Clone()
}

// Clone forks the pass so each capability can quantize its own copy.
func (p *Pass) Clone() *Pass {
	c := *p
	c.series = p.series.Clone()
	c.pooled = make(map[Tag]struct{}, len(p.pooled))
	for t := range p.pooled {
		c.pooled[t] = struct{}{}
	}
	c.sources = make(map[string]struct{}, len(p.sources))
	for k := range p.sources {
		c.sources[k] = struct{}{}
	}
	return &c
}

// reconcile snaps one timestamp. An irregular tag in res runs its cutover
// schedule on the policy result. Under async a list resolution truncates to
// its coarsest regular tag, where a single tag would be the only choice.
func reconcile(ts time.Time, policy Policy, pooled map[Tag]struct{}, res Resolution) time.Time {
	if policy == PolicyRaw {
		return ts
	}

	out := ts
	switch policy {
	case PolicySync:
		for _, g := range granularities {
			if _, ok := pooled[g.tag]; ok {
				out = g.truncate(ts)
				break
			}
		}
	case PolicyNearest:
		for i := len(granularities) - 1; i >= 0; i-- {
			if _, ok := pooled[granularities[i].tag]; ok {
				out = granularities[i].truncate(ts)
				break
			}
		}
		// a pooled 24h pins nearest to midnight whatever finer tag matched
		if _, ok := pooled[Tag24h]; ok {
			out = Tag24h.Truncate(ts)
		}
	case PolicyAsync:
		if t, ok := res.Coarsest(); ok {
			out = t.Truncate(ts)
		}
	}

	if t, ok := res.Irregular(); ok {
		out = t.Truncate(out)
	}
	return out
}
