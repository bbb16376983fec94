package render

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Renderer draws figures. Drawing is outside this module; implementations
// receive fully resolved figures.
type Renderer interface {
	Render(ctx context.Context, plan *Plan, fig Figure) error
}

// Recorder keeps a record of executed plans.
type Recorder interface {
	Record(ctx context.Context, plan *Plan) error
}

// JSONRenderer writes one JSON manifest line per figure.
type JSONRenderer struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

type manifest struct {
	Plan   string `json:"plan"`
	Preset string `json:"preset"`
	Figure
}

func (r *JSONRenderer) Render(_ context.Context, plan *Plan, fig Figure) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc.Encode(manifest{Plan: plan.ID.String(), Preset: plan.Preset, Figure: fig})
}

// Execute hands each figure to renderer in order, then records the plan.
// recorder may be nil.
func Execute(ctx context.Context, plan *Plan, renderer Renderer, recorder Recorder) error {
	for _, fig := range plan.Figures {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := renderer.Render(ctx, plan, fig); err != nil {
			return fmt.Errorf("render figure %d: %w", fig.Index, err)
		}
	}
	if recorder == nil {
		return nil
	}
	if err := recorder.Record(ctx, plan); err != nil {
		return fmt.Errorf("record plan %s: %w", plan.ID, err)
	}
	return nil
}
