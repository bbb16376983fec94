package render

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alucardeht/amgp/internal/components"
	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/preset"
	"github.com/alucardeht/amgp/internal/registry"
	"github.com/alucardeht/amgp/internal/temporal"
)

var clock = time.Date(2024, 1, 1, 13, 47, 30, 0, time.UTC)

func builtinRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.Discover(context.Background(), []registry.Location{components.Location()})
	require.NoError(t, err)
	return reg
}

func plan(t *testing.T, doc string) (*Plan, error) {
	t.Helper()
	ps, err := preset.Parse([]byte(doc), temporal.PolicySync)
	require.NoError(t, err)
	planner := NewPlanner(builtinRegistry(t), WithClock(func() time.Time { return clock }))
	return planner.Plan(context.Background(), ps)
}

func at(h, m int) time.Time {
	return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC)
}

const recentTwoLayers = `
name: recent
axes:
  - time: recent
    mode: %s
    title: Surface
    append_date: true
    plotables:
      - {source_module: "00311000", name: surface_station_observations}
      - {source_module: AMGP_MODEL_FILL, name: filled_gfs_contours}
`

func layerTimes(p *Plan) []time.Time {
	var out []time.Time
	for _, l := range p.Figures[0].Axes[0].Layers {
		out = append(out, l.Time)
	}
	return out
}

func TestPlan_Policies(t *testing.T) {
	cases := []struct {
		policy string
		want   []time.Time
	}{
		{"sync", []time.Time{at(12, 0), at(12, 0)}},
		{"async", []time.Time{at(13, 0), at(12, 0)}},
		{"nearest", []time.Time{at(13, 0), at(13, 0)}},
		{"raw", []time.Time{clock, clock}},
	}
	for _, tc := range cases {
		p, err := plan(t, fmt.Sprintf(recentTwoLayers, tc.policy))
		require.NoError(t, err, tc.policy)
		require.Len(t, p.Figures, 1)
		require.Equal(t, tc.want, layerTimes(p), tc.policy)
	}
}

func TestPlan_TitleUsesFirstPlotable(t *testing.T) {
	p, err := plan(t, fmt.Sprintf(recentTwoLayers, "async"))
	require.NoError(t, err)

	frame := p.Figures[0].Axes[0]
	require.Equal(t, at(13, 0), frame.TitleTime)
	require.Equal(t, "20240101 1300Z - Surface", frame.Title)
	require.Equal(t, temporal.PolicyAsync, frame.Policy)
	require.Equal(t, "recent", p.Preset)
	require.Equal(t, clock, p.Anchor)
}

func TestPlan_FigurePerTimestamp(t *testing.T) {
	p, err := plan(t, `
axes:
  - time: 20240101-00:00:00 to 20240102-00:00:00 interval 06:00:00
    plotables:
      - {source_module: "00510400", name: filled_gfs_contours}
`)
	require.NoError(t, err)
	require.Len(t, p.Figures, 5)
	for i, fig := range p.Figures {
		require.Equal(t, i, fig.Index)
		require.Equal(t, at(0, 0).Add(time.Duration(i)*6*time.Hour), fig.Axes[0].Layers[0].Time)
	}
}

func TestPlan_MissingComponentIsFatal(t *testing.T) {
	_, err := plan(t, `
axes:
  - time: recent
    plotables:
      - {source_module: "00319999", name: anything}
`)
	require.ErrorIs(t, err, ErrComponentNotFound)

	_, err = plan(t, `
axes:
  - time: recent
    plotables:
      - {source_module: AMGP_MAP, name: anything}
`)
	require.ErrorIs(t, err, ErrComponentNotFound, "utility components are not plottable")
}

func TestPlan_MissingCapabilityWarns(t *testing.T) {
	p, err := plan(t, `
axes:
  - time: recent
    plotables:
      - {source_module: "00311000", name: radar_reflectivity}
      - {source_module: "00311000", name: upper_air_station_observations}
`)
	require.NoError(t, err)
	require.Len(t, p.Warnings, 1)
	require.Len(t, p.Figures[0].Axes[0].Layers, 1)
	require.Equal(t, at(12, 0), p.Figures[0].Axes[0].Layers[0].Time)
}

func TestPlan_NoUsablePlotables(t *testing.T) {
	_, err := plan(t, `
axes:
  - time: recent
    plotables:
      - {source_module: "00311000", name: radar_reflectivity}
`)
	require.ErrorIs(t, err, temporal.ErrPrematureQuantization)
}

func TestPlan_ShortAxisFails(t *testing.T) {
	_, err := plan(t, `
axes:
  - time: 20240101-00:00:00 to 20240101-12:00:00 interval 06:00:00
    plotables:
      - {source_module: "00510400", name: filled_gfs_contours}
  - time: recent
    plotables:
      - {source_module: "00311000", name: surface_station_observations}
`)
	require.ErrorIs(t, err, temporal.ErrIndexOutOfRange)
}

func TestPlan_TimeErrorsSurface(t *testing.T) {
	_, err := plan(t, `
axes:
  - time: 20240102-00:00:00 to 20240101-00:00:00
    plotables:
      - {source_module: "00510400", name: filled_gfs_contours}
`)
	require.ErrorIs(t, err, temporal.ErrEmptyTimeSeries)
}

type memoryRecorder struct{ plans []*Plan }

func (m *memoryRecorder) Record(_ context.Context, p *Plan) error {
	m.plans = append(m.plans, p)
	return nil
}

func TestExecute_JSONManifest(t *testing.T) {
	p, err := plan(t, `
name: six
axes:
  - time: 20240101-00:00:00 to 20240101-12:00:00 interval 06:00:00
    plotables:
      - {source_module: "00510400", name: filled_gfs_contours, options: {level: "500 hPa"}}
`)
	require.NoError(t, err)

	var buf bytes.Buffer
	rec := &memoryRecorder{}
	require.NoError(t, Execute(context.Background(), p, NewJSONRenderer(&buf), rec))
	require.Len(t, rec.plans, 1)

	scanner := bufio.NewScanner(&buf)
	lines := 0
	for scanner.Scan() {
		var m struct {
			Plan   string `json:"plan"`
			Preset string `json:"preset"`
			Index  int    `json:"index"`
			Axes   []struct {
				Layers []struct {
					Options map[string]string `json:"options"`
					Time    time.Time         `json:"time"`
				} `json:"layers"`
			} `json:"axes"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &m))
		require.Equal(t, p.ID.String(), m.Plan)
		require.Equal(t, "six", m.Preset)
		require.Equal(t, lines, m.Index)
		require.Equal(t, "500 hPa", m.Axes[0].Layers[0].Options["level"])
		lines++
	}
	require.Equal(t, 3, lines)
}

func TestExecute_Cancelled(t *testing.T) {
	p, err := plan(t, fmt.Sprintf(recentTwoLayers, "sync"))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, Execute(ctx, p, NewJSONRenderer(&bytes.Buffer{}), nil), context.Canceled)
}

func TestFactors(t *testing.T) {
	factors, err := Factors(context.Background(), builtinRegistry(t))
	require.NoError(t, err)
	require.Len(t, factors, 3)

	require.Equal(t, identifier.ID("00510400"), factors[0].SourceModule)
	require.Equal(t, "filled_gfs_contours", factors[0].Name)
	require.True(t, factors[0].Fill)
	require.Equal(t, "surface_station_observations", factors[1].Name)
	require.Equal(t, "upper_air_station_observations", factors[2].Name)
	require.Equal(t, "00311000-upper_air_station_observations", factors[2].Key())
}
