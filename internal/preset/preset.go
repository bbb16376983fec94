// Package preset reads and writes render presets. A preset is YAML, or JSON,
// which the YAML decoder accepts as well.
package preset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/alucardeht/amgp/internal/temporal"
	"github.com/alucardeht/amgp/internal/timespec"
)

// Version is written into every saved preset.
const Version = "1"

var ErrInvalidPreset = errors.New("invalid preset")

var extensions = []string{".yaml", ".yml", ".json"}

type Preset struct {
	Version string `yaml:"version,omitempty"`
	Name    string `yaml:"name"`
	Style   string `yaml:"style,omitempty"`
	Axes    []Axis `yaml:"axes"`
}

type Axis struct {
	Time       Time            `yaml:"time"`
	Mode       temporal.Policy `yaml:"mode,omitempty"`
	Title      string          `yaml:"title,omitempty"`
	AppendDate bool            `yaml:"append_date,omitempty"`
	Plotables  []Plotable      `yaml:"plotables"`
}

// Plotable names a capability by its component identifier (or declared
// name) and the capability name.
type Plotable struct {
	SourceModule string            `yaml:"source_module"`
	Name         string            `yaml:"name"`
	Options      map[string]string `yaml:"options,omitempty"`
}

// Time is an axis time specification. In a file it is either an expression
// string or a mapping with start, end and an HH:MM:SS interval.
type Time struct {
	timespec.Spec
}

func (t *Time) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		t.Spec = timespec.Spec{Expression: node.Value}
		return nil
	}

	var raw struct {
		Expression string     `yaml:"expression"`
		Start      *time.Time `yaml:"start"`
		End        *time.Time `yaml:"end"`
		Interval   string     `yaml:"interval"`
	}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	t.Spec = timespec.Spec{Expression: raw.Expression, Start: raw.Start, End: raw.End}
	if raw.Interval != "" {
		d, err := timespec.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		t.Spec.Interval = &d
	}
	return nil
}

func (t Time) MarshalYAML() (interface{}, error) {
	if t.Start == nil && t.End == nil && t.Interval == nil {
		return t.Expression, nil
	}
	out := map[string]interface{}{}
	if t.Expression != "" {
		out["expression"] = t.Expression
	}
	if t.Start != nil {
		out["start"] = t.Start.UTC()
	}
	if t.End != nil {
		out["end"] = t.End.UTC()
	}
	if t.Interval != nil {
		d := *t.Interval
		out["interval"] = fmt.Sprintf("%02d:%02d:%02d", int(d.Hours()), int(d.Minutes())%60, int(d.Seconds())%60)
	}
	return out, nil
}

// Parse decodes and normalizes a preset. Axes without a mode get
// defaultPolicy.
func Parse(data []byte, defaultPolicy temporal.Policy) (*Preset, error) {
	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
	if err := p.normalize(defaultPolicy); err != nil {
		return nil, err
	}
	return &p, nil
}

func Load(path string, defaultPolicy temporal.Policy) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read preset: %w", err)
	}
	p, err := Parse(data, defaultPolicy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

func (p *Preset) normalize(defaultPolicy temporal.Policy) error {
	if len(p.Axes) == 0 {
		return fmt.Errorf("%w: no axes", ErrInvalidPreset)
	}
	for i := range p.Axes {
		axis := &p.Axes[i]
		if axis.Mode == "" {
			axis.Mode = defaultPolicy
		}
		mode, err := temporal.ParsePolicy(string(axis.Mode))
		if err != nil {
			return fmt.Errorf("%w: axis %d: %v", ErrInvalidPreset, i, err)
		}
		axis.Mode = mode

		if len(axis.Plotables) == 0 {
			return fmt.Errorf("%w: axis %d has no plotables", ErrInvalidPreset, i)
		}
		for j, pl := range axis.Plotables {
			if pl.SourceModule == "" || pl.Name == "" {
				return fmt.Errorf("%w: axis %d plotable %d needs source_module and name", ErrInvalidPreset, i, j)
			}
		}
	}
	return nil
}

// Save writes p as <dir>/<name>.yaml, replacing any previous version.
func Save(dir string, p *Preset) (string, error) {
	if p.Name == "" || strings.ContainsAny(p.Name, `/\`) {
		return "", fmt.Errorf("%w: name %q", ErrInvalidPreset, p.Name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create preset dir: %w", err)
	}

	out := *p
	out.Version = Version
	data, err := yaml.Marshal(&out)
	if err != nil {
		return "", fmt.Errorf("encode preset: %w", err)
	}

	path := filepath.Join(dir, p.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write preset: %w", err)
	}
	return path, nil
}

// List returns the preset names found in dir, sorted. A missing dir holds
// no presets.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list presets: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		for _, want := range extensions {
			if ext == want {
				names = append(names, strings.TrimSuffix(e.Name(), ext))
				break
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// Find resolves ref to a preset file: ref itself when it exists, otherwise
// a preset of that name in dir.
func Find(dir, ref string) (string, error) {
	if info, err := os.Stat(ref); err == nil && !info.IsDir() {
		return ref, nil
	}
	for _, ext := range extensions {
		path := filepath.Join(dir, ref+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("preset %q not found in %s", ref, dir)
}
