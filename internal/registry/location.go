package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Candidate is a component a location offers before it has been loaded.
type Candidate struct {
	Name string
	Open func(ctx context.Context) (Component, error)
}

// Location is one ordered source of candidates.
type Location interface {
	Name() string
	// Optional locations have their identity failures logged and skipped.
	Optional() bool
	Candidates(ctx context.Context) ([]Candidate, error)
}

// StaticLocation serves components compiled into the binary.
type StaticLocation struct {
	name       string
	optional   bool
	candidates []Candidate
}

func NewStaticLocation(name string, optional bool, components map[string]Component) *StaticLocation {
	names := make([]string, 0, len(components))
	for n := range components {
		names = append(names, n)
	}
	sort.Strings(names)

	loc := &StaticLocation{name: name, optional: optional}
	for _, n := range names {
		c := components[n]
		loc.candidates = append(loc.candidates, Candidate{
			Name: n,
			Open: func(context.Context) (Component, error) { return c, nil },
		})
	}
	return loc
}

func (l *StaticLocation) Name() string   { return l.name }
func (l *StaticLocation) Optional() bool { return l.optional }

func (l *StaticLocation) Candidates(context.Context) ([]Candidate, error) {
	out := make([]Candidate, len(l.candidates))
	copy(out, l.candidates)
	return out, nil
}

// OpenFunc loads the component stored at path.
type OpenFunc func(ctx context.Context, path string) (Component, error)

// DirLocation offers every regular file in a directory. The candidate name
// is the file name without its extension.
type DirLocation struct {
	Dir      string
	Open     OpenFunc
	optional bool
}

func NewDirLocation(dir string, optional bool, open OpenFunc) *DirLocation {
	return &DirLocation{Dir: dir, Open: open, optional: optional}
}

func (l *DirLocation) Name() string   { return l.Dir }
func (l *DirLocation) Optional() bool { return l.optional }

func (l *DirLocation) Candidates(ctx context.Context) ([]Candidate, error) {
	entries, err := os.ReadDir(l.Dir)
	if err != nil {
		if os.IsNotExist(err) && l.optional {
			log.Debug("plugin directory absent", "dir", l.Dir)
			return nil, nil
		}
		return nil, fmt.Errorf("read plugin directory %s: %w", l.Dir, err)
	}

	var out []Candidate
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(l.Dir, entry.Name())
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		out = append(out, Candidate{
			Name: name,
			Open: func(ctx context.Context) (Component, error) { return l.Open(ctx, path) },
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
