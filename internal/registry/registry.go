// Package registry discovers components from ordered locations, buckets them
// by role and resolves collisions by source precedence.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/alucardeht/amgp/internal/identifier"
	"github.com/alucardeht/amgp/internal/logger"
)

var log = logger.ForComponent("registry")

// DefaultPattern is the naming convention a candidate must follow.
const DefaultPattern = "AMGP_*"

var (
	ErrNotFound            = errors.New("component not found")
	ErrDuplicateIdentifier = errors.New("duplicate component identifier")
)

// DiscoveryError locates a discovery failure.
type DiscoveryError struct {
	Location  string
	Candidate string
	Err       error
}

func (e *DiscoveryError) Error() string {
	if e.Candidate == "" {
		return fmt.Sprintf("discover %s: %v", e.Location, e.Err)
	}
	return fmt.Sprintf("discover %s/%s: %v", e.Location, e.Candidate, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Registry is built once by Discover and is read-only afterwards.
type Registry struct {
	roles  map[identifier.RoleClass][]*Record
	byID   map[identifier.ID]*Record
	byName map[string]*Record

	// rank tracks which location index owns a role/priority slot
	rank    map[rankKey]int
	closers []io.Closer
}

type rankKey struct {
	role     identifier.RoleClass
	priority int
}

type options struct {
	patterns []string
}

type Option func(*options)

// WithPatterns replaces the candidate naming convention. Patterns use
// doublestar syntax and are matched against the candidate name.
func WithPatterns(patterns ...string) Option {
	return func(o *options) { o.patterns = patterns }
}

func newRegistry() *Registry {
	return &Registry{
		roles:  make(map[identifier.RoleClass][]*Record),
		byID:   make(map[identifier.ID]*Record),
		byName: make(map[string]*Record),
		rank:   make(map[rankKey]int),
	}
}

// Discover scans locations in order. Identity failures abort discovery
// unless they come from an optional location. An optional location whose
// component reuses a name registered by an earlier location under another
// identifier is skipped too. Any other duplicate identifier aborts.
func Discover(ctx context.Context, locations []Location, opts ...Option) (*Registry, error) {
	o := options{patterns: []string{DefaultPattern}}
	for _, opt := range opts {
		opt(&o)
	}
	for _, p := range o.patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid component pattern %q", p)
		}
	}

	r := newRegistry()
	claimed := make(map[string]string)

	for idx, loc := range locations {
		candidates, err := loc.Candidates(ctx)
		if err != nil {
			r.Close()
			return nil, &DiscoveryError{Location: loc.Name(), Err: err}
		}

		for _, cand := range candidates {
			if err := ctx.Err(); err != nil {
				r.Close()
				return nil, err
			}
			if !matchesAny(o.patterns, cand.Name) {
				log.Debug("candidate ignored", "location", loc.Name(), "candidate", cand.Name)
				continue
			}
			if owner, ok := claimed[cand.Name]; ok {
				log.Info("candidate already claimed", "location", loc.Name(), "candidate", cand.Name, "owner", owner)
				continue
			}

			rec, err := load(ctx, loc, cand)
			if err != nil {
				if loc.Optional() {
					log.Warn("skipping component", "location", loc.Name(), "candidate", cand.Name, "error", err)
					continue
				}
				r.Close()
				return nil, &DiscoveryError{Location: loc.Name(), Candidate: cand.Name, Err: err}
			}
			claimed[cand.Name] = loc.Name()

			if prev := r.nameOwner(idx, rec); prev != nil && loc.Optional() {
				log.Warn("skipping component", "location", loc.Name(), "candidate", cand.Name,
					"name", rec.Name, "id", rec.ID, "registered_as", prev.ID, "owner", prev.Location,
					"error", ErrDuplicateIdentifier)
				closeQuietly(rec.Component)
				continue
			}
			if err := r.insert(idx, rec); err != nil {
				closeQuietly(rec.Component)
				r.Close()
				return nil, &DiscoveryError{Location: loc.Name(), Candidate: cand.Name, Err: err}
			}
			if c, ok := rec.Component.(io.Closer); ok {
				r.closers = append(r.closers, c)
			}
		}
	}

	for _, role := range identifier.Roles {
		if n := len(r.roles[role]); n > 0 {
			log.Info("components discovered", "role", role.String(), "count", n)
		}
	}
	return r, nil
}

func matchesAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func load(ctx context.Context, loc Location, cand Candidate) (*Record, error) {
	comp, err := cand.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	id, err := comp.Identity(ctx)
	if err != nil {
		closeQuietly(comp)
		return nil, fmt.Errorf("identity: %w", err)
	}
	parts, err := identifier.Decode(id.UID)
	if err != nil {
		closeQuietly(comp)
		return nil, fmt.Errorf("identity of %q: %w", id.Name, err)
	}
	if id.Name == "" {
		closeQuietly(comp)
		return nil, fmt.Errorf("identity of %s: empty name: %w", id.UID, identifier.ErrMalformedIdentifier)
	}

	return &Record{
		ID:        parts.ID(),
		Parts:     parts,
		Name:      id.Name,
		Location:  loc.Name(),
		Candidate: cand.Name,
		Component: comp,
	}, nil
}

func closeQuietly(c Component) {
	if closer, ok := c.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			log.Debug("close rejected component", "error", err)
		}
	}
}

// nameOwner returns the record an earlier location registered under
// rec's name with a different identifier.
func (r *Registry) nameOwner(locIdx int, rec *Record) *Record {
	prev, ok := r.byName[rec.Name]
	if !ok || prev.ID == rec.ID {
		return nil
	}
	if r.rank[rankKey{prev.Parts.Role, prev.Parts.Priority}] == locIdx {
		return nil
	}
	return prev
}

func (r *Registry) insert(locIdx int, rec *Record) error {
	if prev, ok := r.byName[rec.Name]; ok && prev.ID != rec.ID {
		return fmt.Errorf("%w: name %q is %s, already registered as %s by %s",
			ErrDuplicateIdentifier, rec.Name, rec.ID, prev.ID, prev.Location)
	}

	key := rankKey{role: rec.Parts.Role, priority: rec.Parts.Priority}
	if owner, ok := r.rank[key]; ok && owner == locIdx {
		prev := r.find(key)
		return fmt.Errorf("%w: %s (%s) and %s (%s) share role %s priority %d in one location",
			ErrDuplicateIdentifier, rec.Name, rec.ID, prev.Name, prev.ID, key.role, key.priority)
	}
	if prev := r.find(key); prev != nil {
		log.Info("component overridden", "id", rec.ID, "name", rec.Name, "location", rec.Location,
			"replaced", prev.Name, "replaced_location", prev.Location)
		r.remove(prev)
	}

	r.rank[key] = locIdx
	r.byID[rec.ID] = rec
	r.byName[rec.Name] = rec
	bucket := append(r.roles[key.role], rec)
	sort.SliceStable(bucket, func(i, j int) bool { return identifier.Compare(bucket[i].Parts, bucket[j].Parts) < 0 })
	r.roles[key.role] = bucket
	return nil
}

func (r *Registry) find(key rankKey) *Record {
	for _, rec := range r.roles[key.role] {
		if rec.Parts.Priority == key.priority {
			return rec
		}
	}
	return nil
}

func (r *Registry) remove(rec *Record) {
	bucket := r.roles[rec.Parts.Role]
	for i, existing := range bucket {
		if existing == rec {
			r.roles[rec.Parts.Role] = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	if r.byID[rec.ID] == rec {
		delete(r.byID, rec.ID)
	}
	if r.byName[rec.Name] == rec {
		delete(r.byName, rec.Name)
	}
	delete(r.rank, rankKey{rec.Parts.Role, rec.Parts.Priority})
}

func (r *Registry) Lookup(id identifier.ID) (*Record, error) {
	rec, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %s", ErrNotFound, id)
	}
	return rec, nil
}

func (r *Registry) LookupByName(name string) (*Record, error) {
	rec, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: name %q", ErrNotFound, name)
	}
	return rec, nil
}

// Resolve looks up a component by identifier when ref is a well-formed code,
// by declared name otherwise.
func (r *Registry) Resolve(ref string) (*Record, error) {
	if _, err := identifier.Decode(ref); err == nil {
		return r.Lookup(identifier.ID(ref))
	}
	return r.LookupByName(ref)
}

// AllOfRole returns the role's records in ascending priority.
func (r *Registry) AllOfRole(role identifier.RoleClass) []*Record {
	bucket := r.roles[role]
	out := make([]*Record, len(bucket))
	copy(out, bucket)
	return out
}

// All returns every record ordered by role, then priority.
func (r *Registry) All() []*Record {
	var out []*Record
	for _, role := range identifier.Roles {
		out = append(out, r.roles[role]...)
	}
	return out
}

func (r *Registry) Len() int { return len(r.byID) }

// Refresh drops every cached capability listing so the next lookup asks the
// component again.
func (r *Registry) Refresh() {
	for _, rec := range r.byID {
		if c, ok := rec.Component.(Refresher); ok {
			c.Invalidate()
		}
	}
}

// Close releases components holding external resources, including ones
// that were overridden during discovery.
func (r *Registry) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
