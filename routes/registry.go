// Package routes maps (pattern, verb) pairs to compiled script handlers.
// Registration is atomic and fail-fast: a route either passes every
// validation step and lands in the map, or the map is untouched.
package routes

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/voxfeld/scriptgate/dispatch"
)

// DefaultVerb is registered when a spec declares no verbs.
const DefaultVerb = http.MethodGet

// Spec declares one route to Add.
type Spec struct {
	Pattern string
	Verbs   []string
	Source  dispatch.Source

	// AuthSchemes and AuthPolicies name entries the auth provider must
	// already know.
	AuthSchemes  []string
	AuthPolicies []string

	// Endpoints restricts the route to named listeners. Empty means all.
	Endpoints []string

	Summary     string
	Description string

	// FailOnDuplicate turns a duplicate (pattern, verb) into an error
	// instead of a keep-existing no-op.
	FailOnDuplicate bool
}

// Entry is one registered route. Never mutated after Add returns it.
type Entry struct {
	Pattern      string
	Verbs        []string
	Unit         *dispatch.Unit
	AuthSchemes  []string
	AuthPolicies []string
	Endpoints    []Listener
	Summary      string
	Description  string
}

type routeKey struct {
	pattern string
	verb    string
}

// Registry holds the route table. Add/Remove run during configuration and
// serialize on one mutex; Lookup and request serving take the read side.
type Registry struct {
	compiler  *dispatch.Compiler
	auth      AuthProvider
	listeners []Listener
	log       commonlog.Logger

	mu      sync.RWMutex
	entries map[routeKey]*Entry
}

// Option configures a Registry.
type Option func(*Registry)

// WithAuth sets the provider consulted for route auth names. Without one,
// any referenced name fails Add.
func WithAuth(p AuthProvider) Option {
	return func(r *Registry) { r.auth = p }
}

// WithListeners declares the bind addresses endpoint bindings may target.
func WithListeners(ls ...Listener) Option {
	return func(r *Registry) { r.listeners = ls }
}

// WithRegistryLogger overrides the registry logger.
func WithRegistryLogger(log commonlog.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// New creates an empty Registry that compiles routes with the given
// compiler.
func New(compiler *dispatch.Compiler, opts ...Option) *Registry {
	r := &Registry{
		compiler: compiler,
		log:      commonlog.GetLogger("scriptgate.routes"),
		entries:  make(map[routeKey]*Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add validates, compiles, and inserts one route. The sequence is atomic:
// any failure leaves the table exactly as it was, and two concurrent Adds
// for the same key can never both succeed.
func (r *Registry) Add(ctx context.Context, spec Spec) (*Entry, error) {
	pattern := normalizePattern(spec.Pattern)
	if pattern == "" {
		return nil, &ValidationError{Field: "pattern", Reason: "pattern required"}
	}

	verbs := normalizeVerbs(spec.Verbs)

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, verb := range verbs {
		if existing, ok := r.entries[routeKey{pattern, verb}]; ok {
			if spec.FailOnDuplicate {
				return nil, &ConflictError{Pattern: pattern, Verb: verb}
			}
			// Keep-existing: the registered handler identity is
			// preserved and the caller gets the live entry.
			r.log.Infof("route %s %s already registered, keeping existing", verb, pattern)
			return existing, nil
		}
	}

	for _, name := range spec.AuthSchemes {
		if r.auth == nil || !r.auth.HasScheme(name) {
			return nil, &DependencyError{Kind: "scheme", Name: name}
		}
	}
	for _, name := range spec.AuthPolicies {
		if r.auth == nil || !r.auth.HasPolicy(name) {
			return nil, &DependencyError{Kind: "policy", Name: name}
		}
	}

	endpoints, err := r.resolveEndpoints(spec.Endpoints)
	if err != nil {
		return nil, err
	}

	unit, err := r.compiler.Compile(ctx, spec.Source)
	if err != nil {
		return nil, err
	}

	entry := &Entry{
		Pattern:      pattern,
		Verbs:        verbs,
		Unit:         unit,
		AuthSchemes:  append([]string(nil), spec.AuthSchemes...),
		AuthPolicies: append([]string(nil), spec.AuthPolicies...),
		Endpoints:    endpoints,
		Summary:      spec.Summary,
		Description:  spec.Description,
	}
	for _, verb := range verbs {
		r.entries[routeKey{pattern, verb}] = entry
	}

	r.log.Infof("registered %s route %s %s", spec.Source.Lang, strings.Join(verbs, ","), pattern)
	return entry, nil
}

func (r *Registry) resolveEndpoints(names []string) ([]Listener, error) {
	var out []Listener
	for _, name := range names {
		l, err := ParseListener(name)
		if err != nil {
			return nil, &ValidationError{Field: "endpoints", Reason: err.Error()}
		}
		matched := false
		for _, configured := range r.listeners {
			if configured.Matches(l) {
				matched = true
				break
			}
		}
		if !matched {
			return nil, &ValidationError{Field: "endpoints", Reason: "no configured listener matches " + name}
		}
		out = append(out, l)
	}
	return out, nil
}

// Exists reports whether an entry exists for every requested verb.
func (r *Registry) Exists(pattern string, verbs ...string) bool {
	pattern = normalizePattern(pattern)
	vs := normalizeVerbs(verbs)

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, verb := range vs {
		if _, ok := r.entries[routeKey{pattern, verb}]; !ok {
			return false
		}
	}
	return true
}

// Lookup returns the entry for (pattern, verb), if any.
func (r *Registry) Lookup(pattern, verb string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[routeKey{normalizePattern(pattern), strings.ToUpper(verb)}]
	return e, ok
}

// Remove unmaps the pattern under the given verbs (all registered verbs when
// none are named) and returns the number of keys removed.
func (r *Registry) Remove(pattern string, verbs ...string) int {
	pattern = normalizePattern(pattern)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	if len(verbs) == 0 {
		for key := range r.entries {
			if key.pattern == pattern {
				delete(r.entries, key)
				removed++
			}
		}
		return removed
	}
	for _, verb := range normalizeVerbs(verbs) {
		key := routeKey{pattern, verb}
		if _, ok := r.entries[key]; ok {
			delete(r.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of registered (pattern, verb) keys.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Entries returns a snapshot of all distinct route entries, ordered by
// pattern then first verb.
func (r *Registry) Entries() []*Entry {
	r.mu.RLock()
	seen := make(map[*Entry]bool)
	var out []*Entry
	for _, e := range r.entries {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Verbs[0] < out[j].Verbs[0]
	})
	return out
}

func normalizePattern(pattern string) string {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return ""
	}
	if !strings.HasPrefix(pattern, "/") {
		pattern = "/" + pattern
	}
	if len(pattern) > 1 {
		pattern = strings.TrimRight(pattern, "/")
	}
	return pattern
}

func normalizeVerbs(verbs []string) []string {
	if len(verbs) == 0 {
		return []string{DefaultVerb}
	}
	out := make([]string, 0, len(verbs))
	seen := make(map[string]bool)
	for _, v := range verbs {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return []string{DefaultVerb}
	}
	return out
}
