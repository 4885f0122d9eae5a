package routes

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/voxfeld/scriptgate/dispatch"
	"github.com/voxfeld/scriptgate/pool"
)

// ServeHTTP resolves the request against the route table and invokes the
// compiled handler. Script failures stay confined to the one request.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	path := normalizePattern(req.URL.Path)
	verb := strings.ToUpper(req.Method)

	entry, params, found, verbMismatch := r.match(path, verb)
	if !found {
		if verbMismatch {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		http.NotFound(w, req)
		return
	}

	ex := &dispatch.Exchange{Request: req, Response: w, Params: params}
	if err := entry.Unit.Handler()(req.Context(), ex); err != nil {
		r.fail(w, entry, err)
	}
}

func (r *Registry) fail(w http.ResponseWriter, entry *Entry, err error) {
	var scriptErr *dispatch.ScriptError
	switch {
	case errors.As(err, &scriptErr):
		r.log.Errorf("route %s: %v", entry.Pattern, scriptErr)
		http.Error(w, "script error", http.StatusInternalServerError)
	case errors.Is(err, pool.ErrClosed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		r.log.Errorf("route %s unavailable: %v", entry.Pattern, err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	default:
		r.log.Errorf("route %s: %v", entry.Pattern, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// match resolves path and verb against the table. Patterns are literal
// segments with optional {name} captures. A literal pattern always wins over
// a capture pattern, and capture candidates are tried in pattern order, so
// the same request resolves to the same entry on every call.
func (r *Registry) match(path, verb string) (entry *Entry, params map[string]string, found, verbMismatch bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[routeKey{path, verb}]; ok {
		return e, map[string]string{}, true, false
	}

	var candidates []routeKey
	for key := range r.entries {
		if key.pattern == path {
			verbMismatch = true
			continue
		}
		if strings.Contains(key.pattern, "{") {
			candidates = append(candidates, key)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].pattern != candidates[j].pattern {
			return candidates[i].pattern < candidates[j].pattern
		}
		return candidates[i].verb < candidates[j].verb
	})

	for _, key := range candidates {
		p, ok := matchPattern(key.pattern, path)
		if !ok {
			continue
		}
		if key.verb != verb {
			verbMismatch = true
			continue
		}
		return r.entries[key], p, true, false
	}
	return nil, nil, false, verbMismatch
}

func matchPattern(pattern, path string) (map[string]string, bool) {
	if pattern == path {
		return map[string]string{}, true
	}
	if !strings.Contains(pattern, "{") {
		return nil, false
	}

	pSegs := strings.Split(strings.TrimPrefix(pattern, "/"), "/")
	segs := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(pSegs) != len(segs) {
		return nil, false
	}

	params := make(map[string]string)
	for i, ps := range pSegs {
		if strings.HasPrefix(ps, "{") && strings.HasSuffix(ps, "}") {
			name := ps[1 : len(ps)-1]
			if name == "" || segs[i] == "" {
				return nil, false
			}
			params[name] = segs[i]
			continue
		}
		if ps != segs[i] {
			return nil, false
		}
	}
	return params, true
}
