// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package realtime

import (
	"cmp"
	"slices"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// DefaultRoutes maps event-name patterns to kinds. Patterns use '.' as
// the segment separator; "**" spans segments.
var DefaultRoutes = map[Kind][]string{
	KindGeneral:  {"notification", "notification.**"},
	KindSanction: {"sanction.**"},
	KindPayment:  {"payment.**"},
}

var kindOrder = map[Kind]int{KindGeneral: 0, KindSanction: 1, KindPayment: 2}

type route struct {
	kind    Kind
	pattern string
	g       glob.Glob
}

// Router classifies event names by glob pattern. The first matching route
// wins; routes are tried general, sanction, payment, then other kinds by
// name.
type Router struct {
	routes []route
}

// NewRouter compiles patterns.
func NewRouter(patterns map[Kind][]string) (*Router, error) {
	kinds := make([]Kind, 0, len(patterns))
	for k := range patterns {
		kinds = append(kinds, k)
	}
	slices.SortFunc(kinds, func(a, b Kind) int {
		ai, aok := kindOrder[a]
		bi, bok := kindOrder[b]
		switch {
		case aok && bok:
			return cmp.Compare(ai, bi)
		case aok:
			return -1
		case bok:
			return 1
		}
		return cmp.Compare(a, b)
	})

	r := &Router{}
	for _, k := range kinds {
		for _, p := range patterns[k] {
			g, err := glob.Compile(p, '.')
			if err != nil {
				return nil, oops.Code(CodeInvalidRoute).With("kind", string(k)).With("pattern", p).Wrap(err)
			}
			r.routes = append(r.routes, route{kind: k, pattern: p, g: g})
		}
	}
	return r, nil
}

// Kind returns the kind of the named event.
func (r *Router) Kind(name string) (Kind, bool) {
	name = normalizeName(name)
	for _, rt := range r.routes {
		if rt.g.Match(name) {
			return rt.kind, true
		}
	}
	return "", false
}
