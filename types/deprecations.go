package types

import "context"

// DeprecationSite is one observed location of a deprecation warning.
type DeprecationSite struct {
	File string
	Line int
	Spec Spec
}

// Deprecations maps a warning message to the set of sites where it was
// observed. Entries accumulate across a run and are never removed while the
// run is in progress.
type Deprecations map[string]map[DeprecationSite]struct{}

// Add records one observation.
func (d Deprecations) Add(msg string, site DeprecationSite) {
	sites, ok := d[msg]
	if !ok {
		sites = make(map[DeprecationSite]struct{})
		d[msg] = sites
	}
	sites[site] = struct{}{}
}

// Merge folds other into d.
func (d Deprecations) Merge(other Deprecations) {
	for msg, sites := range other {
		for site := range sites {
			d.Add(msg, site)
		}
	}
}

type deprecationsKey struct{}

// WithDeprecations attaches a collector to ctx so unit bodies can report
// deprecation warnings through Deprecate.
func WithDeprecations(ctx context.Context, d Deprecations) context.Context {
	return context.WithValue(ctx, deprecationsKey{}, d)
}

// Deprecate records a deprecation warning observed while a unit body runs.
// It is a no-op when no collector is attached.
func Deprecate(ctx context.Context, msg, file string, line int, spec Spec) {
	d, ok := ctx.Value(deprecationsKey{}).(Deprecations)
	if !ok {
		return
	}
	d.Add(msg, DeprecationSite{File: file, Line: line, Spec: spec})
}
