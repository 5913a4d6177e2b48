// Package filter evaluates record-level predicates before extraction.
package filter

import (
	"fmt"
	"strings"

	"go-metadata-extractor/internal/document"
	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/pathexpr"
	"go-metadata-extractor/internal/walker"
)

// Reasons returned by Filter.Reason
const (
	ReasonNone         = ""
	ReasonProvider     = "provider"
	ReasonClient       = "client"
	ReasonState        = "state"
	ReasonResourceType = "resource_type"
	ReasonRequired     = "required_field"
	ReasonAbsent       = "absent_field"
	ReasonValue        = "value_constraint"
)

var (
	resourceTypePath = pathexpr.MustParse("types.resourceTypeGeneral")
	statePath        = pathexpr.MustParse("state")
)

type constraint struct {
	path     pathexpr.Expression
	expected string
}

// Filter is a compiled FilterSpec. It is immutable and safe for concurrent use.
type Filter struct {
	providers     map[string]struct{}
	clients       map[string]struct{}
	states        map[string]struct{}
	resourceTypes map[string]struct{}
	required      []pathexpr.Expression
	absent        []pathexpr.Expression
	constraints   []constraint
}

// New compiles spec. When spec.RequireAllFields is set, the top-level field
// of every extraction path becomes a required field.
func New(spec model.FilterSpec, extraction []pathexpr.Expression) (*Filter, error) {
	f := &Filter{
		providers:     toSet(spec.Providers),
		clients:       toSet(spec.Clients),
		states:        toSet(spec.States),
		resourceTypes: toSet(spec.ResourceTypes),
	}

	var err error
	if f.required, err = compile("required field", spec.RequiredFields); err != nil {
		return nil, err
	}
	if f.absent, err = compile("absent field", spec.AbsentFields); err != nil {
		return nil, err
	}

	if spec.RequireAllFields {
		seen := make(map[string]bool, len(f.required))
		for _, e := range f.required {
			seen[e.String()] = true
		}
		for _, e := range extraction {
			field := e.Field()
			if field == "" || seen[field] {
				continue
			}
			seen[field] = true
			f.required = append(f.required, pathexpr.MustParse(field))
		}
	}

	for _, vc := range spec.ValueConstraints {
		e, err := pathexpr.Parse(vc.Path)
		if err != nil {
			return nil, exerrors.Configuration(fmt.Sprintf("value constraint %q", vc.Path), err)
		}
		f.constraints = append(f.constraints, constraint{path: e, expected: vc.Expected})
	}
	return f, nil
}

// Matches reports whether a record passes every configured predicate.
func (f *Filter) Matches(doc document.Value, key model.RoutingKey) bool {
	return f.Reason(doc, key) == ReasonNone
}

// Reason returns the first failing predicate, or ReasonNone. Predicates are
// checked cheapest first and evaluation stops at the first failure.
func (f *Filter) Reason(doc document.Value, key model.RoutingKey) string {
	if !allowed(f.providers, key.Provider) {
		return ReasonProvider
	}
	if !allowed(f.clients, key.Provider+"."+key.Client) && !allowed(f.clients, key.Client) {
		return ReasonClient
	}
	if len(f.states) > 0 && !anyAllowed(f.states, doc, statePath) {
		return ReasonState
	}
	if len(f.resourceTypes) > 0 && !anyAllowed(f.resourceTypes, doc, resourceTypePath) {
		return ReasonResourceType
	}
	for _, e := range f.required {
		if !walker.Exists(doc, e) {
			return ReasonRequired
		}
	}
	for _, e := range f.absent {
		if walker.Exists(doc, e) {
			return ReasonAbsent
		}
	}
	for _, c := range f.constraints {
		if !walker.HasValue(doc, c.path, c.expected) {
			return ReasonValue
		}
	}
	return ReasonNone
}

// Empty reports whether the filter accepts every record.
func (f *Filter) Empty() bool {
	return len(f.providers) == 0 && len(f.clients) == 0 && len(f.states) == 0 &&
		len(f.resourceTypes) == 0 && len(f.required) == 0 && len(f.absent) == 0 &&
		len(f.constraints) == 0
}

func allowed(set map[string]struct{}, v string) bool {
	if len(set) == 0 {
		return true
	}
	_, ok := set[v]
	return ok
}

func anyAllowed(set map[string]struct{}, doc document.Value, e pathexpr.Expression) bool {
	for m := range walker.Walk(doc, e, walker.Scalars) {
		if _, ok := set[m.Text()]; ok {
			return true
		}
	}
	return false
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}

func compile(kind string, paths []string) ([]pathexpr.Expression, error) {
	out := make([]pathexpr.Expression, 0, len(paths))
	for _, p := range paths {
		e, err := pathexpr.Parse(p)
		if err != nil {
			return nil, exerrors.Configuration(fmt.Sprintf("%s %q", kind, p), err)
		}
		out = append(out, e)
	}
	return out, nil
}
