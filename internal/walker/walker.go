// Package walker evaluates path expressions against documents, expanding
// every array met along the way.
package walker

import (
	"iter"
	"strconv"
	"strings"

	"go-metadata-extractor/internal/document"
	"go-metadata-extractor/internal/pathexpr"
)

// Mode selects what the walker emits at the end of a path
type Mode uint8

const (
	// Scalars expands terminal arrays and emits non-empty strings, numbers
	// and booleans. Objects are skipped.
	Scalars Mode = iota
	// Elements is like Scalars but also emits non-empty objects.
	Elements
	// Raw emits the terminal node as-is, skipping null, "", [] and {}.
	Raw
)

// Match is one value reached by a path
type Match struct {
	// Path is the concrete location, with array indices, joined by dots.
	Path  string
	Value document.Value
}

// Text renders the matched value as an output cell.
func (m Match) Text() string { return m.Value.Text() }

// Walk returns a lazy sequence of the nodes reached by expr. Ranging over the
// sequence again restarts the traversal. Missing keys and type mismatches end
// a branch silently.
func Walk(doc document.Value, expr pathexpr.Expression, mode Mode) iter.Seq[Match] {
	return func(yield func(Match) bool) {
		if expr.IsZero() {
			return
		}
		w := &walk{expr: expr, mode: mode, yield: yield, path: make([]string, 0, expr.Len()*2)}
		w.step(doc, 0)
	}
}

type walk struct {
	expr  pathexpr.Expression
	mode  Mode
	yield func(Match) bool
	path  []string
}

// step returns false once the consumer has stopped.
func (w *walk) step(v document.Value, depth int) bool {
	if depth == w.expr.Len() {
		return w.emit(v)
	}
	switch v.Kind() {
	case document.Object:
		seg := w.expr.Segment(depth)
		child, ok := v.Get(seg)
		if !ok {
			return true
		}
		w.path = append(w.path, seg)
		cont := w.step(child, depth+1)
		w.path = w.path[:len(w.path)-1]
		return cont
	case document.Array:
		for i := range v.Len() {
			w.path = append(w.path, strconv.Itoa(i))
			cont := w.step(v.Index(i), depth)
			w.path = w.path[:len(w.path)-1]
			if !cont {
				return false
			}
		}
	}
	return true
}

func (w *walk) emit(v document.Value) bool {
	if w.mode == Raw {
		if v.IsEmpty() {
			return true
		}
		return w.yield(Match{Path: w.joined(), Value: v})
	}

	switch v.Kind() {
	case document.Null:
		return true
	case document.String:
		if s, _ := v.Str(); s == "" {
			return true
		}
	case document.Object:
		if w.mode != Elements || v.Len() == 0 {
			return true
		}
	case document.Array:
		for i := range v.Len() {
			w.path = append(w.path, strconv.Itoa(i))
			cont := w.emit(v.Index(i))
			w.path = w.path[:len(w.path)-1]
			if !cont {
				return false
			}
		}
		return true
	}
	return w.yield(Match{Path: w.joined(), Value: v})
}

func (w *walk) joined() string {
	return strings.Join(w.path, ".")
}

// Values collects the scalar values reached by expr as text.
func Values(doc document.Value, expr pathexpr.Expression) []string {
	var out []string
	for m := range Walk(doc, expr, Scalars) {
		out = append(out, m.Text())
	}
	return out
}

// Exists reports whether expr reaches at least one non-empty node.
func Exists(doc document.Value, expr pathexpr.Expression) bool {
	for range Walk(doc, expr, Raw) {
		return true
	}
	return false
}

// HasValue reports whether any scalar reached by expr equals want.
func HasValue(doc document.Value, expr pathexpr.Expression, want string) bool {
	for m := range Walk(doc, expr, Scalars) {
		if m.Text() == want {
			return true
		}
	}
	return false
}
