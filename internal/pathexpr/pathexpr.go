// Package pathexpr parses dotted field paths such as
// "creators.affiliation.name". A segment never indexes an array: arrays met
// during traversal are expanded by the walker.
package pathexpr

import (
	"fmt"
	"strings"

	exerrors "go-metadata-extractor/internal/errors"
)

// Expression is an immutable, parsed path
type Expression struct {
	text     string
	segments []string
}

// Parse parses a dot-separated path. Each segment is trimmed; empty paths
// and empty segments are rejected.
func Parse(text string) (Expression, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Expression{}, exerrors.Configuration("empty path expression", exerrors.ErrInvalidPath)
	}
	segments := strings.Split(text, ".")
	for i, s := range segments {
		s = strings.TrimSpace(s)
		segments[i] = s
		if s == "" {
			return Expression{}, exerrors.Configuration(
				fmt.Sprintf("path %q has an empty segment at position %d", text, i),
				exerrors.ErrInvalidPath)
		}
	}
	return Expression{text: strings.Join(segments, "."), segments: segments}, nil
}

// MustParse is like Parse but panics on error. Intended for fixed paths.
func MustParse(text string) Expression {
	e, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return e
}

// ParseList parses a comma separated list of paths, ignoring blank entries.
func ParseList(list string) ([]Expression, error) {
	var out []Expression
	for _, part := range strings.Split(list, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		e, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// ParseAll parses each path in order.
func ParseAll(paths []string) ([]Expression, error) {
	out := make([]Expression, 0, len(paths))
	for _, p := range paths {
		e, err := Parse(p)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func (e Expression) String() string { return e.text }

// Segments returns a copy of the path segments.
func (e Expression) Segments() []string {
	return append([]string(nil), e.segments...)
}

// Len is the number of segments.
func (e Expression) Len() int { return len(e.segments) }

// Segment returns the i-th segment.
func (e Expression) Segment(i int) string { return e.segments[i] }

// Field is the first segment, the top-level field name.
func (e Expression) Field() string {
	if len(e.segments) == 0 {
		return ""
	}
	return e.segments[0]
}

// IsZero reports whether e was never parsed.
func (e Expression) IsZero() bool { return len(e.segments) == 0 }
