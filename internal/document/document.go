// Package document provides a tagged view over a parsed JSON record.
package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ohler55/ojg"
	"github.com/ohler55/ojg/oj"
)

// Kind discriminates the variant held by a Value
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

var kindNames = [...]string{"null", "bool", "number", "string", "array", "object"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// Value is one node of a parsed document. The zero Value is Null.
type Value struct {
	raw any
}

// From wraps a generic decoded JSON value (nil, bool, int64, float64,
// string, []any, map[string]any).
func From(v any) Value {
	return Value{raw: v}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind {
	switch v.raw.(type) {
	case nil:
		return Null
	case bool:
		return Bool
	case string:
		return String
	case []any:
		return Array
	case map[string]any:
		return Object
	default:
		return Number
	}
}

// Raw returns the underlying decoded value.
func (v Value) Raw() any { return v.raw }

// Get looks up key in an object. ok is false for non-objects and missing keys.
func (v Value) Get(key string) (Value, bool) {
	m, isObj := v.raw.(map[string]any)
	if !isObj {
		return Value{}, false
	}
	child, ok := m[key]
	return Value{raw: child}, ok
}

// Lookup follows keys through nested objects only.
func (v Value) Lookup(keys ...string) (Value, bool) {
	cur := v
	for _, k := range keys {
		next, ok := cur.Get(k)
		if !ok {
			return Value{}, false
		}
		cur = next
	}
	return cur, true
}

// Len is the element count of an array or the key count of an object.
func (v Value) Len() int {
	switch t := v.raw.(type) {
	case []any:
		return len(t)
	case map[string]any:
		return len(t)
	}
	return 0
}

// Index returns the i-th array element.
func (v Value) Index(i int) Value {
	if a, ok := v.raw.([]any); ok && i >= 0 && i < len(a) {
		return Value{raw: a[i]}
	}
	return Value{}
}

// Keys returns object keys in sorted order.
func (v Value) Keys() []string {
	m, ok := v.raw.(map[string]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports null, the empty string, [] and {}.
func (v Value) IsEmpty() bool {
	switch t := v.raw.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return false
}

// Str returns the string held by a String value.
func (v Value) Str() (string, bool) {
	s, ok := v.raw.(string)
	return s, ok
}

// StringAt returns the string at a nested object path, or "".
func (v Value) StringAt(keys ...string) string {
	n, ok := v.Lookup(keys...)
	if !ok {
		return ""
	}
	s, _ := n.Str()
	return s
}

// Text renders v as an output cell: strings verbatim, numbers in their
// shortest form, booleans as true/false, null as "", containers as compact
// JSON with sorted keys.
func (v Value) Text() string {
	switch t := v.raw.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return formatFloat(t)
	case json.Number:
		return string(t)
	case []any, map[string]any:
		return JSON(t)
	default:
		return fmt.Sprint(t)
	}
}

// formatFloat prints f in its shortest form but keeps a fractional part on
// integral values, so 1.0 stays distinguishable from the integer 1.
func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eEIN") {
		return s
	}
	return s + ".0"
}

var compact = &ojg.Options{Sort: true}

// JSON renders a generic value as compact JSON with sorted object keys.
func JSON(v any) string {
	return oj.JSON(v, compact)
}
