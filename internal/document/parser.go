package document

import (
	"github.com/ohler55/ojg/oj"
)

// Parser decodes one JSON record per call. A Parser reuses its internal
// buffers and must not be shared between goroutines.
type Parser struct {
	p oj.Parser
}

// Parse decodes a single JSON value.
func (p *Parser) Parse(line []byte) (Value, error) {
	v, err := p.p.Parse(line)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: v}, nil
}

// ParseString decodes a JSON document held in a string.
func ParseString(s string) (Value, error) {
	v, err := oj.ParseString(s)
	if err != nil {
		return Value{}, err
	}
	return Value{raw: v}, nil
}

// MustParse decodes s and panics on error. Intended for tests and fixtures.
func MustParse(s string) Value {
	v, err := ParseString(s)
	if err != nil {
		panic(err)
	}
	return v
}
