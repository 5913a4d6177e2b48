package walker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-metadata-extractor/internal/document"
	"go-metadata-extractor/internal/pathexpr"
)

func collect(doc document.Value, path string, mode Mode) []Match {
	var out []Match
	for m := range Walk(doc, pathexpr.MustParse(path), mode) {
		out = append(out, m)
	}
	return out
}

func pathsAndValues(ms []Match) [][2]string {
	out := make([][2]string, 0, len(ms))
	for _, m := range ms {
		out = append(out, [2]string{m.Path, m.Text()})
	}
	return out
}

func TestWalkSingleAffiliation(t *testing.T) {
	doc := document.MustParse(`{"creators":[{"name":"A","affiliation":[{"name":"Uni1"}]}]}`)
	got := pathsAndValues(collect(doc, "creators.affiliation.name", Scalars))
	assert.Equal(t, [][2]string{{"creators.0.affiliation.0.name", "Uni1"}}, got)
}

func TestWalkMultiplicity(t *testing.T) {
	doc := document.MustParse(`{"creators":[
		{"affiliation":[{"name":"a"},{"name":"b"},{"name":"c"}]},
		{"affiliation":[{"name":"d"},{"name":"e"}]},
		{"affiliation":[]},
		{"name":"no affiliation"}
	]}`)
	got := pathsAndValues(collect(doc, "creators.affiliation.name", Scalars))
	assert.Equal(t, [][2]string{
		{"creators.0.affiliation.0.name", "a"},
		{"creators.0.affiliation.1.name", "b"},
		{"creators.0.affiliation.2.name", "c"},
		{"creators.1.affiliation.0.name", "d"},
		{"creators.1.affiliation.1.name", "e"},
	}, got)
}

func TestWalkNoSpuriousValues(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		path string
	}{
		{name: "missing key", doc: `{"a":{"b":1}}`, path: "a.c"},
		{name: "scalar mid path", doc: `{"a":"text"}`, path: "a.b"},
		{name: "number mid path", doc: `{"a":[1,2]}`, path: "a.b"},
		{name: "null terminal", doc: `{"a":null}`, path: "a"},
		{name: "empty string", doc: `{"a":""}`, path: "a"},
		{name: "object terminal", doc: `{"a":{"b":1}}`, path: "a"},
		{name: "numeric key is not an index", doc: `{"a":["x","y"]}`, path: "a.0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, collect(document.MustParse(tt.doc), tt.path, Scalars))
		})
	}
}

func TestWalkTerminalArrayExpansion(t *testing.T) {
	doc := document.MustParse(`{"subjects":["x","",["y",null],3,true]}`)
	got := pathsAndValues(collect(doc, "subjects", Scalars))
	assert.Equal(t, [][2]string{
		{"subjects.0", "x"},
		{"subjects.2.0", "y"},
		{"subjects.3", "3"},
		{"subjects.4", "true"},
	}, got)
}

func TestWalkNestedArrays(t *testing.T) {
	doc := document.MustParse(`{"a":[[{"b":"1"},{"b":"2"}],[{"b":"3"}]]}`)
	got := pathsAndValues(collect(doc, "a.b", Scalars))
	assert.Equal(t, [][2]string{{"a.0.0.b", "1"}, {"a.0.1.b", "2"}, {"a.1.0.b", "3"}}, got)
}

func TestWalkElements(t *testing.T) {
	doc := document.MustParse(`{"creators":[{"name":"A"},{},"B",null]}`)
	ms := collect(doc, "creators", Elements)
	require.Len(t, ms, 2)
	assert.Equal(t, "creators.0", ms[0].Path)
	assert.Equal(t, document.Object, ms[0].Value.Kind())
	assert.Equal(t, "creators.2", ms[1].Path)
	assert.Equal(t, "B", ms[1].Text())
}

func TestWalkRaw(t *testing.T) {
	doc := document.MustParse(`{"f":[{"x":1}],"e":[],"o":{},"n":null,"s":"","t":{"k":"v"}}`)
	ms := collect(doc, "f", Raw)
	require.Len(t, ms, 1)
	assert.Equal(t, "f", ms[0].Path)
	assert.Equal(t, `[{"x":1}]`, ms[0].Text())

	for _, p := range []string{"e", "o", "n", "s", "missing"} {
		assert.Empty(t, collect(doc, p, Raw), p)
	}
	assert.Equal(t, `{"k":"v"}`, collect(doc, "t", Raw)[0].Text())
}

func TestWalkIsRestartableAndStoppable(t *testing.T) {
	doc := document.MustParse(`{"a":[{"b":"1"},{"b":"2"},{"b":"3"}]}`)
	seq := Walk(doc, pathexpr.MustParse("a.b"), Scalars)

	n := 0
	for range seq {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)

	n = 0
	for range seq {
		n++
	}
	assert.Equal(t, 3, n)
}

func TestHelpers(t *testing.T) {
	doc := document.MustParse(`{"types":{"resourceTypeGeneral":"Dataset"},"subjects":[{"subject":"a"},{"subject":"b"}],"fundingReferences":[]}`)
	assert.Equal(t, []string{"a", "b"}, Values(doc, pathexpr.MustParse("subjects.subject")))
	assert.True(t, Exists(doc, pathexpr.MustParse("types")))
	assert.False(t, Exists(doc, pathexpr.MustParse("fundingReferences")))
	assert.True(t, HasValue(doc, pathexpr.MustParse("subjects.subject"), "b"))
	assert.False(t, HasValue(doc, pathexpr.MustParse("subjects.subject"), "c"))
}
