package extract

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"

	"go-metadata-extractor/internal/document"
	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/pathexpr"
	"go-metadata-extractor/internal/walker"
)

var relatedPath = pathexpr.MustParse("relatedIdentifiers")

var doiPrefixes = []string{"https://doi.org/", "http://doi.org/", "doi:"}

// NormalizeDOI trims s, strips a resolver or "doi:" prefix and lowercases
// the remainder.
func NormalizeDOI(s string) string {
	s = strings.TrimSpace(s)
	for _, p := range doiPrefixes {
		if strings.HasPrefix(s, p) {
			s = s[len(p):]
			break
		}
	}
	if !norm.NFC.IsNormalString(s) {
		s = norm.NFC.String(s)
	}
	return strings.ToLower(s)
}

// DOISet is a set of normalized DOIs
type DOISet map[string]struct{}

// Contains reports whether the normalized form of doi is in the set.
func (s DOISet) Contains(doi string) bool {
	_, ok := s[NormalizeDOI(doi)]
	return ok
}

// LoadDOISet reads the "doi" column (matched case-insensitively) of a CSV
// file with a header row.
func LoadDOISet(path string) (DOISet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, exerrors.Configuration("cannot open DOI list", err)
	}
	defer f.Close()
	return ReadDOISet(f)
}

// ReadDOISet is LoadDOISet over an arbitrary reader.
func ReadDOISet(r io.Reader) (DOISet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, exerrors.Configuration("cannot read DOI list header", err)
	}
	col := -1
	for i, h := range header {
		if strings.EqualFold(strings.Trim(strings.TrimSpace(h), "\ufeff"), "doi") {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, exerrors.Configuration(fmt.Sprintf("DOI list has no doi column (header %v)", header), nil)
	}

	set := make(DOISet)
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, exerrors.Configuration("cannot read DOI list", err)
		}
		if col >= len(row) {
			continue
		}
		if doi := NormalizeDOI(row[col]); doi != "" {
			set[doi] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil, exerrors.Configuration("DOI list is empty", nil)
	}
	return set, nil
}

// RelatedExtractor emits a row for every related identifier of a record that
// points at one of the input DOIs. A record relating to itself is ignored.
type RelatedExtractor struct {
	dois          DOISet
	relationTypes map[string]struct{}
}

// NewRelatedExtractor matches against dois; a non-empty relationTypes keeps
// only those relation types, checked on the same relatedIdentifiers entry.
func NewRelatedExtractor(dois DOISet, relationTypes []string) *RelatedExtractor {
	rt := make(map[string]struct{}, len(relationTypes))
	for _, t := range relationTypes {
		if t = strings.TrimSpace(t); t != "" {
			rt[t] = struct{}{}
		}
	}
	return &RelatedExtractor{dois: dois, relationTypes: rt}
}

func (r *RelatedExtractor) Tool() model.Tool { return model.ToolRelated }

func (r *RelatedExtractor) ExtraColumns() []string {
	return []string{"relation_type", "resource_type", "resource_type_general"}
}

func (r *RelatedExtractor) Paths() []pathexpr.Expression {
	return []pathexpr.Expression{relatedPath}
}

func (r *RelatedExtractor) Extract(rec Record, dst []model.ExtractedRow) []model.ExtractedRow {
	self := NormalizeDOI(rec.DOI)
	var resourceType, resourceTypeGeneral string
	typesLoaded := false

	for entry := range walker.Walk(rec.Doc, relatedPath, walker.Elements) {
		if entry.Value.Kind() != document.Object {
			continue
		}
		target := NormalizeDOI(entry.Value.StringAt("relatedIdentifier"))
		if target == "" || target == self {
			continue
		}
		if _, ok := r.dois[target]; !ok {
			continue
		}
		relation := entry.Value.StringAt("relationType")
		if len(r.relationTypes) > 0 {
			if _, ok := r.relationTypes[relation]; !ok {
				continue
			}
		}
		if !typesLoaded {
			resourceType = rec.Doc.StringAt("types", "resourceType")
			resourceTypeGeneral = rec.Doc.StringAt("types", "resourceTypeGeneral")
			typesLoaded = true
		}
		dst = append(dst, model.ExtractedRow{
			DOI:          rec.DOI,
			FieldName:    relatedPath.Field(),
			SubfieldPath: entry.Path + ".relatedIdentifier",
			Value:        target,
			Key:          rec.Key,
			Extra:        []string{relation, resourceType, resourceTypeGeneral},
		})
	}
	return dst
}
