package extract

import (
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/pathexpr"
	"go-metadata-extractor/internal/walker"
)

// BaseColumns is the column layout shared by every tool
var BaseColumns = []string{"doi", "field_name", "subfield_path", "value", "provider_id", "client_id"}

// Extractor produces rows for one record. Implementations are immutable and
// shared by all workers.
type Extractor interface {
	// Tool names the extractor.
	Tool() model.Tool
	// ExtraColumns names the tool-specific columns appended to BaseColumns.
	ExtraColumns() []string
	// Paths lists the extraction paths, used by require-all-fields.
	Paths() []pathexpr.Expression
	// Extract appends the rows of rec to dst.
	Extract(rec Record, dst []model.ExtractedRow) []model.ExtractedRow
}

// Columns is the full header of an extractor's output.
func Columns(e Extractor) []string {
	cols := make([]string, 0, len(BaseColumns)+len(e.ExtraColumns()))
	cols = append(cols, BaseColumns...)
	return append(cols, e.ExtraColumns()...)
}

// FieldExtractor emits one row per value reached by each user path.
type FieldExtractor struct {
	paths []pathexpr.Expression
	mode  walker.Mode
}

// NewFieldExtractor extracts scalars, or whole terminal nodes when raw is set.
func NewFieldExtractor(paths []pathexpr.Expression, raw bool) *FieldExtractor {
	mode := walker.Scalars
	if raw {
		mode = walker.Raw
	}
	return &FieldExtractor{paths: paths, mode: mode}
}

func (f *FieldExtractor) Tool() model.Tool              { return model.ToolFields }
func (f *FieldExtractor) ExtraColumns() []string        { return nil }
func (f *FieldExtractor) Paths() []pathexpr.Expression { return f.paths }

func (f *FieldExtractor) Extract(rec Record, dst []model.ExtractedRow) []model.ExtractedRow {
	for _, p := range f.paths {
		field := p.Field()
		for m := range walker.Walk(rec.Doc, p, f.mode) {
			dst = append(dst, model.ExtractedRow{
				DOI:          rec.DOI,
				FieldName:    field,
				SubfieldPath: m.Path,
				Value:        m.Text(),
				Key:          rec.Key,
			})
		}
	}
	return dst
}
