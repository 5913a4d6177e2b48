package extract

import (
	"go-metadata-extractor/internal/document"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/pathexpr"
	"go-metadata-extractor/internal/walker"
)

const (
	categoryCreator     = "creator"
	categoryContributor = "contributor"
	creatorRole         = "Author"
)

var (
	creatorsPath     = pathexpr.MustParse("creators")
	contributorsPath = pathexpr.MustParse("contributors")
	affiliationPath  = pathexpr.MustParse("affiliation")
)

// AffiliationExtractor emits one row per affiliation of every creator and
// contributor. The value is the affiliation name.
type AffiliationExtractor struct{}

func NewAffiliationExtractor() *AffiliationExtractor { return &AffiliationExtractor{} }

func (a *AffiliationExtractor) Tool() model.Tool { return model.ToolAffiliations }

func (a *AffiliationExtractor) ExtraColumns() []string {
	return []string{"category", "role", "person_name", "affiliation_id", "affiliation_scheme"}
}

func (a *AffiliationExtractor) Paths() []pathexpr.Expression {
	return []pathexpr.Expression{creatorsPath, contributorsPath}
}

func (a *AffiliationExtractor) Extract(rec Record, dst []model.ExtractedRow) []model.ExtractedRow {
	dst = a.people(rec, creatorsPath, categoryCreator, dst)
	return a.people(rec, contributorsPath, categoryContributor, dst)
}

func (a *AffiliationExtractor) people(rec Record, path pathexpr.Expression, category string, dst []model.ExtractedRow) []model.ExtractedRow {
	for person := range walker.Walk(rec.Doc, path, walker.Elements) {
		if person.Value.Kind() != document.Object {
			continue
		}
		name := personName(person.Value)
		role := creatorRole
		if category == categoryContributor {
			role = person.Value.StringAt("contributorType")
		}

		for aff := range walker.Walk(person.Value, affiliationPath, walker.Elements) {
			var affName, affID, scheme, sub string
			switch aff.Value.Kind() {
			case document.Object:
				affName = aff.Value.StringAt("name")
				affID = aff.Value.StringAt("affiliationIdentifier")
				scheme = aff.Value.StringAt("affiliationIdentifierScheme")
				sub = person.Path + "." + aff.Path + ".name"
			default:
				affName = aff.Text()
				sub = person.Path + "." + aff.Path
			}
			if affName == "" && affID == "" {
				continue
			}
			dst = append(dst, model.ExtractedRow{
				DOI:          rec.DOI,
				FieldName:    path.Field(),
				SubfieldPath: sub,
				Value:        affName,
				Key:          rec.Key,
				Extra:        []string{category, role, name, affID, scheme},
			})
		}
	}
	return dst
}

func personName(p document.Value) string {
	if n := p.StringAt("name"); n != "" {
		return n
	}
	given, family := p.StringAt("givenName"), p.StringAt("familyName")
	switch {
	case given != "" && family != "":
		return family + ", " + given
	case family != "":
		return family
	}
	return given
}
