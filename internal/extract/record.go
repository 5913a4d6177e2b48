// Package extract turns filtered records into output rows. Each tool is an
// Extractor over the same record envelope.
package extract

import (
	"go-metadata-extractor/internal/document"
	"go-metadata-extractor/internal/model"
)

// Record is a parsed line with its derived identity. Doc is the node paths
// are evaluated against: the "attributes" object of a JSON:API record, or
// the record itself for flat exports.
type Record struct {
	DOI string
	Key model.RoutingKey
	Doc document.Value
	Raw document.Value
}

// NewRecord derives the envelope of a parsed line. ok is false when the
// record carries no DOI.
func NewRecord(raw document.Value) (Record, bool) {
	doc := raw
	if attrs, ok := raw.Get("attributes"); ok && attrs.Kind() == document.Object {
		doc = attrs
	}

	doi := firstString(
		raw.StringAt("id"),
		doc.StringAt("doi"),
		raw.StringAt("doi"),
	)
	if doi == "" {
		return Record{}, false
	}

	client := firstString(
		raw.StringAt("relationships", "client", "data", "id"),
		raw.StringAt("client_id"),
		doc.StringAt("clientId"),
	)

	return Record{
		DOI: doi,
		Key: model.ParseRoutingKey(client),
		Doc: doc,
		Raw: raw,
	}, true
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
