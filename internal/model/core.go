package model

import (
	"strings"
	"time"
)

// Tool selects which extractor a run uses
type Tool string

const (
	ToolFields       Tool = "fields"
	ToolAffiliations Tool = "affiliations"
	ToolRelated      Tool = "related"
)

// Output formats
const (
	FormatCSV   = "csv"
	FormatJSONL = "jsonl"
)

// Defaults for the configuration surface
const (
	DefaultBatchSize      = 5000
	DefaultMaxOpenFiles   = 100
	DefaultStatsInterval  = 30 * time.Second
	DefaultMaxLineBytes   = 64 << 20
	DefaultOutputFileName = "extracted.csv"
	DefaultSuffix         = ".jsonl.gz"
	UnknownRoutingPart    = "unknown"
)

// RoutingKey identifies an organized output destination
type RoutingKey struct {
	Provider string `json:"provider_id" yaml:"provider_id"`
	Client   string `json:"client_id" yaml:"client_id"`
}

// UnknownKey is used when a record carries no usable client identifier
var UnknownKey = RoutingKey{Provider: UnknownRoutingPart, Client: UnknownRoutingPart}

// ParseRoutingKey splits a composite "provider.client" identifier on the
// first dot. Empty input, a missing dot or an empty side yields UnknownKey.
func ParseRoutingKey(composite string) RoutingKey {
	provider, client, ok := strings.Cut(strings.TrimSpace(composite), ".")
	if !ok || provider == "" || client == "" {
		return UnknownKey
	}
	return RoutingKey{Provider: provider, Client: client}
}

func (k RoutingKey) String() string {
	return k.Provider + "/" + k.Client
}

// ExtractedRow is one emitted output row
type ExtractedRow struct {
	DOI          string     `json:"doi"`
	FieldName    string     `json:"field_name"`
	SubfieldPath string     `json:"subfield_path"`
	Value        string     `json:"value"`
	Key          RoutingKey `json:"-"`
	// Extra holds tool-specific columns, aligned with the extractor's ExtraColumns.
	Extra []string `json:"-"`
}

// ValueConstraint requires the scalar values at Path to include Expected
type ValueConstraint struct {
	Path     string `json:"path" yaml:"path"`
	Expected string `json:"expected" yaml:"expected"`
}

// ParseValueConstraint parses "path=value". ok is false when there is no
// '=' or the path is empty.
func ParseValueConstraint(s string) (ValueConstraint, bool) {
	path, expected, ok := strings.Cut(s, "=")
	path = strings.TrimSpace(path)
	if !ok || path == "" {
		return ValueConstraint{}, false
	}
	return ValueConstraint{Path: path, Expected: expected}, true
}

// FilterSpec is the record-level predicate configuration. Empty lists are
// unconstrained.
type FilterSpec struct {
	Providers        []string          `json:"providers,omitempty" yaml:"providers"`
	Clients          []string          `json:"clients,omitempty" yaml:"clients"`
	ResourceTypes    []string          `json:"resource_types,omitempty" yaml:"resource_types"`
	States           []string          `json:"states,omitempty" yaml:"states"`
	RequiredFields   []string          `json:"required_fields,omitempty" yaml:"required_fields"`
	AbsentFields     []string          `json:"absent_fields,omitempty" yaml:"absent_fields"`
	ValueConstraints []ValueConstraint `json:"value_constraints,omitempty" yaml:"value_constraints"`
	RequireAllFields bool              `json:"require_all_fields,omitempty" yaml:"require_all_fields"`
}

// Options is the full configuration surface of a run
type Options struct {
	Tool           Tool          `json:"tool" yaml:"tool"`
	InputDir       string        `json:"input_dir" yaml:"input_dir"`
	Output         string        `json:"output" yaml:"output"`
	OutputFileName string        `json:"output_file_name,omitempty" yaml:"output_file_name"`
	Format         string        `json:"format,omitempty" yaml:"format"`
	Paths          []string      `json:"paths,omitempty" yaml:"paths"`
	Suffixes       []string      `json:"suffixes,omitempty" yaml:"suffixes"`
	RawValues      bool          `json:"raw_values,omitempty" yaml:"raw_values"`
	Filter         FilterSpec    `json:"filter" yaml:"filter"`
	Organize       bool          `json:"organize,omitempty" yaml:"organize"`
	MaxOpenFiles   int           `json:"max_open_files,omitempty" yaml:"max_open_files"`
	BatchSize      int           `json:"batch_size,omitempty" yaml:"batch_size"`
	Workers        int           `json:"workers,omitempty" yaml:"workers"`
	MaxLineBytes   int           `json:"max_line_bytes,omitempty" yaml:"max_line_bytes"`
	StatsInterval  time.Duration `json:"stats_interval,omitempty" yaml:"stats_interval"`

	// Related-identifier matcher
	DOIListFile   string   `json:"doi_list_file,omitempty" yaml:"doi_list_file"`
	RelationTypes []string `json:"relation_types,omitempty" yaml:"relation_types"`

	// Optional publishing of outputs after a successful run
	UploadContainer string `json:"upload_container,omitempty" yaml:"upload_container"`
}

// DefaultOptions returns options with every default applied
func DefaultOptions() Options {
	return Options{
		Tool:           ToolFields,
		Output:         "-",
		OutputFileName: DefaultOutputFileName,
		Format:         FormatCSV,
		Suffixes:       []string{DefaultSuffix},
		MaxOpenFiles:   DefaultMaxOpenFiles,
		BatchSize:      DefaultBatchSize,
		MaxLineBytes:   DefaultMaxLineBytes,
		StatsInterval:  DefaultStatsInterval,
	}
}
