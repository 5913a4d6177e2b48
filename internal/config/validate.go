package config

import (
	"fmt"
	"strings"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/pathexpr"
)

// Validate rejects option sets that cannot run. Every failure is a
// configuration error; the input root's existence is checked later by the
// source enumerator.
func Validate(opts model.Options) error {
	if strings.TrimSpace(opts.InputDir) == "" {
		return exerrors.Configuration("input directory is required", nil)
	}

	switch opts.Tool {
	case model.ToolFields:
		if len(opts.Paths) == 0 {
			return exerrors.Configuration("at least one extraction path is required", nil)
		}
		if _, err := pathexpr.ParseAll(opts.Paths); err != nil {
			return err
		}
	case model.ToolAffiliations:
	case model.ToolRelated:
		if strings.TrimSpace(opts.DOIListFile) == "" {
			return exerrors.Configuration("a DOI list file is required", nil)
		}
	default:
		return exerrors.Configuration(fmt.Sprintf("unknown tool %q", opts.Tool), nil)
	}

	switch opts.Format {
	case model.FormatCSV, model.FormatJSONL:
	default:
		return exerrors.Configuration(fmt.Sprintf("unknown output format %q", opts.Format), nil)
	}

	if opts.BatchSize < 1 {
		return exerrors.Configuration(fmt.Sprintf("batch size must be at least 1, got %d", opts.BatchSize), nil)
	}
	if opts.Workers < 0 {
		return exerrors.Configuration(fmt.Sprintf("worker count cannot be negative, got %d", opts.Workers), nil)
	}
	if opts.MaxLineBytes < 0 {
		return exerrors.Configuration("max line size cannot be negative", nil)
	}

	if opts.Organize {
		if opts.MaxOpenFiles < 1 {
			return exerrors.Configuration(fmt.Sprintf("max open files must be at least 1, got %d", opts.MaxOpenFiles), nil)
		}
		if opts.Output == "" || opts.Output == "-" {
			return exerrors.Configuration("organized output needs an output directory, not stdout", nil)
		}
		if strings.ContainsAny(opts.OutputFileName, `/\`) {
			return exerrors.Configuration(fmt.Sprintf("output file name %q must not contain a path separator", opts.OutputFileName), nil)
		}
	}

	for _, vc := range opts.Filter.ValueConstraints {
		if _, err := pathexpr.Parse(vc.Path); err != nil {
			return err
		}
	}
	return nil
}

// ParseValueFilters parses repeated "path=value" flags.
func ParseValueFilters(raw []string) ([]model.ValueConstraint, error) {
	out := make([]model.ValueConstraint, 0, len(raw))
	for _, r := range raw {
		vc, ok := model.ParseValueConstraint(r)
		if !ok {
			return nil, exerrors.Configuration(fmt.Sprintf("value filter %q must look like path=value", r), nil)
		}
		out = append(out, vc)
	}
	return out, nil
}

// SplitList splits comma separated flag values, trimming blanks.
func SplitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
