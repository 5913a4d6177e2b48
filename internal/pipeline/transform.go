package pipeline

import (
	"context"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/extract"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/pathexpr"
)

// defaultRelatedStates restricts the related-identifier tool when no state
// filter is given.
var defaultRelatedStates = []string{"findable"}

// NewExtractor builds the extractor selected by opts.Tool and returns the
// filter spec to use with it.
func NewExtractor(opts model.Options) (extract.Extractor, model.FilterSpec, error) {
	spec := opts.Filter
	switch opts.Tool {
	case model.ToolFields:
		paths, err := pathexpr.ParseAll(opts.Paths)
		if err != nil {
			return nil, spec, err
		}
		if len(paths) == 0 {
			return nil, spec, exerrors.Configuration("at least one field path is required", nil)
		}
		return extract.NewFieldExtractor(paths, opts.RawValues), spec, nil

	case model.ToolAffiliations:
		return extract.NewAffiliationExtractor(), spec, nil

	case model.ToolRelated:
		dois, err := extract.LoadDOISet(opts.DOIListFile)
		if err != nil {
			return nil, spec, err
		}
		if len(spec.States) == 0 {
			spec.States = defaultRelatedStates
		}
		return extract.NewRelatedExtractor(dois, opts.RelationTypes), spec, nil
	}
	return nil, spec, exerrors.Configuration("unknown tool "+string(opts.Tool), nil)
}

// flush hands the pending batch to the dispatcher. It reports false when the
// run was cancelled before the batch could be queued; the batch is dropped.
func (w *worker) flush(ctx context.Context) bool {
	if len(w.batch) == 0 {
		return true
	}
	select {
	case w.out <- w.batch:
		w.batch = make([]model.ExtractedRow, 0, w.batchSize)
		return true
	case <-ctx.Done():
		w.batch = w.batch[:0]
		return false
	}
}
