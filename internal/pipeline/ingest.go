package pipeline

import (
	"context"
	"errors"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"go-metadata-extractor/internal/document"
	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/extract"
	"go-metadata-extractor/internal/filter"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/source"
	"go-metadata-extractor/internal/stats"
	"go-metadata-extractor/pkg/logging"
)

// cancelCheckEvery is how many records a worker reads between context checks.
const cancelCheckEvery = 256

// worker owns one parser and one pending batch. It is used by a single
// goroutine.
type worker struct {
	id        int
	ex        extract.Extractor
	filter    *filter.Filter
	stats     *stats.Collector
	tracker   *RunTracker
	logger    *zap.Logger
	diag      *logging.Sampled
	tracer    trace.Tracer
	out       chan<- []model.ExtractedRow
	batchSize int
	maxLine   int

	parser   document.Parser
	batch    []model.ExtractedRow
	rejected map[string]int64
}

func (e *Engine) newWorker(id int, ex extract.Extractor, flt *filter.Filter, out chan<- []model.ExtractedRow, tracker *RunTracker, logger *zap.Logger) *worker {
	logger = logger.With(zap.Int("worker", id))
	return &worker{
		id:        id,
		ex:        ex,
		filter:    flt,
		stats:     e.stats,
		tracker:   tracker,
		logger:    logger,
		diag:      logging.NewSampled(logger, 1, 5),
		tracer:    e.tracer,
		out:       out,
		batchSize: e.opts.BatchSize,
		maxLine:   e.opts.MaxLineBytes,
		batch:     make([]model.ExtractedRow, 0, e.opts.BatchSize),
		rejected:  make(map[string]int64),
	}
}

// processFile streams one source file through parse, filter and extract.
// Rows are handed to the dispatcher whenever the batch is full and at the end
// of the file. A decompression failure abandons the rest of the file.
func (w *worker) processFile(ctx context.Context, path string) {
	ctx, span := w.tracer.Start(ctx, "extract.file", trace.WithAttributes(attribute.String("file.path", path)))
	defer span.End()

	rc, err := source.Open(path)
	if err != nil {
		w.stats.FileErrors.Add(1)
		w.logger.Warn("Failed to open source file", zap.String("path", path), zap.Error(err))
		w.tracker.RecordError("ingest", err, false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "open failed")
		return
	}
	defer rc.Close()

	var (
		lines   = source.NewLineReader(rc, w.maxLine)
		records int64
	)
	for {
		if records%cancelCheckEvery == 0 && ctx.Err() != nil {
			return
		}
		line, err := lines.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, source.ErrLineTooLong) {
			records++
			w.stats.RecordsSeen.Add(1)
			w.stats.ParseErrors.Add(1)
			w.diag.Warn("Skipping oversized record", zap.String("path", path), zap.Error(err))
			continue
		}
		if err != nil {
			err = exerrors.Decode(path, err)
			w.stats.DecodeErrors.Add(1)
			w.stats.FileErrors.Add(1)
			w.logger.Warn("Abandoning source file", zap.Int("line", lines.Line()), zap.Error(err))
			w.tracker.RecordError("ingest", err, false)
			span.RecordError(err)
			span.SetStatus(codes.Error, "decode failed")
			w.flush(ctx)
			return
		}

		records++
		w.stats.RecordsSeen.Add(1)
		w.handle(path, lines.Line(), line)

		if len(w.batch) >= w.batchSize && !w.flush(ctx) {
			return
		}
	}

	if !w.flush(ctx) {
		return
	}
	w.stats.FilesProcessed.Add(1)
	span.SetAttributes(attribute.Int64("file.records", records))
}

// handle parses one line and appends its rows to the pending batch.
func (w *worker) handle(path string, lineNo int, line []byte) {
	raw, err := w.parser.Parse(line)
	if err != nil {
		w.stats.ParseErrors.Add(1)
		w.diag.Warn("Skipping malformed record", zap.Error(exerrors.Parse(path, lineNo, err)))
		return
	}
	rec, ok := extract.NewRecord(raw)
	if !ok {
		w.stats.RecordsSkipped.Add(1)
		w.diag.Warn("Skipping record without DOI", zap.String("path", path), zap.Int("line", lineNo))
		return
	}
	if !w.admit(rec) {
		return
	}
	w.batch = w.ex.Extract(rec, w.batch)
}
