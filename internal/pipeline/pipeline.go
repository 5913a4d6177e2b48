// Package pipeline runs an extraction: it fans source files out to a bounded
// worker pool and funnels the extracted rows through a single dispatcher
// into the output router.
package pipeline

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-metadata-extractor/internal/config"
	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/extract"
	"go-metadata-extractor/internal/filter"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/output"
	"go-metadata-extractor/internal/publish"
	"go-metadata-extractor/internal/source"
	"go-metadata-extractor/internal/stats"
)

const (
	tracerName = "go-metadata-extractor/pipeline"
	topN       = 10
)

// Engine runs one extraction described by model.Options
type Engine struct {
	opts      model.Options
	runID     string
	logger    *zap.Logger
	stats     *stats.Collector
	recorder  RunRecorder
	publisher publish.Uploader
	tracer    trace.Tracer
}

// Option configures an Engine
type Option func(*Engine)

func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStats shares a collector with the caller, e.g. to read live progress.
func WithStats(c *stats.Collector) Option {
	return func(e *Engine) { e.stats = c }
}

// WithRecorder persists run status, errors and the summary.
func WithRecorder(r RunRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

func WithRunID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.runID = id
		}
	}
}

// WithPublisher uploads the outputs of a successful run when
// Options.UploadContainer is set.
func WithPublisher(p publish.Uploader) Option {
	return func(e *Engine) { e.publisher = p }
}

// New creates an engine. Options are validated by Run, not here.
func New(opts model.Options, options ...Option) *Engine {
	e := &Engine{
		opts:   opts,
		runID:  uuid.NewString(),
		logger: zap.NewNop(),
		tracer: otel.Tracer(tracerName),
	}
	for _, o := range options {
		o(e)
	}
	if e.stats == nil {
		e.stats = stats.New()
	}
	return e
}

func (e *Engine) RunID() string           { return e.runID }
func (e *Engine) Stats() *stats.Collector { return e.stats }

// Run executes the extraction. The summary is always returned, also when the
// run aborts; the error is the first fatal error or the context's error.
// Per-record and per-file failures only show up in the summary counters.
func (e *Engine) Run(ctx context.Context) (summary model.RunSummary, err error) {
	started := time.Now()
	workers := config.ResolveWorkers(e.opts.Workers)
	logger := e.logger.With(zap.String("run_id", e.runID), zap.String("tool", string(e.opts.Tool)))

	tracker := NewRunTracker(e.runID, e.recorder, logger)
	tracker.Status(model.RunRunning)

	ctx, span := e.tracer.Start(ctx, "extract.run", trace.WithAttributes(
		attribute.String("run.id", e.runID),
		attribute.String("run.tool", string(e.opts.Tool)),
		attribute.Int("run.workers", workers),
	))
	defer span.End()

	var (
		router output.Router
		agg    = NewAggregator()
	)
	defer func() {
		summary = e.summarize(started, workers, router, agg, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			tracker.RecordError("run", err, true)
			logger.Error("Run aborted", zap.Error(err))
		}
		tracker.Finish(summary, err)
	}()

	if err = config.Validate(e.opts); err != nil {
		return summary, err
	}
	ex, spec, err := NewExtractor(e.opts)
	if err != nil {
		return summary, err
	}
	flt, err := filter.New(spec, ex.Paths())
	if err != nil {
		return summary, err
	}

	files, err := source.Enumerate(e.opts.InputDir, e.opts.Suffixes, func(path string, walkErr error) {
		e.stats.FileErrors.Add(1)
		logger.Warn("Skipping unreadable input entry", zap.String("path", path), zap.Error(walkErr))
		tracker.RecordError("enumerate", walkErr, false)
	})
	if err != nil {
		return summary, err
	}

	router, err = output.New(output.Config{
		Output:       e.opts.Output,
		FileName:     e.opts.OutputFileName,
		Format:       e.opts.Format,
		Columns:      extract.Columns(ex),
		Organize:     e.opts.Organize,
		MaxOpenFiles: e.opts.MaxOpenFiles,
		Retry:        model.DefaultRetryConfig(),
	}, logger)
	if err != nil {
		return summary, err
	}

	logger.Info("Starting extraction",
		zap.String("input", e.opts.InputDir),
		zap.String("output", e.opts.Output),
		zap.Bool("organize", e.opts.Organize),
		zap.Int("workers", workers),
		zap.Int("batch_size", e.opts.BatchSize))

	reportCtx, stopReport := context.WithCancel(ctx)
	go e.stats.Report(reportCtx, e.opts.StatsInterval, logger)

	d := &dispatcher{router: router, stats: e.stats, agg: agg, tracker: tracker, logger: logger}
	runErr := e.execute(ctx, files, workers, ex, flt, d, tracker, logger)
	stopReport()

	closeErr := d.close()
	err = multierr.Append(runErr, closeErr)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		return summary, firstError(err)
	}

	if e.opts.UploadContainer != "" && e.publisher != nil {
		root := e.opts.Output
		if !e.opts.Organize {
			root = ""
		}
		if _, perr := publish.Outputs(ctx, e.publisher, e.runID, root, router.Outputs()); perr != nil {
			return summary, perr
		}
	}

	e.stats.Log(logger, "Extraction finished")
	return summary, nil
}

// execute wires the enumerator, the worker pool and the dispatcher together.
// It returns the first fatal error.
func (e *Engine) execute(
	ctx context.Context,
	files iter.Seq[string],
	workers int,
	ex extract.Extractor,
	flt *filter.Filter,
	d *dispatcher,
	tracker *RunTracker,
	logger *zap.Logger,
) error {
	cc := model.NewConcurrencyConfig(workers)
	fileCh := make(chan string, cc.FileQueueSize)
	batchCh := make(chan []model.ExtractedRow, cc.BatchQueueSize)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(fileCh)
		for path := range files {
			e.stats.FilesSeen.Add(1)
			select {
			case fileCh <- path:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		defer close(batchCh)
		var wg sync.WaitGroup
		for i := range cc.Workers {
			wg.Add(1)
			w := e.newWorker(i, ex, flt, batchCh, tracker, logger)
			go func() {
				defer wg.Done()
				defer w.logRejections()
				for path := range fileCh {
					if gctx.Err() != nil {
						return
					}
					w.processFile(gctx, path)
				}
			}()
		}
		wg.Wait()
		return nil
	})

	g.Go(func() error {
		return d.run(batchCh)
	})

	return g.Wait()
}

func (e *Engine) summarize(started time.Time, workers int, router output.Router, agg *Aggregator, err error) model.RunSummary {
	s := e.stats.Snapshot()
	summary := model.RunSummary{
		RunID:             e.runID,
		Tool:              e.opts.Tool,
		StartedAt:         started.UTC(),
		Duration:          time.Since(started),
		Workers:           workers,
		FilesSeen:         s.FilesSeen,
		FilesProcessed:    s.FilesProcessed,
		FileErrors:        s.FileErrors,
		RecordsSeen:       s.RecordsSeen,
		RecordsMatched:    s.RecordsMatched,
		RecordsSkipped:    s.RecordsSkipped,
		ParseErrors:       s.ParseErrors,
		DecodeErrors:      s.DecodeErrors,
		RowsEmitted:       s.RowsEmitted,
		RowsDropped:       s.RowsDropped,
		DestinationErrors: s.DestinationErrors,
		Providers:         s.Providers,
		Clients:           s.Clients,
		TopDestinations:   agg.Top(topN),
		Aborted:           err != nil,
	}
	if router != nil {
		summary.Outputs = router.Outputs()
	}
	return summary
}

// firstError unwraps a multierr into its first element so callers can match
// the fatal cause with errors.Is.
func firstError(err error) error {
	if errs := multierr.Errors(err); len(errs) > 0 {
		return errs[0]
	}
	return err
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func asError(err error, target **exerrors.Error) bool {
	return errors.As(err, target)
}
