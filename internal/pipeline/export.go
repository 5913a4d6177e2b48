package pipeline

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
	"go-metadata-extractor/internal/output"
	"go-metadata-extractor/internal/stats"
)

// dispatcher is the only goroutine that touches the router. Batches are
// written in arrival order, so rows of one worker keep their source order.
type dispatcher struct {
	router  output.Router
	stats   *stats.Collector
	agg     *Aggregator
	tracker *RunTracker
	logger  *zap.Logger
}

// run drains batches until the channel is closed. Batches queued before a
// cancellation are still written. It returns on the first fatal error.
func (d *dispatcher) run(batches <-chan []model.ExtractedRow) error {
	for batch := range batches {
		if err := d.write(batch); err != nil {
			return err
		}
	}
	return nil
}

func (d *dispatcher) write(batch []model.ExtractedRow) error {
	d.agg.Add(batch)
	err := d.router.Write(batch)
	d.syncRows()
	return d.classify("output", err)
}

// close closes the router. Rows lost while flushing on close move from the
// emitted to the dropped count.
func (d *dispatcher) close() error {
	err := d.router.Close()
	d.syncRows()
	return d.classify("close", err)
}

func (d *dispatcher) syncRows() {
	rs := d.router.Stats()
	d.stats.RowsEmitted.Store(rs.Rows)
	d.stats.RowsDropped.Store(rs.Dropped)
}

// classify counts and records destination failures and returns the first
// error that is not confined to a destination.
func (d *dispatcher) classify(stage string, err error) error {
	var fatal error
	for _, e := range multierr.Errors(err) {
		if exerrors.IsDestination(e) {
			d.stats.DestinationErrors.Add(1)
			d.tracker.RecordError(stage, e, false)
			continue
		}
		if fatal == nil {
			fatal = e
		}
	}
	if fatal != nil {
		d.logger.Error("Output failed", zap.String("stage", stage), zap.Error(fatal))
	}
	return fatal
}
