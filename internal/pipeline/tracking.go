package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
)

// maxRecordedErrors bounds the errors persisted per run. Further errors are
// still counted and logged.
const maxRecordedErrors = 1000

// RunRecorder persists run progress. store.Store implements it.
type RunRecorder interface {
	UpdateRunStatus(runID, status string) error
	SaveRunError(runID string, detail model.ErrorDetail) error
	SaveRunSummary(runID string, summary model.RunSummary) error
}

// RunTracker forwards run status and errors to a RunRecorder from a
// background goroutine so workers never wait on persistence.
type RunTracker struct {
	runID    string
	recorder RunRecorder
	logger   *zap.Logger

	errors   chan model.ErrorDetail
	done     chan struct{}
	recorded atomic.Int64
	dropped  atomic.Int64
	stopOnce sync.Once
}

// NewRunTracker starts a tracker. A nil recorder makes every method a no-op.
func NewRunTracker(runID string, recorder RunRecorder, logger *zap.Logger) *RunTracker {
	t := &RunTracker{
		runID:    runID,
		recorder: recorder,
		logger:   logger,
		errors:   make(chan model.ErrorDetail, 256),
		done:     make(chan struct{}),
	}
	if recorder == nil {
		close(t.done)
		return t
	}
	go t.drain()
	return t
}

func (t *RunTracker) drain() {
	defer close(t.done)
	for detail := range t.errors {
		if err := t.recorder.SaveRunError(t.runID, detail); err != nil {
			t.logger.Warn("Failed to save run error", zap.String("run_id", t.runID), zap.Error(err))
		}
	}
}

// Status records a status transition.
func (t *RunTracker) Status(status string) {
	if t.recorder == nil {
		return
	}
	if err := t.recorder.UpdateRunStatus(t.runID, status); err != nil {
		t.logger.Warn("Failed to update run status",
			zap.String("run_id", t.runID), zap.String("status", status), zap.Error(err))
	}
}

// RecordError queues an error for persistence without blocking.
func (t *RunTracker) RecordError(stage string, err error, fatal bool) {
	if t.recorder == nil || err == nil {
		return
	}
	if t.recorded.Add(1) > maxRecordedErrors {
		t.dropped.Add(1)
		return
	}
	detail := model.ErrorDetail{
		RunID:     t.runID,
		Stage:     stage,
		Code:      errorCode(err),
		Message:   err.Error(),
		Fatal:     fatal,
		Timestamp: time.Now().UTC(),
	}
	select {
	case t.errors <- detail:
	default:
		t.dropped.Add(1)
	}
}

// Finish stores the summary and final status, then stops the tracker.
func (t *RunTracker) Finish(summary model.RunSummary, runErr error) {
	t.stopOnce.Do(func() {
		if t.recorder != nil {
			close(t.errors)
		}
	})
	<-t.done
	if t.recorder == nil {
		return
	}
	if n := t.dropped.Load(); n > 0 {
		t.logger.Info("Run errors not persisted", zap.String("run_id", t.runID), zap.Int64("count", n))
	}
	if err := t.recorder.SaveRunSummary(t.runID, summary); err != nil {
		t.logger.Warn("Failed to save run summary", zap.String("run_id", t.runID), zap.Error(err))
	}
	t.Status(finalStatus(runErr))
}

func finalStatus(err error) string {
	switch {
	case err == nil:
		return model.RunCompleted
	case isCancellation(err):
		return model.RunCancelled
	default:
		return model.RunFailed
	}
}

func errorCode(err error) string {
	var e *exerrors.Error
	if asError(err, &e) {
		return e.Code
	}
	if exerrors.IsDestination(err) {
		return "DESTINATION"
	}
	return "INTERNAL"
}
