package pipeline

import (
	"go.uber.org/zap"

	"go-metadata-extractor/internal/extract"
	"go-metadata-extractor/internal/filter"
)

// admit applies the record filter. Rejections are tallied by reason.
func (w *worker) admit(rec extract.Record) bool {
	if reason := w.filter.Reason(rec.Doc, rec.Key); reason != filter.ReasonNone {
		w.stats.RecordsSkipped.Add(1)
		w.rejected[reason]++
		return false
	}
	w.stats.RecordsMatched.Add(1)
	w.stats.ObserveKey(rec.Key)
	return true
}

func (w *worker) logRejections() {
	if len(w.rejected) == 0 {
		return
	}
	fields := make([]zap.Field, 0, len(w.rejected))
	for reason, n := range w.rejected {
		fields = append(fields, zap.Int64(reason, n))
	}
	w.logger.Debug("Records rejected by filter", fields...)
}
