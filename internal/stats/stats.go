// Package stats counts run progress. A Collector is passed explicitly to
// whoever updates it; there is no package-level state.
package stats

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"go-metadata-extractor/internal/model"
)

// Collector holds the counters of one run. All methods are safe for
// concurrent use and never block on I/O.
type Collector struct {
	start time.Time

	FilesSeen         atomic.Int64
	FilesProcessed    atomic.Int64
	FileErrors        atomic.Int64
	RecordsSeen       atomic.Int64
	RecordsMatched    atomic.Int64
	RecordsSkipped    atomic.Int64
	ParseErrors       atomic.Int64
	DecodeErrors      atomic.Int64
	RowsEmitted       atomic.Int64
	RowsDropped       atomic.Int64
	DestinationErrors atomic.Int64

	mu        sync.RWMutex
	providers map[uint64]struct{}
	clients   map[uint64]struct{}
}

// New returns a zeroed collector.
func New() *Collector {
	return &Collector{
		start:     time.Now(),
		providers: make(map[uint64]struct{}),
		clients:   make(map[uint64]struct{}),
	}
}

// ObserveKey records the provider and client of a matched record.
func (c *Collector) ObserveKey(key model.RoutingKey) {
	ph := xxhash.Sum64String(key.Provider)
	ch := xxhash.Sum64String(key.Provider + "." + key.Client)

	c.mu.RLock()
	_, hasP := c.providers[ph]
	_, hasC := c.clients[ch]
	c.mu.RUnlock()
	if hasP && hasC {
		return
	}

	c.mu.Lock()
	c.providers[ph] = struct{}{}
	c.clients[ch] = struct{}{}
	c.mu.Unlock()
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Elapsed           time.Duration
	FilesSeen         int64
	FilesProcessed    int64
	FileErrors        int64
	RecordsSeen       int64
	RecordsMatched    int64
	RecordsSkipped    int64
	ParseErrors       int64
	DecodeErrors      int64
	RowsEmitted       int64
	RowsDropped       int64
	DestinationErrors int64
	Providers         int
	Clients           int
}

// RecordsPerSecond is the average record throughput since start.
func (s Snapshot) RecordsPerSecond() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.RecordsSeen) / s.Elapsed.Seconds()
}

func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	providers, clients := len(c.providers), len(c.clients)
	start := c.start
	c.mu.RUnlock()

	return Snapshot{
		Elapsed:           time.Since(start),
		FilesSeen:         c.FilesSeen.Load(),
		FilesProcessed:    c.FilesProcessed.Load(),
		FileErrors:        c.FileErrors.Load(),
		RecordsSeen:       c.RecordsSeen.Load(),
		RecordsMatched:    c.RecordsMatched.Load(),
		RecordsSkipped:    c.RecordsSkipped.Load(),
		ParseErrors:       c.ParseErrors.Load(),
		DecodeErrors:      c.DecodeErrors.Load(),
		RowsEmitted:       c.RowsEmitted.Load(),
		RowsDropped:       c.RowsDropped.Load(),
		DestinationErrors: c.DestinationErrors.Load(),
		Providers:         providers,
		Clients:           clients,
	}
}

// Reset zeroes every counter and restarts the clock.
func (c *Collector) Reset() {
	for _, v := range []*atomic.Int64{
		&c.FilesSeen, &c.FilesProcessed, &c.FileErrors, &c.RecordsSeen, &c.RecordsMatched,
		&c.RecordsSkipped, &c.ParseErrors, &c.DecodeErrors, &c.RowsEmitted, &c.RowsDropped,
		&c.DestinationErrors,
	} {
		v.Store(0)
	}
	c.mu.Lock()
	c.providers = make(map[uint64]struct{})
	c.clients = make(map[uint64]struct{})
	c.start = time.Now()
	c.mu.Unlock()
}

// Report logs a snapshot every interval until ctx is done. It is meant to
// run in its own goroutine.
func (c *Collector) Report(ctx context.Context, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 || logger == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Log(logger, "Progress")
		}
	}
}

// Log writes one snapshot with process memory usage.
func (c *Collector) Log(logger *zap.Logger, msg string) {
	s := c.Snapshot()
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	logger.Info(msg,
		zap.String("elapsed", FormatElapsed(s.Elapsed)),
		zap.Int64("files_processed", s.FilesProcessed),
		zap.Int64("files_seen", s.FilesSeen),
		zap.Int64("records_seen", s.RecordsSeen),
		zap.Int64("records_matched", s.RecordsMatched),
		zap.Int64("rows_emitted", s.RowsEmitted),
		zap.Int64("parse_errors", s.ParseErrors),
		zap.Int64("decode_errors", s.DecodeErrors),
		zap.Int("providers", s.Providers),
		zap.Int("clients", s.Clients),
		zap.String("records_per_sec", fmt.Sprintf("%.0f", s.RecordsPerSecond())),
		zap.Uint64("heap_alloc_mb", m.HeapAlloc>>20),
		zap.Uint64("sys_mb", m.Sys>>20),
	)
}

// FormatElapsed renders a duration as "1h 2m 3s", "4m 5s" or "6.789s".
func FormatElapsed(d time.Duration) string {
	secs := int64(d / time.Second)
	h, m, s := secs/3600, (secs/60)%60, secs%60
	switch {
	case h > 0:
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	case m > 0:
		return fmt.Sprintf("%dm %ds", m, s)
	default:
		return fmt.Sprintf("%d.%03ds", s, (d%time.Second)/time.Millisecond)
	}
}
