package output

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
)

// Router delivers batches of rows to their destinations
type Router interface {
	// Write stores one batch. An error satisfying errors.IsDestination is
	// confined to the destinations it names; any other error is fatal.
	Write(rows []model.ExtractedRow) error
	// Close flushes and closes every destination.
	Close() error
	// Outputs lists the files written so far.
	Outputs() []string
	Stats() RouterStats
}

// RouterStats describes what a router did
type RouterStats struct {
	Rows        int64
	Dropped     int64
	Failed      int
	CacheOpens  int64
	Evictions   int64
	PeakHandles int
}

// Config selects and configures a router
type Config struct {
	Output       string
	FileName     string
	Format       string
	Columns      []string
	Organize     bool
	MaxOpenFiles int
	Retry        model.RetryConfig
}

// New returns the router described by cfg.
func New(cfg Config, logger *zap.Logger) (Router, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Organize {
		o, err := NewOrganized(cfg, logger)
		if err != nil {
			return nil, err
		}
		return o, nil
	}
	s, err := NewSingle(cfg, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Single writes every row into one stream.
type Single struct {
	mu     sync.Mutex
	path   string
	closer io.Closer
	enc    RowEncoder
	rows   int64
	logger *zap.Logger
}

// NewSingle creates the output file, or writes to stdout when cfg.Output
// is "-" or empty.
func NewSingle(cfg Config, logger *zap.Logger) (*Single, error) {
	var (
		w      io.Writer = os.Stdout
		closer io.Closer
		path   = cfg.Output
	)
	if path != "" && path != "-" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, exerrors.OutputWrite(path, err)
		}
		f, err := os.Create(path)
		if err != nil {
			return nil, exerrors.OutputWrite(path, err)
		}
		w, closer = f, f
	} else {
		path = "-"
	}

	enc, err := NewEncoder(cfg.Format, cfg.Columns, w)
	if err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, exerrors.Configuration("output format", err)
	}
	if err := enc.WriteHeader(); err != nil {
		if closer != nil {
			closer.Close()
		}
		return nil, exerrors.OutputWrite(path, err)
	}
	return &Single{path: path, closer: closer, enc: enc, logger: logger}, nil
}

func (s *Single) Write(rows []model.ExtractedRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.WriteRows(rows); err != nil {
		return exerrors.OutputWrite(s.path, err)
	}
	s.rows += int64(len(rows))
	return nil
}

func (s *Single) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.enc.Flush()
	if s.closer != nil {
		err = multierr.Append(err, s.closer.Close())
		s.closer = nil
	}
	if err != nil {
		return exerrors.OutputWrite(s.path, err)
	}
	return nil
}

func (s *Single) Outputs() []string {
	if s.path == "-" {
		return nil
	}
	return []string{s.path}
}

func (s *Single) Stats() RouterStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return RouterStats{Rows: s.rows}
}

// Organized writes rows to root/provider/client/<file name> through a
// HandleCache.
type Organized struct {
	root     string
	fileName string
	cache    *HandleCache
	logger   *zap.Logger

	mu      sync.Mutex
	failed  map[model.RoutingKey]bool
	paths   map[string]struct{}
	rows    int64
	dropped int64
}

// NewOrganized creates the output root and the handle cache.
func NewOrganized(cfg Config, logger *zap.Logger) (*Organized, error) {
	if cfg.Output == "" || cfg.Output == "-" {
		return nil, exerrors.Configuration("organized output needs a directory", nil)
	}
	if _, err := NewEncoder(cfg.Format, cfg.Columns, io.Discard); err != nil {
		return nil, exerrors.Configuration("output format", err)
	}
	if err := os.MkdirAll(cfg.Output, 0o755); err != nil {
		return nil, exerrors.OutputWrite(cfg.Output, err)
	}
	fileName := filepath.Base(cfg.FileName)
	if cfg.FileName == "" {
		fileName = model.DefaultOutputFileName
	}

	o := &Organized{
		root:     cfg.Output,
		fileName: fileName,
		logger:   logger,
		failed:   make(map[model.RoutingKey]bool),
		paths:    make(map[string]struct{}),
	}
	open := func(key model.RoutingKey, reopen bool) (*Target, error) {
		path := o.Path(key)
		return withRetry(cfg.Retry, func() (*Target, error) {
			return openTarget(path, cfg.Format, cfg.Columns, reopen)
		})
	}
	cache, err := NewHandleCache(cfg.MaxOpenFiles, open)
	if err != nil {
		return nil, err
	}
	o.cache = cache
	return o, nil
}

// Path is the destination file of key.
func (o *Organized) Path(key model.RoutingKey) string {
	return filepath.Join(o.root, safePart(key.Provider), safePart(key.Client), o.fileName)
}

// safePart keeps a routing key component inside its directory level.
func safePart(s string) string {
	s = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator || r == 0 {
			return '_'
		}
		return r
	}, s)
	if s == "" || s == "." || s == ".." {
		return model.UnknownRoutingPart
	}
	return s
}

// Write groups the batch by routing key, keeping row order within each key.
// A destination that fails is closed and skipped for the rest of the run;
// its error is returned as a DestinationError and other keys still get
// written.
func (o *Organized) Write(rows []model.ExtractedRow) error {
	var (
		order  []model.RoutingKey
		groups = make(map[model.RoutingKey][]model.ExtractedRow)
	)
	for _, r := range rows {
		if _, ok := groups[r.Key]; !ok {
			order = append(order, r.Key)
		}
		groups[r.Key] = append(groups[r.Key], r)
	}

	var errs error
	for _, key := range order {
		group := groups[key]

		o.mu.Lock()
		failed := o.failed[key]
		o.mu.Unlock()
		if failed {
			o.addDropped(len(group))
			continue
		}

		err := o.cache.With(key, func(t *Target) error {
			if err := t.enc.WriteRows(group); err != nil {
				return err
			}
			t.rows += int64(len(group))
			return nil
		})
		if err != nil {
			o.cache.Remove(key)
			errs = multierr.Append(errs, o.fail(key, o.Path(key), int64(len(group)), err))
		} else {
			o.mu.Lock()
			o.paths[o.Path(key)] = struct{}{}
			o.rows += int64(len(group))
			o.mu.Unlock()
		}
		// Opening key may have evicted another destination that failed to flush.
		errs = multierr.Append(errs, o.settle())
	}
	return errs
}

// fail marks key failed and counts lost as dropped. It returns a
// DestinationError the first time key fails, nil afterwards.
func (o *Organized) fail(key model.RoutingKey, path string, lost int64, err error) error {
	o.mu.Lock()
	first := !o.failed[key]
	o.failed[key] = true
	o.dropped += lost
	o.mu.Unlock()
	if !first {
		return nil
	}
	o.logger.Warn("Destination failed, skipping it for the rest of the run",
		zap.String("destination", key.String()),
		zap.String("path", path),
		zap.Error(err))
	return &exerrors.DestinationError{Key: key, Path: path, Err: err}
}

// settle moves the rows of targets that failed on close from the written
// count to the dropped count and fails their keys.
func (o *Organized) settle() error {
	var errs error
	for _, f := range o.cache.TakeFailures() {
		o.mu.Lock()
		o.rows -= f.Rows
		o.mu.Unlock()
		errs = multierr.Append(errs, o.fail(f.Key, f.Path, f.Rows, f.Err))
	}
	return errs
}

func (o *Organized) addDropped(n int) {
	o.mu.Lock()
	o.dropped += int64(n)
	o.mu.Unlock()
}

// Close flushes and closes all open destinations. Destinations that fail
// here are reported like write failures.
func (o *Organized) Close() error {
	o.cache.Purge()
	return o.settle()
}

func (o *Organized) Outputs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]string, 0, len(o.paths))
	for p := range o.paths {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (o *Organized) Stats() RouterStats {
	cs := o.cache.Stats()
	o.mu.Lock()
	defer o.mu.Unlock()
	return RouterStats{
		Rows:        o.rows,
		Dropped:     o.dropped,
		Failed:      len(o.failed),
		CacheOpens:  cs.Opens,
		Evictions:   cs.Evictions,
		PeakHandles: cs.Peak,
	}
}
