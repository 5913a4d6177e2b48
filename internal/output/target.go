package output

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
)

// Target is an open destination file with its buffered encoder
type Target struct {
	Path     string
	file     *os.File
	enc      RowEncoder
	lastUsed time.Time
	onClose  func()
	// rows accepted since the target was opened
	rows int64
}

// openTarget opens path for writing. A fresh target truncates any file left
// by an earlier run; a reopened one appends. The header is written whenever
// the file starts out empty.
func openTarget(path, format string, columns []string, reopen bool) (*Target, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	flags := os.O_CREATE | os.O_WRONLY
	if reopen {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	enc, err := NewEncoder(format, columns, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.Size() == 0 {
		if err := enc.WriteHeader(); err != nil {
			f.Close()
			return nil, err
		}
	}
	return &Target{Path: path, file: f, enc: enc, lastUsed: time.Now()}, nil
}

// Close flushes buffered rows before closing the file.
func (t *Target) Close() error {
	if t.onClose != nil {
		defer t.onClose()
	}
	return multierr.Append(t.enc.Flush(), t.file.Close())
}
