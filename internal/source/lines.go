package source

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// ErrLineTooLong is reported for a record larger than the reader's limit.
// The oversized record is skipped and reading continues.
var ErrLineTooLong = errors.New("record exceeds maximum line size")

// LineReader yields one logical record per line. Blank lines are skipped.
type LineReader struct {
	r    *bufio.Reader
	max  int
	line int
	buf  []byte
}

// NewLineReader reads lines of at most maxBytes from r.
func NewLineReader(r io.Reader, maxBytes int) *LineReader {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	return &LineReader{r: bufio.NewReaderSize(r, 64<<10), max: maxBytes}
}

// Line is the 1-based number of the record last returned.
func (l *LineReader) Line() int { return l.line }

// Next returns the next non-blank line without its terminator. The returned
// slice is valid until the following call. It returns io.EOF at the end of
// input, ErrLineTooLong for an oversized record, and any read or
// decompression error as-is.
func (l *LineReader) Next() ([]byte, error) {
	for {
		l.buf = l.buf[:0]
		tooLong := false
		for {
			chunk, err := l.r.ReadSlice('\n')
			if !tooLong {
				if len(l.buf)+len(chunk) > l.max+1 {
					tooLong = true
					l.buf = l.buf[:0]
				} else {
					l.buf = append(l.buf, chunk...)
				}
			}
			if errors.Is(err, bufio.ErrBufferFull) {
				continue
			}
			if err != nil {
				if errors.Is(err, io.EOF) && (len(l.buf) > 0 || tooLong) {
					l.line++
					break
				}
				return nil, err
			}
			l.line++
			break
		}
		if tooLong {
			return nil, fmt.Errorf("line %d: %w", l.line, ErrLineTooLong)
		}
		line := bytes.TrimSpace(l.buf)
		if len(line) == 0 {
			continue
		}
		return line, nil
	}
}
