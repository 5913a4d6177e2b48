// Package output routes extracted rows to a single stream or to a
// provider/client directory tree.
package output

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"

	"go-metadata-extractor/internal/document"
	"go-metadata-extractor/internal/model"
)

const writeBufferSize = 64 << 10

// RowEncoder serializes rows in one output format
type RowEncoder interface {
	WriteHeader() error
	WriteRows(rows []model.ExtractedRow) error
	Flush() error
}

// NewEncoder returns an encoder for format writing columns to w.
func NewEncoder(format string, columns []string, w io.Writer) (RowEncoder, error) {
	bw := bufio.NewWriterSize(w, writeBufferSize)
	switch format {
	case "", model.FormatCSV:
		return &csvEncoder{buf: bw, w: csv.NewWriter(bw), columns: columns}, nil
	case model.FormatJSONL:
		return &jsonlEncoder{buf: bw, columns: columns}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// Cells lays out a row in column order: the base columns then the extras.
func Cells(row model.ExtractedRow, dst []string) []string {
	dst = append(dst[:0], row.DOI, row.FieldName, row.SubfieldPath, row.Value, row.Key.Provider, row.Key.Client)
	return append(dst, row.Extra...)
}

type csvEncoder struct {
	buf     *bufio.Writer
	w       *csv.Writer
	columns []string
	cells   []string
}

func (e *csvEncoder) WriteHeader() error {
	return e.w.Write(e.columns)
}

func (e *csvEncoder) WriteRows(rows []model.ExtractedRow) error {
	for _, r := range rows {
		e.cells = Cells(r, e.cells)
		if err := e.w.Write(e.cells); err != nil {
			return err
		}
	}
	return e.w.Error()
}

func (e *csvEncoder) Flush() error {
	e.w.Flush()
	if err := e.w.Error(); err != nil {
		return err
	}
	return e.buf.Flush()
}

// jsonlEncoder writes one object per row keyed by column name.
type jsonlEncoder struct {
	buf     *bufio.Writer
	columns []string
	cells   []string
}

func (e *jsonlEncoder) WriteHeader() error { return nil }

func (e *jsonlEncoder) WriteRows(rows []model.ExtractedRow) error {
	obj := make(map[string]any, len(e.columns))
	for _, r := range rows {
		e.cells = Cells(r, e.cells)
		for i, c := range e.columns {
			if i < len(e.cells) {
				obj[c] = e.cells[i]
			}
		}
		if _, err := e.buf.WriteString(document.JSON(obj)); err != nil {
			return err
		}
		if err := e.buf.WriteByte('\n'); err != nil {
			return err
		}
	}
	return nil
}

func (e *jsonlEncoder) Flush() error { return e.buf.Flush() }
