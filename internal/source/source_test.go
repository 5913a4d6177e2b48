package source

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	exerrors "go-metadata-extractor/internal/errors"
)

const payload = "{\"id\":\"10.1/a\"}\n\n{\"id\":\"10.1/b\"}\n"

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func zstdBytes(t *testing.T, s string) []byte {
	t.Helper()
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	defer enc.Close()
	return enc.EncodeAll([]byte(s), nil)
}

func lz4Bytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := lz4.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "b", "2.jsonl.gz"), nil)
	writeFile(t, filepath.Join(root, "a", "1.jsonl.gz"), nil)
	writeFile(t, filepath.Join(root, "a", "deep", "3.jsonl.gz"), nil)
	writeFile(t, filepath.Join(root, "a", "notes.txt"), nil)
	writeFile(t, filepath.Join(root, "c.jsonl.zst"), nil)

	files, err := List(root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "a", "1.jsonl.gz"),
		filepath.Join(root, "a", "deep", "3.jsonl.gz"),
		filepath.Join(root, "b", "2.jsonl.gz"),
	}, files)

	again, err := List(root, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, files, again, "order must be stable")

	all, err := List(root, KnownSuffixes, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestEnumerateInputNotFound(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "missing"), nil, nil)
	require.Error(t, err)
	assert.True(t, exerrors.IsInputNotFound(err))

	file := filepath.Join(t.TempDir(), "x.jsonl.gz")
	writeFile(t, file, nil)
	_, err = Enumerate(file, nil, nil)
	assert.True(t, exerrors.IsInputNotFound(err))
}

func TestEnumerateStopsEarly(t *testing.T) {
	root := t.TempDir()
	for _, n := range []string{"1", "2", "3"} {
		writeFile(t, filepath.Join(root, n+".jsonl.gz"), nil)
	}
	seq, err := Enumerate(root, nil, nil)
	require.NoError(t, err)
	n := 0
	for range seq {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestOpenCodecs(t *testing.T) {
	dir := t.TempDir()
	files := map[string][]byte{
		"r.jsonl.gz":  gzipBytes(t, payload),
		"r.jsonl.zst": zstdBytes(t, payload),
		"r.jsonl.lz4": lz4Bytes(t, payload),
		"r.jsonl":     []byte(payload),
	}
	for name, data := range files {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			writeFile(t, path, data)

			rc, err := Open(path)
			require.NoError(t, err)
			defer rc.Close()

			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, string(got))
			assert.NoError(t, rc.Close())
		})
	}
}

func TestOpenCorruptGzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.jsonl.gz")
	writeFile(t, path, []byte("definitely not gzip"))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestLineReader(t *testing.T) {
	lr := NewLineReader(bytes.NewBufferString("{\"a\":1}\r\n\n   \n{\"b\":2}"), 0)

	line, err := lr.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(line))
	assert.Equal(t, 1, lr.Line())

	line, err = lr.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"b":2}`, string(line))
	assert.Equal(t, 4, lr.Line())

	_, err = lr.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReaderTooLong(t *testing.T) {
	long := bytes.Repeat([]byte("x"), 100)
	input := append(append([]byte("{}\n"), long...), []byte("\n{\"ok\":true}\n")...)
	lr := NewLineReader(bytes.NewReader(input), 32)

	line, err := lr.Next()
	require.NoError(t, err)
	assert.Equal(t, "{}", string(line))

	_, err = lr.Next()
	assert.True(t, errors.Is(err, ErrLineTooLong))

	line, err = lr.Next()
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, string(line))
}
