package output

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
)

var columns = []string{"doi", "field_name", "subfield_path", "value", "provider_id", "client_id"}

func row(doi, value string, key model.RoutingKey) model.ExtractedRow {
	return model.ExtractedRow{DOI: doi, FieldName: "titles", SubfieldPath: "titles.0.title", Value: value, Key: key}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return records
}

var (
	keyX = model.RoutingKey{Provider: "px", Client: "cx"}
	keyY = model.RoutingKey{Provider: "py", Client: "cy"}
	keyZ = model.RoutingKey{Provider: "pz", Client: "cz"}
)

func TestHandleCacheCapacity(t *testing.T) {
	_, err := NewHandleCache(0, nil)
	require.Error(t, err)
	assert.True(t, exerrors.IsConfiguration(err))

	_, err = NewHandleCache(-3, nil)
	assert.True(t, exerrors.IsConfiguration(err))
}

func TestHandleCacheEvictionAndReopen(t *testing.T) {
	dir := t.TempDir()
	var (
		mu      sync.Mutex
		open    int
		maxOpen int
		reopens []model.RoutingKey
	)
	cache, err := NewHandleCache(2, func(key model.RoutingKey, reopen bool) (*Target, error) {
		tgt, err := openTarget(filepath.Join(dir, key.Provider, "out.csv"), model.FormatCSV, columns, reopen)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		defer mu.Unlock()
		open++
		maxOpen = max(maxOpen, open)
		if reopen {
			reopens = append(reopens, key)
		}
		tgt.onClose = func() {
			mu.Lock()
			open--
			mu.Unlock()
		}
		return tgt, nil
	})
	require.NoError(t, err)

	write := func(key model.RoutingKey, value string) {
		require.NoError(t, cache.With(key, func(tgt *Target) error {
			return tgt.enc.WriteRows([]model.ExtractedRow{row("10.1/"+value, value, key)})
		}))
		assert.LessOrEqual(t, cache.Len(), 2)
	}
	write(keyX, "x1")
	write(keyY, "y1")
	write(keyZ, "z1")
	write(keyX, "x2")
	require.NoError(t, cache.Close())

	assert.LessOrEqual(t, maxOpen, 2)
	assert.Equal(t, 0, open)
	assert.Equal(t, []model.RoutingKey{keyX}, reopens)

	stats := cache.Stats()
	assert.Equal(t, int64(4), stats.Opens)
	assert.Equal(t, int64(2), stats.Evictions)
	assert.Equal(t, 2, stats.Peak)

	records := readCSV(t, filepath.Join(dir, "px", "out.csv"))
	require.Len(t, records, 3, "header plus both writes")
	assert.Equal(t, columns, records[0])
	assert.Equal(t, "x1", records[1][3])
	assert.Equal(t, "x2", records[2][3])
}

func TestHandleCacheQueuesCloseFailures(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewHandleCache(1, func(key model.RoutingKey, reopen bool) (*Target, error) {
		return openTarget(filepath.Join(dir, key.Provider+".csv"), model.FormatCSV, columns, reopen)
	})
	require.NoError(t, err)

	tgt, err := cache.GetOrOpen(keyX)
	require.NoError(t, err)
	tgt.rows = 3
	require.NoError(t, tgt.file.Close())

	_, err = cache.GetOrOpen(keyY)
	require.NoError(t, err)

	failures := cache.TakeFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, keyX, failures[0].Key)
	assert.Equal(t, int64(3), failures[0].Rows)
	assert.Error(t, failures[0].Err)
	assert.Empty(t, cache.TakeFailures())
	assert.NoError(t, cache.Close())
}

func TestOrganizedRouter(t *testing.T) {
	root := t.TempDir()
	r, err := New(Config{
		Output: root, FileName: "fields.csv", Format: model.FormatCSV, Columns: columns,
		Organize: true, MaxOpenFiles: 1, Retry: model.DefaultRetryConfig(),
	}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.Write([]model.ExtractedRow{
		row("10.1/a", "a1", keyX), row("10.1/b", "b1", keyY), row("10.1/a", "a2", keyX),
	}))
	require.NoError(t, r.Write([]model.ExtractedRow{row("10.1/a", "a3", keyX), row("10.1/u", "u1", model.UnknownKey)}))
	require.NoError(t, r.Close())

	x := readCSV(t, filepath.Join(root, "px", "cx", "fields.csv"))
	require.Len(t, x, 4)
	assert.Equal(t, []string{"a1", "a2", "a3"}, []string{x[1][3], x[2][3], x[3][3]})
	assert.Equal(t, []string{"10.1/a", "titles", "titles.0.title", "a1", "px", "cx"}, x[1])

	y := readCSV(t, filepath.Join(root, "py", "cy", "fields.csv"))
	assert.Len(t, y, 2)
	u := readCSV(t, filepath.Join(root, "unknown", "unknown", "fields.csv"))
	assert.Len(t, u, 2)

	assert.Len(t, r.Outputs(), 3)
	stats := r.Stats()
	assert.Equal(t, int64(5), stats.Rows)
	assert.Equal(t, 1, stats.PeakHandles)
}

func TestOrganizedRerunTruncates(t *testing.T) {
	root := t.TempDir()
	cfg := Config{Output: root, Format: model.FormatCSV, Columns: columns, Organize: true, MaxOpenFiles: 4}
	for range 2 {
		r, err := NewOrganized(cfg, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, r.Write([]model.ExtractedRow{row("10.1/a", "a", keyX)}))
		require.NoError(t, r.Close())
	}
	assert.Len(t, readCSV(t, filepath.Join(root, "px", "cx", model.DefaultOutputFileName)), 2)
}

func TestOrganizedDestinationFailure(t *testing.T) {
	root := t.TempDir()
	// A regular file where the provider directory of keyY should go.
	require.NoError(t, os.WriteFile(filepath.Join(root, "py"), []byte("x"), 0o644))

	r, err := NewOrganized(Config{Output: root, Format: model.FormatCSV, Columns: columns, Organize: true, MaxOpenFiles: 2}, zap.NewNop())
	require.NoError(t, err)

	err = r.Write([]model.ExtractedRow{row("10.1/a", "a", keyX), row("10.1/b", "b", keyY)})
	require.Error(t, err)
	assert.True(t, exerrors.IsDestination(err))
	assert.False(t, exerrors.IsFatal(err))

	err = r.Write([]model.ExtractedRow{row("10.1/b", "b2", keyY), row("10.1/a", "a2", keyX)})
	assert.NoError(t, err, "failed destination is skipped silently")
	require.NoError(t, r.Close())

	assert.Len(t, readCSV(t, filepath.Join(root, "px", "cx", model.DefaultOutputFileName)), 3)
	stats := r.Stats()
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, 1, stats.Failed)
}

func TestOrganizedEvictionFailureFailsDestination(t *testing.T) {
	root := t.TempDir()
	r, err := NewOrganized(Config{Output: root, Format: model.FormatCSV, Columns: columns, Organize: true, MaxOpenFiles: 1}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.Write([]model.ExtractedRow{row("10.1/x", "x1", keyX)}))
	// x1 is still buffered; closing the file makes the flush on eviction fail.
	tgt, err := r.cache.GetOrOpen(keyX)
	require.NoError(t, err)
	require.NoError(t, tgt.file.Close())

	err = r.Write([]model.ExtractedRow{row("10.1/y", "y1", keyY)})
	require.Error(t, err)
	assert.True(t, exerrors.IsDestination(err))
	var de *exerrors.DestinationError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, keyX, de.Key)

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Rows, "x1 no longer counts as written")
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, 1, stats.Failed)

	assert.NoError(t, r.Write([]model.ExtractedRow{row("10.1/x", "x2", keyX)}), "failed destination is skipped silently")
	require.NoError(t, r.Close())

	stats = r.Stats()
	assert.Equal(t, int64(1), stats.Rows)
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, int64(2), stats.CacheOpens, "x is never reopened")
	assert.Len(t, readCSV(t, filepath.Join(root, "py", "cy", model.DefaultOutputFileName)), 2)
}

func TestOrganizedCloseFailureIsDestinationError(t *testing.T) {
	root := t.TempDir()
	r, err := NewOrganized(Config{Output: root, Format: model.FormatCSV, Columns: columns, Organize: true, MaxOpenFiles: 2}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, r.Write([]model.ExtractedRow{row("10.1/x", "x1", keyX), row("10.1/y", "y1", keyY)}))
	tgt, err := r.cache.GetOrOpen(keyX)
	require.NoError(t, err)
	require.NoError(t, tgt.file.Close())

	err = r.Close()
	require.Error(t, err)
	assert.True(t, exerrors.IsDestination(err))
	assert.False(t, exerrors.IsFatal(err))

	stats := r.Stats()
	assert.Equal(t, int64(1), stats.Rows)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestOrganizedConcurrentWritesSameKey(t *testing.T) {
	root := t.TempDir()
	r, err := New(Config{
		Output: root, Format: model.FormatCSV, Columns: columns,
		Organize: true, MaxOpenFiles: 1, Retry: model.DefaultRetryConfig(),
	}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]model.ExtractedRow, 0, 20)
			for i := range 10 {
				value := string(rune('a'+w)) + string(rune('0'+i))
				// Alternating keys forces evictions and reopens between writers.
				batch = append(batch, row("10.1/x", value, keyX), row("10.1/y", value, keyY))
			}
			assert.NoError(t, r.Write(batch))
		}()
	}
	wg.Wait()
	require.NoError(t, r.Close())

	for _, key := range []model.RoutingKey{keyX, keyY} {
		records := readCSV(t, filepath.Join(root, key.Provider, key.Client, model.DefaultOutputFileName))
		require.Len(t, records, 41, key.String())
		assert.Equal(t, columns, records[0])

		last := make(map[byte]byte)
		for _, rec := range records[1:] {
			require.Len(t, rec[3], 2)
			writer, seq := rec[3][0], rec[3][1]
			if prev, ok := last[writer]; ok {
				assert.Greater(t, seq, prev, "rows of one writer keep their order")
			}
			last[writer] = seq
		}
	}
	assert.Equal(t, int64(80), r.Stats().Rows)
}

func TestOrganizedRejectsStdout(t *testing.T) {
	_, err := NewOrganized(Config{Output: "-", Columns: columns, MaxOpenFiles: 1}, zap.NewNop())
	assert.True(t, exerrors.IsConfiguration(err))
}

func TestSafePart(t *testing.T) {
	assert.Equal(t, "a_b", safePart("a/b"))
	assert.Equal(t, "unknown", safePart(".."))
	assert.Equal(t, "unknown", safePart(""))
	assert.Equal(t, "cern", safePart("cern"))
}

func TestSingleRouter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.csv")
	r, err := New(Config{Output: path, Format: model.FormatCSV, Columns: columns}, nil)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]model.ExtractedRow, 0, 10)
			for i := range 10 {
				batch = append(batch, row("10.1/x", string(rune('a'+w))+string(rune('0'+i)), keyX))
			}
			assert.NoError(t, r.Write(batch))
		}()
	}
	wg.Wait()
	require.NoError(t, r.Close())

	records := readCSV(t, path)
	require.Len(t, records, 41)
	assert.Equal(t, columns, records[0])
	assert.Equal(t, []string{path}, r.Outputs())
	assert.Equal(t, int64(40), r.Stats().Rows)
}

func TestSingleRouterJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.jsonl")
	cols := append(append([]string{}, columns...), "role")
	r, err := NewSingle(Config{Output: path, Format: model.FormatJSONL, Columns: cols}, zap.NewNop())
	require.NoError(t, err)
	rw := row("10.1/a", "v", keyX)
	rw.Extra = []string{"Author"}
	require.NoError(t, r.Write([]model.ExtractedRow{rw}))
	require.NoError(t, r.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		`{"client_id":"cx","doi":"10.1/a","field_name":"titles","provider_id":"px","role":"Author","subfield_path":"titles.0.title","value":"v"}`+"\n",
		string(data))
}

func TestSingleRouterUnknownFormat(t *testing.T) {
	_, err := NewSingle(Config{Output: filepath.Join(t.TempDir(), "o"), Format: "xml", Columns: columns}, zap.NewNop())
	assert.True(t, exerrors.IsConfiguration(err))
}

func TestSingleRouterUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	_, err := NewSingle(Config{Output: filepath.Join(blocker, "out.csv"), Columns: columns}, zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, exerrors.ErrOutputWrite)
	assert.True(t, strings.Contains(err.Error(), "out.csv"))
}
