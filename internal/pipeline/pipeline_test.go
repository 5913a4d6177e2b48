package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
)

func record(doi, client, attributes string) string {
	return `{"id":"` + doi + `","attributes":` + attributes +
		`,"relationships":{"client":{"data":{"id":"` + client + `"}}}}`
}

func gzipLines(t *testing.T, path string, lines ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func baseOptions(input, output string) model.Options {
	opts := model.DefaultOptions()
	opts.InputDir = input
	opts.Output = output
	opts.Workers = 2
	opts.BatchSize = 2
	opts.StatsInterval = 0
	return opts
}

func TestRunSingleAffiliationRow(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "rows.csv")
	gzipLines(t, filepath.Join(in, "a.jsonl.gz"),
		record("10.1/a", "p.c", `{"creators":[{"name":"A","affiliation":[{"name":"Uni1"}]}]}`))

	opts := baseOptions(in, out)
	opts.Paths = []string{"creators.affiliation.name"}

	summary, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, [][]string{
		{"doi", "field_name", "subfield_path", "value", "provider_id", "client_id"},
		{"10.1/a", "creators", "creators.0.affiliation.0.name", "Uni1", "p", "c"},
	}, readCSV(t, out))
	assert.EqualValues(t, 1, summary.RecordsSeen)
	assert.EqualValues(t, 1, summary.RecordsMatched)
	assert.EqualValues(t, 1, summary.RowsEmitted)
	assert.EqualValues(t, 1, summary.FilesProcessed)
	assert.False(t, summary.Aborted)
	assert.Equal(t, []string{out}, summary.Outputs)
}

func TestRunRequiredFieldAbsent(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "rows.csv")
	gzipLines(t, filepath.Join(in, "a.jsonl.gz"),
		record("10.1/a", "p.c", `{"titles":[{"title":"T"}]}`))

	opts := baseOptions(in, out)
	opts.Paths = []string{"titles.title"}
	opts.Filter.RequiredFields = []string{"fundingReferences"}

	summary, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 0, summary.RecordsMatched)
	assert.EqualValues(t, 0, summary.RowsEmitted)
	assert.EqualValues(t, 1, summary.RecordsSkipped)
	assert.Len(t, readCSV(t, out), 1, "header only")
}

func TestRunCountsMalformedLines(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "rows.csv")
	gzipLines(t, filepath.Join(in, "a.jsonl.gz"),
		record("10.1/a", "p.c", `{"state":"findable"}`),
		`{"id": "10.1/broken", `,
		record("10.1/b", "p.c", `{"state":"draft"}`),
		`{"attributes":{"state":"findable"}}`,
	)

	opts := baseOptions(in, out)
	opts.Paths = []string{"state"}

	summary, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, summary.RecordsSeen)
	assert.EqualValues(t, 1, summary.ParseErrors)
	assert.EqualValues(t, 1, summary.RecordsSkipped, "record without DOI")
	assert.EqualValues(t, 2, summary.RowsEmitted)
	assert.Len(t, readCSV(t, out), 3)
}

func TestRunAbandonsCorruptFile(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "rows.csv")
	gzipLines(t, filepath.Join(in, "good.jsonl.gz"), record("10.1/a", "p.c", `{"state":"findable"}`))

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	for i := 0; i < 200; i++ {
		_, err := zw.Write([]byte(record("10.1/x", "p.c", `{"state":"findable"}`) + "\n"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	truncated := buf.Bytes()[:buf.Len()-12]
	require.NoError(t, os.WriteFile(filepath.Join(in, "bad.jsonl.gz"), truncated, 0o644))

	opts := baseOptions(in, out)
	opts.Paths = []string{"state"}

	summary, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, summary.FilesSeen)
	assert.EqualValues(t, 1, summary.FilesProcessed)
	assert.EqualValues(t, 1, summary.FileErrors)
	assert.EqualValues(t, 1, summary.DecodeErrors)
	assert.False(t, summary.Aborted)
}

func organizedTree(t *testing.T, root string) map[string][]string {
	t.Helper()
	tree := make(map[string][]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		sort.Strings(lines)
		tree[filepath.ToSlash(rel)] = lines
		return nil
	})
	require.NoError(t, err)
	return tree
}

func TestRunOrganizedIsIdempotent(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	for i, client := range []string{"p.x", "p.y", "q.z"} {
		var lines []string
		for _, c := range []string{client, "p.x", "q.z"} {
			lines = append(lines, record("10.1/"+c+string(rune('a'+i)), c,
				`{"subjects":[{"subject":"s1"},{"subject":"s2"}]}`))
		}
		gzipLines(t, filepath.Join(in, string(rune('a'+i)), "part.jsonl.gz"), lines...)
	}

	opts := baseOptions(in, out)
	opts.Paths = []string{"subjects.subject"}
	opts.Organize = true
	opts.MaxOpenFiles = 1
	opts.Workers = 3

	first, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	firstTree := organizedTree(t, out)

	second, err := New(opts).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, firstTree, organizedTree(t, out))
	assert.Equal(t, first.RowsEmitted, second.RowsEmitted)
	assert.EqualValues(t, 18, first.RowsEmitted)
	assert.Len(t, firstTree, 3)
	assert.Contains(t, firstTree, "p/x/"+model.DefaultOutputFileName)
	for path, lines := range firstTree {
		header := 0
		for _, l := range lines {
			if strings.HasPrefix(l, "doi,") {
				header++
			}
		}
		assert.Equal(t, 1, header, "one header in %s", path)
	}
	assert.Equal(t, 2, first.Providers)
	assert.Equal(t, 3, first.Clients)
	require.NotEmpty(t, first.TopDestinations)
	assert.EqualValues(t, 8, first.TopDestinations[0].Rows)
}

func TestRunDestinationFailureIsNotFatal(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(out, "bad"), []byte("x"), 0o644))
	gzipLines(t, filepath.Join(in, "a.jsonl.gz"),
		record("10.1/a", "bad.c", `{"state":"findable"}`),
		record("10.1/b", "good.c", `{"state":"findable"}`),
		record("10.1/c", "bad.c", `{"state":"findable"}`),
	)

	opts := baseOptions(in, out)
	opts.Paths = []string{"state"}
	opts.Organize = true
	opts.BatchSize = 1
	opts.Workers = 1

	summary, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, summary.DestinationErrors)
	assert.EqualValues(t, 1, summary.RowsEmitted)
	assert.EqualValues(t, 2, summary.RowsDropped)
	assert.FileExists(t, filepath.Join(out, "good", "c", model.DefaultOutputFileName))
}

func TestRunRelatedIdentifiers(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "related.csv")
	list := filepath.Join(t.TempDir(), "dois.csv")
	require.NoError(t, os.WriteFile(list, []byte("title,DOI\nx,https://doi.org/10.1234/ABC\n"), 0o644))

	related := `"relatedIdentifiers":[{"relatedIdentifier":"10.1234/abc","relationType":"References"}]`
	gzipLines(t, filepath.Join(in, "a.jsonl.gz"),
		record("10.1/a", "p.c", `{"state":"findable",`+related+`}`),
		record("10.1/b", "p.c", `{"state":"draft",`+related+`}`),
	)

	opts := baseOptions(in, out)
	opts.Tool = model.ToolRelated
	opts.DOIListFile = list

	summary, err := New(opts).Run(context.Background())
	require.NoError(t, err)
	rows := readCSV(t, out)
	require.Len(t, rows, 2)
	assert.Equal(t, "10.1/a", rows[1][0])
	assert.Equal(t, "10.1234/abc", rows[1][3])
	assert.Equal(t, "References", rows[1][6])
	assert.EqualValues(t, 1, summary.RecordsMatched)
}

func TestRunFatalErrors(t *testing.T) {
	t.Run("missing input", func(t *testing.T) {
		opts := baseOptions(filepath.Join(t.TempDir(), "nope"), "-")
		opts.Paths = []string{"doi"}
		summary, err := New(opts).Run(context.Background())
		assert.True(t, exerrors.IsInputNotFound(err))
		assert.True(t, summary.Aborted)
	})

	t.Run("invalid batch size", func(t *testing.T) {
		opts := baseOptions(t.TempDir(), "-")
		opts.Paths = []string{"doi"}
		opts.BatchSize = 0
		_, err := New(opts).Run(context.Background())
		assert.True(t, exerrors.IsConfiguration(err))
	})

	t.Run("bad path", func(t *testing.T) {
		opts := baseOptions(t.TempDir(), "-")
		opts.Paths = []string{"a..b"}
		_, err := New(opts).Run(context.Background())
		assert.ErrorIs(t, err, exerrors.ErrInvalidPath)
	})

	t.Run("unwritable output", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(blocker, nil, 0o644))
		opts := baseOptions(t.TempDir(), filepath.Join(blocker, "rows.csv"))
		opts.Paths = []string{"doi"}
		_, err := New(opts).Run(context.Background())
		assert.ErrorIs(t, err, exerrors.ErrOutputWrite)
	})
}

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []string
	errors   []model.ErrorDetail
	summary  *model.RunSummary
}

func (f *fakeRecorder) UpdateRunStatus(_ string, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, status)
	return nil
}

func (f *fakeRecorder) SaveRunError(_ string, detail model.ErrorDetail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, detail)
	return nil
}

func (f *fakeRecorder) SaveRunSummary(_ string, summary model.RunSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary = &summary
	return nil
}

func TestRunRecordsHistory(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "rows.csv")
	gzipLines(t, filepath.Join(in, "a.jsonl.gz"), record("10.1/a", "p.c", `{"state":"findable"}`), "nope")

	opts := baseOptions(in, out)
	opts.Paths = []string{"state"}
	rec := &fakeRecorder{}

	e := New(opts, WithRecorder(rec), WithRunID("run-1"), WithLogger(zap.NewNop()))
	summary, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-1", summary.RunID)
	assert.Equal(t, []string{model.RunRunning, model.RunCompleted}, rec.statuses)
	require.NotNil(t, rec.summary)
	assert.EqualValues(t, 1, rec.summary.RowsEmitted)
}

func TestRunCancelled(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "rows.csv")
	gzipLines(t, filepath.Join(in, "a.jsonl.gz"), record("10.1/a", "p.c", `{"state":"findable"}`))

	opts := baseOptions(in, out)
	opts.Paths = []string{"state"}
	rec := &fakeRecorder{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := New(opts, WithRecorder(rec)).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Aborted)
	assert.Equal(t, model.RunCancelled, rec.statuses[len(rec.statuses)-1])
	assert.FileExists(t, out, "router is closed even when cancelled")
}

type fakeUploader struct {
	mu    sync.Mutex
	blobs []string
}

func (f *fakeUploader) UploadFile(_ context.Context, blobName, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs = append(f.blobs, blobName)
	return "memory://" + blobName, nil
}

func TestRunPublishesOutputs(t *testing.T) {
	in, out := t.TempDir(), t.TempDir()
	gzipLines(t, filepath.Join(in, "a.jsonl.gz"), record("10.1/a", "p.c", `{"state":"findable"}`))

	opts := baseOptions(in, out)
	opts.Paths = []string{"state"}
	opts.Organize = true
	opts.UploadContainer = "exports"
	up := &fakeUploader{}

	_, err := New(opts, WithPublisher(up), WithRunID("r1")).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"r1/p/c/" + model.DefaultOutputFileName}, up.blobs)
}

func TestAggregatorTop(t *testing.T) {
	a := NewAggregator()
	x, y, z := model.RoutingKey{Provider: "p", Client: "x"}, model.RoutingKey{Provider: "p", Client: "y"}, model.RoutingKey{Provider: "q", Client: "z"}
	a.Add([]model.ExtractedRow{{Key: y}, {Key: x}, {Key: y}, {Key: z}, {Key: x}})

	top := a.Top(2)
	assert.Equal(t, []model.DestinationCount{{Key: x, Rows: 2}, {Key: y, Rows: 2}}, top)
	assert.Equal(t, 3, a.Len())

	asc := SortAggregatedResults(a.Results(), true)
	assert.Equal(t, z, asc[0].Key)
}

func TestRunTrackerCapsErrors(t *testing.T) {
	rec := &fakeRecorder{}
	tr := NewRunTracker("r", rec, zap.NewNop())
	for i := 0; i < maxRecordedErrors+10; i++ {
		tr.RecordError("ingest", exerrors.Decode("f", assert.AnError), false)
	}
	tr.Finish(model.RunSummary{}, nil)

	assert.LessOrEqual(t, len(rec.errors), maxRecordedErrors)
	assert.Equal(t, exerrors.CodeDecode, rec.errors[0].Code)
	assert.Equal(t, model.RunCompleted, rec.statuses[len(rec.statuses)-1])
}

func TestNewExtractor(t *testing.T) {
	opts := model.DefaultOptions()
	opts.Tool = model.ToolAffiliations
	ex, spec, err := NewExtractor(opts)
	require.NoError(t, err)
	assert.Equal(t, model.ToolAffiliations, ex.Tool())
	assert.Empty(t, spec.States)

	opts.Tool = model.ToolRelated
	opts.DOIListFile = filepath.Join(t.TempDir(), "missing.csv")
	_, _, err = NewExtractor(opts)
	assert.Error(t, err)

	opts.Tool = "bogus"
	_, _, err = NewExtractor(opts)
	assert.True(t, exerrors.IsConfiguration(err))
}
