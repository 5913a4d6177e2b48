package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-metadata-extractor/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)

	opts := model.DefaultOptions()
	opts.InputDir = "/data"
	opts.Paths = []string{"creators.name"}
	require.NoError(t, s.SaveRun("r1", opts))

	run, err := s.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, model.RunPending, run.Status)
	assert.Equal(t, model.ToolFields, run.Tool)
	assert.Equal(t, opts.Paths, run.Options.Paths)
	assert.Equal(t, opts.StatsInterval, run.Options.StatsInterval)
	assert.Nil(t, run.Summary)

	require.NoError(t, s.UpdateRunStatus("r1", model.RunRunning))
	require.NoError(t, s.SaveRunSummary("r1", model.RunSummary{RunID: "r1", RowsEmitted: 42, Duration: time.Second}))
	require.NoError(t, s.UpdateRunStatus("r1", model.RunCompleted))

	run, err = s.GetRun("r1")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)
	require.NotNil(t, run.Summary)
	assert.EqualValues(t, 42, run.Summary.RowsEmitted)
	assert.False(t, run.UpdatedAt.Before(run.CreatedAt))
}

func TestRunErrors(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveRun("r1", model.DefaultOptions()))

	require.NoError(t, s.SaveRunError("r1", model.ErrorDetail{Stage: "ingest", Code: "DECODE", Message: "bad gzip"}))
	require.NoError(t, s.SaveRunError("r1", model.ErrorDetail{Stage: "run", Code: "OUTPUT_WRITE", Message: "disk full", Fatal: true}))
	require.NoError(t, s.SaveRunError("other", model.ErrorDetail{Stage: "x"}))

	details, err := s.GetRunErrors("r1")
	require.NoError(t, err)
	require.Len(t, details, 2)
	assert.Equal(t, "ingest", details[0].Stage)
	assert.False(t, details[0].Fatal)
	assert.True(t, details[1].Fatal)
	assert.Equal(t, "r1", details[1].RunID)
}

func TestListRuns(t *testing.T) {
	s := openTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveRun(id, model.DefaultOptions()))
		time.Sleep(2 * time.Millisecond)
	}

	runs, err := s.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID)

	runs, err = s.ListRuns(2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestUnknownRun(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetRun("missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, s.UpdateRunStatus("missing", model.RunFailed), ErrRunNotFound)
}
