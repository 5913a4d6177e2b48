package utils

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("")
	require.NoError(t, err)
	assert.Zero(t, d)

	d, err = ParseDuration(" 90s ")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = ParseDuration("soon")
	assert.Error(t, err)
	_, err = ParseDuration("-1m")
	assert.Error(t, err)
}

func TestRelativeOutputs(t *testing.T) {
	root := filepath.Join("out")
	got := RelativeOutputs(root, []string{
		filepath.Join(root, "p", "c", "x.csv"),
		filepath.Join("elsewhere", "y.csv"),
	})
	assert.Equal(t, []string{"p/c/x.csv", filepath.Join("elsewhere", "y.csv")}, got)
}

func TestOutputPath(t *testing.T) {
	base := t.TempDir()
	om := NewOutputManager(base)

	abs := filepath.Join(t.TempDir(), "rows.csv")
	assert.Equal(t, abs, om.OutputPath("r1", abs, false))
	assert.Equal(t, filepath.Join(base, "r1", "rows.csv"), om.OutputPath("r1", "rows.csv", false))
	assert.Equal(t, filepath.Join(base, "r1", "rows.csv"), om.OutputPath("r1", "../../rows.csv", false))
	assert.Equal(t, filepath.Join(base, "r1"), om.OutputPath("r1", "", true))
	assert.Equal(t, filepath.Join(base, "r1", "extracted.csv"), om.OutputPath("r1", "-", false))

	dir, err := om.CreateRunOutputDir("r1")
	require.NoError(t, err)
	assert.DirExists(t, dir)
}
