package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"go-metadata-extractor/internal/model"
)

// OutputManager places run outputs under a base directory, one
// subdirectory per run
type OutputManager struct {
	BaseOutputDir string
}

// NewOutputManager creates a new output manager
func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{
		BaseOutputDir: baseOutputDir,
	}
}

// RunOutputDir is the directory holding the outputs of runID.
func (om *OutputManager) RunOutputDir(runID string) string {
	return filepath.Join(om.BaseOutputDir, filepath.Base(runID))
}

// CreateRunOutputDir creates the run directory if needed
func (om *OutputManager) CreateRunOutputDir(runID string) (string, error) {
	dir := om.RunOutputDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return dir, nil
}

// OutputPath resolves where a run writes. An absolute output is kept; a
// relative one is placed inside the run directory. Organized runs get the
// run directory itself when output is empty.
func (om *OutputManager) OutputPath(runID, output string, organize bool) string {
	if filepath.IsAbs(output) {
		return output
	}
	dir := om.RunOutputDir(runID)
	if output == "" || output == "-" {
		if organize {
			return dir
		}
		return filepath.Join(dir, model.DefaultOutputFileName)
	}
	return filepath.Join(dir, filepath.Clean("/"+output))
}

// GetFileSize returns the size of a file in bytes
func (om *OutputManager) GetFileSize(filePath string) (int64, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return 0, err
	}
	return fileInfo.Size(), nil
}
