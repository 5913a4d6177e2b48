// Package source finds compressed record files and opens them as streams.
package source

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
)

// Recognised record file suffixes
const (
	SuffixGzip  = ".jsonl.gz"
	SuffixZstd  = ".jsonl.zst"
	SuffixLZ4   = ".jsonl.lz4"
	SuffixPlain = ".jsonl"
)

// KnownSuffixes lists every suffix Open can decode
var KnownSuffixes = []string{SuffixGzip, SuffixZstd, SuffixLZ4, SuffixPlain}

// SkipFunc is called for entries that cannot be read during enumeration
type SkipFunc func(path string, err error)

// Enumerate validates root and returns the record files below it in lexical
// order. Only names ending in one of suffixes are yielded; an empty list
// means the default ".jsonl.gz". Unreadable entries are reported to onSkip
// and skipped.
func Enumerate(root string, suffixes []string, onSkip SkipFunc) (iter.Seq[string], error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, exerrors.InputNotFound(root, err)
	}
	if !info.IsDir() {
		return nil, exerrors.InputNotFound(root, nil)
	}
	if len(suffixes) == 0 {
		suffixes = []string{model.DefaultSuffix}
	}
	if onSkip == nil {
		onSkip = func(string, error) {}
	}

	return func(yield func(string) bool) {
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				onSkip(path, err)
				if d != nil && d.IsDir() && path != root {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !hasSuffix(d.Name(), suffixes) {
				return nil
			}
			if !d.Type().IsRegular() {
				if fi, statErr := os.Stat(path); statErr != nil || !fi.Mode().IsRegular() {
					if statErr != nil {
						onSkip(path, statErr)
					}
					return nil
				}
			}
			if !yield(path) {
				return fs.SkipAll
			}
			return nil
		})
	}, nil
}

// List collects Enumerate into a slice.
func List(root string, suffixes []string, onSkip SkipFunc) ([]string, error) {
	seq, err := Enumerate(root, suffixes, onSkip)
	if err != nil {
		return nil, err
	}
	var files []string
	for p := range seq {
		files = append(files, p)
	}
	return files, nil
}

func hasSuffix(name string, suffixes []string) bool {
	for _, s := range suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}
