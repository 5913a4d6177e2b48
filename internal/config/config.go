// Package config assembles run options from defaults, an optional config
// file and environment overrides, and validates them before any work starts.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	exerrors "go-metadata-extractor/internal/errors"
	"go-metadata-extractor/internal/model"
)

// Environment overrides
const (
	EnvWorkers      = "EXTRACTOR_WORKERS"
	EnvBatchSize    = "EXTRACTOR_BATCH_SIZE"
	EnvMaxOpenFiles = "EXTRACTOR_MAX_OPEN_FILES"
)

// Load returns the default options overlaid with the config file at path
// (if any) and then with environment overrides. YAML and JSON files are
// both accepted; unknown keys are rejected.
func Load(path string) (model.Options, error) {
	opts := model.DefaultOptions()
	if path != "" {
		if err := loadFile(path, &opts); err != nil {
			return opts, err
		}
	}
	if err := ApplyEnv(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}

func loadFile(path string, opts *model.Options) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
	default:
		return exerrors.Configuration(fmt.Sprintf("unsupported config file %q", path), nil)
	}
	f, err := os.Open(path)
	if err != nil {
		return exerrors.Configuration("cannot open config file", err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f, yaml.DisallowUnknownField()).Decode(opts); err != nil {
		return exerrors.Configuration(fmt.Sprintf("cannot decode config file %q", path), err)
	}
	return nil
}

// ApplyEnv overrides worker count, batch size and handle capacity from the
// environment.
func ApplyEnv(opts *model.Options) error {
	for name, dst := range map[string]*int{
		EnvWorkers:      &opts.Workers,
		EnvBatchSize:    &opts.BatchSize,
		EnvMaxOpenFiles: &opts.MaxOpenFiles,
	} {
		v, ok, err := getEnvInt(name)
		if err != nil {
			return exerrors.Configuration(fmt.Sprintf("environment variable %s", name), err)
		}
		if ok {
			*dst = v
		}
	}
	return nil
}

func getEnvInt(key string) (int, bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

// ResolveWorkers returns n, or the number of usable CPUs when n is 0.
func ResolveWorkers(n int) int {
	if n > 0 {
		return n
	}
	return max(runtime.GOMAXPROCS(0), 1)
}
