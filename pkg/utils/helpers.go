package utils

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ParseDuration parses a duration string like "5m". An empty string means
// no limit and returns 0.
func ParseDuration(d string) (time.Duration, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(d)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", d, err)
	}
	if duration < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", d)
	}
	return duration, nil
}

// RelativeOutputs renders output paths relative to root for display. Paths
// outside root are returned unchanged.
func RelativeOutputs(root string, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if root != "" {
			if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
				p = filepath.ToSlash(rel)
			}
		}
		out = append(out, p)
	}
	return out
}
