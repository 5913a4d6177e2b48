package model

// RunRequest is the struct for POST /api/v1/runs
type RunRequest struct {
	Tool    Tool    `json:"tool"`
	Options Options `json:"options"`
	// Timeout bounds the run, e.g. "30m". Empty means no limit.
	Timeout string `json:"timeout,omitempty"`
}
