package model

import "time"

// DestinationCount is the number of rows written for one routing key
type DestinationCount struct {
	Key  RoutingKey `json:"key"`
	Rows int64      `json:"rows"`
}

// RunSummary represents the final outcome of an extraction run
type RunSummary struct {
	RunID             string             `json:"run_id"`
	Tool              Tool               `json:"tool"`
	StartedAt         time.Time          `json:"started_at"`
	Duration          time.Duration      `json:"duration"`
	Workers           int                `json:"workers"`
	FilesSeen         int64              `json:"files_seen"`
	FilesProcessed    int64              `json:"files_processed"`
	FileErrors        int64              `json:"file_errors"`
	RecordsSeen       int64              `json:"records_seen"`
	RecordsMatched    int64              `json:"records_matched"`
	RecordsSkipped    int64              `json:"records_skipped"`
	ParseErrors       int64              `json:"parse_errors"`
	DecodeErrors      int64              `json:"decode_errors"`
	RowsEmitted       int64              `json:"rows_emitted"`
	RowsDropped       int64              `json:"rows_dropped"`
	DestinationErrors int64              `json:"destination_errors"`
	Providers         int                `json:"providers"`
	Clients           int                `json:"clients"`
	TopDestinations   []DestinationCount `json:"top_destinations,omitempty"`
	Outputs           []string           `json:"outputs,omitempty"`
	Aborted           bool               `json:"aborted"`
}
