package model

// ConcurrencyConfig is the resolved worker pool sizing of a run
type ConcurrencyConfig struct {
	Workers int `json:"workers"`
	// FileQueueSize bounds the queue of pending source files.
	FileQueueSize int `json:"file_queue_size"`
	// BatchQueueSize bounds the batches waiting for the output dispatcher.
	BatchQueueSize int `json:"batch_queue_size"`
}

// NewConcurrencyConfig sizes the queues for the given worker count
func NewConcurrencyConfig(workers int) ConcurrencyConfig {
	if workers < 1 {
		workers = 1
	}
	return ConcurrencyConfig{
		Workers:        workers,
		FileQueueSize:  workers * 2,
		BatchQueueSize: workers * 4,
	}
}
