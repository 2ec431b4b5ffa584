package indexrun

import "time"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Triggers.
const (
	TriggerManual  = "manual"
	TriggerAPI     = "api"
	TriggerBoot    = "boot"
	TriggerWatcher = "watcher"
)

// Run is the persisted record of one indexing pipeline run.
type Run struct {
	ID            string     `json:"id"`
	Mode          string     `json:"mode"`
	Trigger       string     `json:"trigger"`
	Status        string     `json:"status"`
	Files         int        `json:"files"`
	Documents     int        `json:"documents"`
	Skipped       int        `json:"skipped"`
	Chunks        int        `json:"chunks"`
	ChunksDropped int        `json:"chunks_dropped"`
	DurationMs    int64      `json:"duration_ms"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Skips         []Skip     `json:"skips,omitempty"`
}

// Skip is a file the loader did not turn into documents.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Error  string `json:"error,omitempty"`
}
