// Package jobstore implements the Job Store (C6): the durable record of
// job lifecycle, progress counters, input snapshot, output, and the
// append-only per-record error log. The Job Store is the source of truth
// for job status; the queue (C7) is merely a delivery mechanism.
package jobstore

import (
	"encoding/json"
	"time"
)

// Status is the job lifecycle state. Transitions: Queued -> Processing ->
// {Completed | Failed}. Once terminal, a row is immutable except for
// queue-cleanup metadata.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s ends the job's lifecycle.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DisplayStatus augments Status with delivery-layer hints that are never
// persisted: "expired" (terminal row, queue has no record — retention
// eviction) and "stale" (row still processing, queue has no record —
// presumed dead worker). Computed at read time by DisplayStatusFor, never
// stored.
type DisplayStatus string

const (
	DisplayQueued     DisplayStatus = "queued"
	DisplayProcessing DisplayStatus = "processing"
	DisplayCompleted  DisplayStatus = "completed"
	DisplayFailed     DisplayStatus = "failed"
	DisplayExpired    DisplayStatus = "expired"
	DisplayStale      DisplayStatus = "stale"
)

// Progress is the counters view returned to callers.
type Progress struct {
	Total      int `json:"total"`
	Processed  int `json:"processed"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// Job is one enrichment_jobs row.
type Job struct {
	ID              string
	TenantID        string
	ProviderID      string
	Operation       string
	Status          Status
	Total           int
	Processed       int
	Successful      int
	Failed          int
	InputSnapshot   json.RawMessage
	Output          json.RawMessage
	Configuration   json.RawMessage
	ErrorDetails    *string
	CreatedAt       time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
}

// LogLevel is the severity of a job_logs entry.
type LogLevel string

const (
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// LogEntry is one append-only job_logs row.
type LogEntry struct {
	ID        string
	JobID     string
	Level     LogLevel
	Message   string
	Timestamp time.Time
}
