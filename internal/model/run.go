package model

import "time"

// RunStatus describes the lifecycle of a batch enrichment run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// EnrichmentRun records one batch pass over the POI set.
type EnrichmentRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	Processed  int        `json:"processed"`
	Enriched   int        `json:"enriched"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}
