package model

import (
	"time"
)

// RunStatus represents the lifecycle of one reconciliation run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one recorded invocation of the reconciliation tick.
type Run struct {
	ID        string     `json:"id"`
	Status    RunStatus  `json:"status"`
	Report    *RunReport `json:"report,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Failure records one per-record failure within a run.
type Failure struct {
	RecordID string `json:"record_id"`
	Reason   string `json:"reason"`
}

// PassResult holds the outcome of one pass within a run.
type PassResult struct {
	Name     string `json:"name"`
	Duration int64  `json:"duration_ms"`
	Error    string `json:"error,omitempty"`
}

// RunReport aggregates per-record outcomes for one run. Counts track
// transitions performed this run, not CRM totals.
type RunReport struct {
	Skipped  int `json:"skipped"`
	Sent     int `json:"sent"`
	Enriched int `json:"enriched"`
	Linked   int `json:"linked"`
	Failed   int `json:"failed"`

	Failures []Failure    `json:"failures,omitempty"`
	Passes   []PassResult `json:"passes,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// AddFailure records a failed record transition.
func (r *RunReport) AddFailure(recordID, reason string) {
	r.Failed++
	r.Failures = append(r.Failures, Failure{RecordID: recordID, Reason: reason})
}
