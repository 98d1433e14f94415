package models

import (
	"time"
)

// Run is one execution of a per-source ingestion pipeline. The telemetry
// layer reads these rows as opaque history; the engine only appends.
type Run struct {
	ID           string     `json:"id"`
	SourceID     string     `json:"source_id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Candidates   int        `json:"candidates"`
	Created      int        `json:"created"`
	Consolidated int        `json:"consolidated"`
	Skipped      int        `json:"skipped"`
	Failed       int        `json:"failed"`
}

// OutcomeResult classifies what happened to one candidate. Skip and failure
// are deliberately distinct values so low-throughput periods are never
// confused with pipeline breakage.
type OutcomeResult string

const (
	OutcomeCreated      OutcomeResult = "created"
	OutcomeConsolidated OutcomeResult = "consolidated"
	OutcomeSkipped      OutcomeResult = "skipped"
	OutcomeFailed       OutcomeResult = "failed"
)

// CandidateOutcome records the terminal state of one candidate within a run.
type CandidateOutcome struct {
	ID         string        `json:"id"`
	RunID      string        `json:"run_id"`
	SourceID   string        `json:"source_id"`
	ExternalID string        `json:"external_id,omitempty"`
	Title      string        `json:"title,omitempty"`
	Result     OutcomeResult `json:"result"`
	Reason     string        `json:"reason,omitempty"`
	EventID    string        `json:"event_id,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
