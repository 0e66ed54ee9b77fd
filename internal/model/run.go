package model

import (
	"encoding/json"
	"time"
)

// RunStatus represents the current state of a document analysis run.
type RunStatus string

const (
	RunStatusReceived           RunStatus = "received"
	RunStatusPlanning           RunStatus = "planning"
	RunStatusDispatching        RunStatus = "dispatching"
	RunStatusAggregating        RunStatus = "aggregating"
	RunStatusPersisting         RunStatus = "persisting"
	RunStatusCompleted          RunStatus = "completed"
	RunStatusPartiallyCompleted RunStatus = "partially_completed"
	RunStatusFailed             RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusPartiallyCompleted, RunStatusFailed:
		return true
	}
	return false
}

// AgentRunStatus tracks a single agent invocation attempt.
// Transitions are monotonic: pending is never revisited.
type AgentRunStatus string

const (
	AgentRunPending AgentRunStatus = "pending"
	AgentRunSuccess AgentRunStatus = "success"
	AgentRunPartial AgentRunStatus = "partial"
	AgentRunFailed  AgentRunStatus = "failed"
)

// ErrorKind classifies run and agent failures.
type ErrorKind string

const (
	ErrorKindValidation            ErrorKind = "validation"
	ErrorKindInvocation            ErrorKind = "invocation"
	ErrorKindPersistence           ErrorKind = "persistence"
	ErrorKindTimeout               ErrorKind = "timeout"
	ErrorKindDependencyUnavailable ErrorKind = "dependency_unavailable"
)

// AgentRun is the append-only audit record for one agent invocation.
// A rerun of an analysis inserts new rows rather than mutating old ones,
// so the full trace across regenerations is preserved.
type AgentRun struct {
	ID           string          `json:"id"`
	DocumentID   string          `json:"document_id"`
	DealID       string          `json:"deal_id"`
	Agent        string          `json:"agent"`
	Attempt      int             `json:"attempt"`
	Status       AgentRunStatus  `json:"status"`
	InputPayload string          `json:"input_payload,omitempty"`
	RawOutput    string          `json:"raw_output,omitempty"`
	ParsedOutput json.RawMessage `json:"parsed_output,omitempty"`
	ErrorKind    ErrorKind       `json:"error_kind,omitempty"`
	Error        string          `json:"error,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// Run represents one orchestrated analysis of a document.
type Run struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	DealID     string     `json:"deal_id"`
	Status     RunStatus  `json:"status"`
	Report     *RunReport `json:"report,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// AgentStatusDetail is the per-agent line item in a run report.
type AgentStatusDetail struct {
	Agent      string         `json:"agent"`
	Status     AgentRunStatus `json:"status"`
	Confidence Confidence     `json:"confidence,omitempty"`
	ErrorKind  ErrorKind      `json:"error_kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
}

// RunReport holds the final aggregate of a run: every AnalysisResult
// produced plus per-agent status detail, so a "successful" response can
// still flag low-confidence fallback extractions.
type RunReport struct {
	Agents      []AgentStatusDetail `json:"agents"`
	Results     []AnalysisResult    `json:"results"`
	ChunkCount  int                 `json:"chunk_count"`
	TotalTokens int                 `json:"total_tokens"`
	TotalCost   float64             `json:"total_cost"`
	DurationMS  int64               `json:"duration_ms"`
	Error       string              `json:"error,omitempty"`
}
