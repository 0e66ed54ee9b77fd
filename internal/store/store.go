// Package store persists documents, runs, and the append-only agent
// audit trail. Two implementations exist: SQLite for local single-user
// operation and Postgres for shared deployments.
package store

import (
	"context"

	"github.com/sells-group/dealmate/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     model.RunStatus `json:"status,omitempty"`
	DocumentID string          `json:"document_id,omitempty"`
	DealID     string          `json:"deal_id,omitempty"`
	Limit      int             `json:"limit,omitempty"`
	Offset     int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the analysis orchestrator.
type Store interface {
	// Documents
	CreateDocument(ctx context.Context, doc *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)

	// Runs
	CreateRun(ctx context.Context, documentID, dealID string) (*model.Run, error)
	UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error
	UpdateRunReport(ctx context.Context, runID string, status model.RunStatus, report *model.RunReport) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Agent runs. The trail is append-only: a retry or a rerun inserts a
	// new row with a higher attempt, it never rewrites an old one.
	// CompleteAgentRun only finalizes a pending row in place.
	AppendAgentRun(ctx context.Context, ar *model.AgentRun) error
	CompleteAgentRun(ctx context.Context, ar *model.AgentRun) error
	ListAgentRuns(ctx context.Context, documentID string) ([]model.AgentRun, error)

	// Analysis results, one live row per (document, kind). Regeneration
	// replaces the row; history stays in agent_runs.
	UpsertAnalysisResult(ctx context.Context, res *model.AnalysisResult) error
	ListAnalysisResults(ctx context.Context, documentID string) ([]model.AnalysisResult, error)

	// Usage accounting
	AppendUsageRecords(ctx context.Context, recs []model.UsageRecord) error
	ListUsageRecords(ctx context.Context, agentRunID string) ([]model.UsageRecord, error)

	// Model configuration
	UpsertModelProfile(ctx context.Context, p model.ModelProfile) error
	UpsertModelSelection(ctx context.Context, sel model.ModelSelection) error
	ListModelProfiles(ctx context.Context) ([]model.ModelProfile, error)
	ListModelSelections(ctx context.Context) ([]model.ModelSelection, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
