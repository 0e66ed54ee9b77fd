package model

import "time"

// UseCase is a named category of model invocation used to select a
// ModelProfile (e.g. "cim_analysis", "risk_analysis").
type UseCase string

const (
	UseCaseCIMAnalysis  UseCase = "cim_analysis"
	UseCaseRiskAnalysis UseCase = "risk_analysis"
)

// ModelProfile describes a callable backing model, including pricing
// in USD per thousand tokens.
type ModelProfile struct {
	ID              string  `json:"id" yaml:"id"`
	Provider        string  `json:"provider" yaml:"provider"`
	Model           string  `json:"model" yaml:"model"`
	InputPer1K      float64 `json:"input_per_1k" yaml:"input_per_1k"`
	OutputPer1K     float64 `json:"output_per_1k" yaml:"output_per_1k"`
	ContextWindow   int     `json:"context_window" yaml:"context_window"`
	Vision          bool    `json:"vision" yaml:"vision"`
	FunctionCalling bool    `json:"function_calling" yaml:"function_calling"`
	Active          bool    `json:"active" yaml:"active"`
}

// ModelSelection binds a (user, deal, use case) scope to a profile.
// At most one row exists per scope; rows with both UserID and DealID
// empty and Default set are the use case's global default.
type ModelSelection struct {
	ID        string  `json:"id" yaml:"id"`
	UserID    string  `json:"user_id,omitempty" yaml:"user_id"`
	DealID    string  `json:"deal_id,omitempty" yaml:"deal_id"`
	UseCase   UseCase `json:"use_case" yaml:"use_case"`
	ProfileID string  `json:"profile_id" yaml:"profile_id"`
	Default   bool    `json:"default" yaml:"default"`
}

// UsageRecord meters one model invocation. Cost is always recomputed
// from token counts and the profile price at invocation time, never
// carried forward from a stale price. Used for accounting only; the
// orchestration logic never reads it back.
type UsageRecord struct {
	ID           string    `json:"id"`
	AgentRunID   string    `json:"agent_run_id"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	TotalTokens  int       `json:"total_tokens"`
	CostUSD      float64   `json:"cost_usd"`
	LatencyMS    int64     `json:"latency_ms"`
	Success      bool      `json:"success"`
	CreatedAt    time.Time `json:"created_at"`
}
