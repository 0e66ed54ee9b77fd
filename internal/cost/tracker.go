// Package cost meters model usage. Token counts come from the
// invocation transport; the tracker never estimates them, it only
// prices what it is told.
package cost

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/dealmate/internal/model"
)

// Compute returns the USD cost of a call against a profile:
// input tokens at the input rate plus output tokens at the output rate,
// both priced per thousand tokens. Always recomputed from the profile
// passed in, never read back from a stored record.
func Compute(p model.ModelProfile, inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*p.InputPer1K/1000 + float64(outputTokens)*p.OutputPer1K/1000
}

// Record builds the UsageRecord for one model invocation, linked to the
// AgentRun that triggered it.
func Record(agentRunID string, p model.ModelProfile, inputTokens, outputTokens int, latency time.Duration, success bool) model.UsageRecord {
	return model.UsageRecord{
		ID:           uuid.New().String(),
		AgentRunID:   agentRunID,
		Model:        p.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		TotalTokens:  inputTokens + outputTokens,
		CostUSD:      Compute(p, inputTokens, outputTokens),
		LatencyMS:    latency.Milliseconds(),
		Success:      success,
		CreatedAt:    time.Now().UTC(),
	}
}

// LogUsage logs a usage record with structured fields for cost
// attribution.
func LogUsage(rec model.UsageRecord, agent string) {
	zap.L().Info("cost attribution",
		zap.String("agent", agent),
		zap.String("agent_run_id", rec.AgentRunID),
		zap.String("model", rec.Model),
		zap.Int("input_tokens", rec.InputTokens),
		zap.Int("output_tokens", rec.OutputTokens),
		zap.Float64("cost_usd", rec.CostUSD),
		zap.Int64("latency_ms", rec.LatencyMS),
		zap.Bool("success", rec.Success),
	)
}
