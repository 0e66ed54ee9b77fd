// Package agent defines the uniform execution contract shared by all
// analysis agents and the runner that drives one invocation through
// model selection, transport, and response parsing.
//
// Agents are stateless values: all variance comes from the ExecContext
// and the model's own non-determinism, so executing the same context
// twice is safe and idempotent from the agent's point of view.
package agent

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dealmate/internal/model"
	"github.com/sells-group/dealmate/internal/parse"
	"github.com/sells-group/dealmate/pkg/anthropic"
)

// defaultMaxTokens bounds agent output size.
const defaultMaxTokens = 3000

// temperature is kept low: extraction tasks want determinism, not
// creativity.
const temperature = 0.1

// PriorResults carries upstream agent outputs into the consistency
// agent's context.
type PriorResults struct {
	FinancialMetrics []model.FinancialMetric
	Memo             *model.InvestmentMemo
}

// ExecContext bundles everything one agent invocation needs. Chunks are
// read-only and may be shared across concurrently executing agents.
type ExecContext struct {
	DocumentID string
	DealID     string
	Chunks     []model.Chunk
	Profile    model.ModelProfile
	Prior      *PriorResults
}

// Agent is the single polymorphic capability every analysis variant
// implements. Implementations hold no mutable state.
type Agent interface {
	// Name identifies the variant in AgentRun records and logs.
	Name() string
	// UseCase selects the model configuration category.
	UseCase() model.UseCase
	// Kind tags the structured output this agent produces.
	Kind() model.ResultKind
	// SectionHint optionally biases chunk labeling toward a document
	// section. Empty means no preference.
	SectionHint() string
	// MaxTokens bounds the model's output for this agent.
	MaxTokens() int64
	// BuildPrompt renders the full prompt for the given context. An
	// error here is structural (missing required input) and is never
	// retried.
	BuildPrompt(ec ExecContext) (string, error)
}

// OutcomeStatus tags how an invocation ended.
type OutcomeStatus string

const (
	OutcomeSuccess           OutcomeStatus = "success"
	OutcomeParseFallback     OutcomeStatus = "parse_fallback"
	OutcomeInvocationFailure OutcomeStatus = "invocation_failure"
)

// Outcome is the tagged result of one agent invocation. Expected
// conditions (unparsable output) are values here, not errors: the
// parser's fallback chain guarantees a payload whenever the transport
// call itself succeeded.
type Outcome struct {
	Status     OutcomeStatus
	RawText    string
	Payload    json.RawMessage
	Confidence model.Confidence
	Usage      anthropic.TokenUsage
	Latency    time.Duration
	ErrorKind  model.ErrorKind
	Err        error
}

// Runner executes agents against the model transport.
type Runner struct {
	client anthropic.Client
}

// NewRunner creates a Runner backed by the given transport.
func NewRunner(client anthropic.Client) *Runner {
	return &Runner{client: client}
}

// Execute performs one invocation: prompt build, model call, parse.
// The returned error is non-nil only for invocation failures, so
// callers can wrap Execute in a retry policy; parse problems surface as
// OutcomeParseFallback with a valid payload, never as an error.
func (r *Runner) Execute(ctx context.Context, a Agent, ec ExecContext) (Outcome, error) {
	prompt, err := a.BuildPrompt(ec)
	if err != nil {
		out := Outcome{
			Status:    OutcomeInvocationFailure,
			ErrorKind: model.ErrorKindValidation,
			Err:       err,
		}
		return out, err
	}

	start := time.Now()
	resp, err := r.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       ec.Profile.Model,
		MaxTokens:   a.MaxTokens(),
		Messages:    []anthropic.Message{{Role: "user", Content: prompt}},
		Temperature: temperaturePtr(),
	})
	latency := time.Since(start)
	if err != nil {
		out := Outcome{
			Status:    OutcomeInvocationFailure,
			Latency:   latency,
			ErrorKind: model.ErrorKindInvocation,
			Err:       eris.Wrapf(err, "agent %s: invoke", a.Name()),
		}
		return out, out.Err
	}

	raw := resp.Text()
	parsed := parse.Parse(a.Kind(), raw)

	out := Outcome{
		RawText:    raw,
		Payload:    parsed.Payload,
		Confidence: parsed.Confidence,
		Usage:      resp.Usage,
		Latency:    latency,
	}
	if parsed.Confidence == model.ConfidenceFallback {
		out.Status = OutcomeParseFallback
		zap.L().Warn("agent output did not match contract, using fallback",
			zap.String("agent", a.Name()),
			zap.String("document_id", ec.DocumentID),
			zap.Int("raw_len", len(raw)),
		)
	} else {
		out.Status = OutcomeSuccess
	}
	return out, nil
}

func temperaturePtr() *float64 {
	t := temperature
	return &t
}

// joinChunks renders the chunk sequence as prompt context, labeling
// sections where the planner tagged them.
func joinChunks(chunks []model.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		if c.Section != "" {
			b.WriteString("--- " + c.Section + " ---\n")
		}
		b.WriteString(c.Text)
		if !strings.HasSuffix(c.Text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}
