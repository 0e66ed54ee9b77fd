// Package orchestrator drives one document analysis run through its
// state machine: received, planning, dispatching, aggregating,
// persisting, then a terminal state. Every transition is persisted; a
// crash never leaves progress that exists only in memory.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/dealmate/internal/agent"
	"github.com/sells-group/dealmate/internal/chunk"
	"github.com/sells-group/dealmate/internal/cost"
	"github.com/sells-group/dealmate/internal/model"
	"github.com/sells-group/dealmate/internal/parse"
	"github.com/sells-group/dealmate/internal/resilience"
	"github.com/sells-group/dealmate/internal/selector"
	"github.com/sells-group/dealmate/internal/store"
)

// ErrEmptyDocument is returned when a run is requested for a document
// whose text is empty or whitespace. The run is marked failed and no
// agent is dispatched.
var ErrEmptyDocument = eris.New("document text is empty")

// Config tunes a single orchestrator instance.
type Config struct {
	// Workers bounds concurrent independent-agent dispatch. Default: 3.
	Workers int
	// RunTimeout bounds one full run. Expired invocations are marked
	// failed(timeout) and the run aggregates what finished. Default: 10m.
	RunTimeout time.Duration
	// ChunkBudget is the per-chunk token budget for planning.
	ChunkBudget int
	// Retry controls per-agent invocation retries.
	Retry resilience.RetryConfig
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 3
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 10 * time.Minute
	}
	if c.ChunkBudget <= 0 {
		c.ChunkBudget = chunk.DefaultBudget
	}
	return c
}

// Orchestrator executes analysis runs against a store, a model
// transport, and an immutable model-selection snapshot.
type Orchestrator struct {
	store  store.Store
	runner *agent.Runner
	snap   *selector.Snapshot
	cfg    Config
}

// New creates an Orchestrator.
func New(st store.Store, runner *agent.Runner, snap *selector.Snapshot, cfg Config) *Orchestrator {
	return &Orchestrator{store: st, runner: runner, snap: snap, cfg: cfg.withDefaults()}
}

// agentResult is the aggregation-buffer entry for one dispatched agent.
// The buffer is owned exclusively by the run that fills it.
type agentResult struct {
	detail  model.AgentStatusDetail
	result  *model.AnalysisResult
	usage   []model.UsageRecord
	outcome agent.Outcome
}

func (r agentResult) succeeded() bool { return r.result != nil }

// Analyze runs the full state machine for one document on behalf of
// userID and returns the terminal Run with its report.
func (o *Orchestrator) Analyze(ctx context.Context, documentID, userID string) (*model.Run, error) {
	doc, err := o.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}

	run, err := o.store.CreateRun(ctx, doc.ID, doc.DealID)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	log := zap.L().With(
		zap.String("run_id", run.ID),
		zap.String("document_id", doc.ID),
		zap.String("deal_id", doc.DealID),
	)

	if strings.TrimSpace(doc.Text) == "" {
		report := &model.RunReport{Error: ErrEmptyDocument.Error(), DurationMS: time.Since(start).Milliseconds()}
		if err := o.store.UpdateRunReport(ctx, run.ID, model.RunStatusFailed, report); err != nil {
			return nil, err
		}
		run.Status = model.RunStatusFailed
		run.Report = report
		log.Warn("run rejected", zap.Error(ErrEmptyDocument))
		return run, ErrEmptyDocument
	}

	if err := o.store.UpdateRunStatus(ctx, run.ID, model.RunStatusPlanning); err != nil {
		return nil, err
	}
	chunks := chunk.Plan(doc.Text, o.cfg.ChunkBudget, "")
	log.Info("chunk plan ready", zap.Int("chunks", len(chunks)))

	if err := o.store.UpdateRunStatus(ctx, run.ID, model.RunStatusDispatching); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithTimeout(ctx, o.cfg.RunTimeout)
	defer cancel()

	independent := agent.Independent()
	results := make([]agentResult, len(independent))

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(o.cfg.Workers)
	for i, a := range independent {
		g.Go(func() error {
			results[i] = o.executeAgent(gctx, doc, a, agent.ExecContext{
				DocumentID: doc.ID,
				DealID:     doc.DealID,
				Chunks:     chunks,
			}, userID)
			return nil
		})
	}
	// goroutines never return errors; failures live in the buffer
	_ = g.Wait()

	byName := make(map[string]agentResult, len(independent)+1)
	for i, a := range independent {
		byName[a.Name()] = results[i]
	}

	consistency := o.runConsistency(runCtx, doc, chunks, byName, userID)
	byName["consistency"] = consistency

	if err := o.store.UpdateRunStatus(ctx, run.ID, model.RunStatusAggregating); err != nil {
		return nil, err
	}

	all := make([]agentResult, 0, len(byName))
	for _, a := range agent.All() {
		all = append(all, byName[a.Name()])
	}
	report := buildReport(all, len(chunks), time.Since(start))

	if err := o.store.UpdateRunStatus(ctx, run.ID, model.RunStatusPersisting); err != nil {
		return nil, err
	}
	status, err := o.persist(ctx, run.ID, all, report)
	if err != nil {
		report.Error = err.Error()
		_ = o.store.UpdateRunReport(ctx, run.ID, model.RunStatusFailed, report)
		return nil, err
	}

	if err := o.store.UpdateRunReport(ctx, run.ID, status, report); err != nil {
		return nil, err
	}
	run.Status = status
	run.Report = report

	log.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("results", len(report.Results)),
		zap.Float64("total_cost", report.TotalCost),
		zap.Int64("duration_ms", report.DurationMS),
	)
	return run, nil
}

// executeAgent runs one agent with retries, writing an append-only
// AgentRun row per attempt. It never returns an error: every failure
// mode lands in the returned buffer entry.
func (o *Orchestrator) executeAgent(ctx context.Context, doc *model.Document, a agent.Agent, ec agent.ExecContext, userID string) agentResult {
	started := time.Now()
	detail := model.AgentStatusDetail{Agent: a.Name()}

	profile, err := o.snap.Resolve(a.UseCase(), userID, doc.DealID)
	if err != nil {
		detail.Status = model.AgentRunFailed
		detail.ErrorKind = model.ErrorKindValidation
		detail.Error = err.Error()
		detail.DurationMS = time.Since(started).Milliseconds()
		o.auditSkip(ctx, doc, a.Name(), model.ErrorKindValidation, err.Error())
		return agentResult{detail: detail}
	}
	ec.Profile = profile
	ec.Chunks = chunk.Label(ec.Chunks, a.SectionHint())

	input, _ := json.Marshal(map[string]any{
		"chunks": len(ec.Chunks),
		"model":  profile.Model,
	})

	var lastRun *model.AgentRun
	var lastOutcome agent.Outcome
	var usage []model.UsageRecord
	attempt := 0

	retryCfg := o.cfg.Retry
	retryCfg.OnRetry = resilience.RetryLogger(a.Name(), "invoke")

	outcome, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) (agent.Outcome, error) {
		attempt++
		ar := &model.AgentRun{
			DocumentID:   doc.ID,
			DealID:       doc.DealID,
			Agent:        a.Name(),
			Attempt:      attempt,
			InputPayload: string(input),
		}
		if err := o.store.AppendAgentRun(ctx, ar); err != nil {
			lastOutcome = agent.Outcome{
				Status:    agent.OutcomeInvocationFailure,
				ErrorKind: model.ErrorKindPersistence,
				Err:       err,
			}
			return lastOutcome, err
		}
		lastRun = ar

		out, execErr := o.runner.Execute(ctx, a, ec)
		lastOutcome = out
		if out.Usage.InputTokens > 0 || out.Usage.OutputTokens > 0 {
			rec := cost.Record(ar.ID, profile, int(out.Usage.InputTokens), int(out.Usage.OutputTokens), out.Latency, execErr == nil)
			cost.LogUsage(rec, a.Name())
			usage = append(usage, rec)
		}

		finalizeAgentRun(ar, out)
		if err := o.store.CompleteAgentRun(ctx, ar); err != nil {
			zap.L().Error("complete agent run", zap.String("agent", a.Name()), zap.Error(err))
		}
		return out, execErr
	})

	detail.DurationMS = time.Since(started).Milliseconds()

	// DoVal returns the zero Outcome on failure; the closure keeps the
	// real last one for classification.
	if err != nil {
		outcome = lastOutcome
	}

	res := agentResult{usage: usage, outcome: outcome}
	if err != nil {
		kind := outcome.ErrorKind
		if kind == "" || ctx.Err() != nil {
			kind = resilience.Classify(err)
		}
		detail.Status = model.AgentRunFailed
		detail.ErrorKind = kind
		detail.Error = err.Error()
		res.detail = detail
		return res
	}

	detail.Confidence = outcome.Confidence
	if outcome.Status == agent.OutcomeParseFallback {
		detail.Status = model.AgentRunPartial
	} else {
		detail.Status = model.AgentRunSuccess
	}
	res.detail = detail

	agentRunID := ""
	if lastRun != nil {
		agentRunID = lastRun.ID
	}
	res.result = &model.AnalysisResult{
		AgentRunID: agentRunID,
		DocumentID: doc.ID,
		DealID:     doc.DealID,
		Kind:       a.Kind(),
		Confidence: outcome.Confidence,
		Payload:    outcome.Payload,
		CreatedAt:  time.Now().UTC(),
	}
	return res
}

// runConsistency dispatches the dependent agent after the gate check:
// it runs whenever at least one of financial and memo produced a
// result, and is skipped as failed(dependency_unavailable) only when
// both upstreams failed.
func (o *Orchestrator) runConsistency(ctx context.Context, doc *model.Document, chunks []model.Chunk, byName map[string]agentResult, userID string) agentResult {
	financial := byName["financial"]
	memo := byName["memo"]

	if !financial.succeeded() && !memo.succeeded() {
		msg := "both financial and memo agents failed"
		o.auditSkip(ctx, doc, "consistency", model.ErrorKindDependencyUnavailable, msg)
		return agentResult{detail: model.AgentStatusDetail{
			Agent:     "consistency",
			Status:    model.AgentRunFailed,
			ErrorKind: model.ErrorKindDependencyUnavailable,
			Error:     msg,
		}}
	}

	prior := &agent.PriorResults{}
	if financial.succeeded() && financial.detail.Status == model.AgentRunSuccess {
		var metrics []model.FinancialMetric
		if err := json.Unmarshal(financial.result.Payload, &metrics); err == nil {
			prior.FinancialMetrics = metrics
		}
	}
	if memo.succeeded() && memo.detail.Status == model.AgentRunSuccess {
		var m model.InvestmentMemo
		if err := json.Unmarshal(memo.result.Payload, &m); err == nil {
			prior.Memo = &m
		}
	}

	return o.executeAgent(ctx, doc, agent.Consistency{}, agent.ExecContext{
		DocumentID: doc.ID,
		DealID:     doc.DealID,
		Chunks:     chunks,
		Prior:      prior,
	}, userID)
}

// auditSkip records an agent that never reached the transport, so the
// audit trail explains why no invocation happened.
func (o *Orchestrator) auditSkip(ctx context.Context, doc *model.Document, agentName string, kind model.ErrorKind, msg string) {
	ar := &model.AgentRun{
		DocumentID: doc.ID,
		DealID:     doc.DealID,
		Agent:      agentName,
		Attempt:    1,
	}
	if err := o.store.AppendAgentRun(ctx, ar); err != nil {
		zap.L().Error("audit skip append", zap.String("agent", agentName), zap.Error(err))
		return
	}
	ar.Status = model.AgentRunFailed
	ar.ErrorKind = kind
	ar.Error = msg
	if err := o.store.CompleteAgentRun(ctx, ar); err != nil {
		zap.L().Error("audit skip complete", zap.String("agent", agentName), zap.Error(err))
	}
}

func finalizeAgentRun(ar *model.AgentRun, out agent.Outcome) {
	ar.RawOutput = out.RawText
	ar.ParsedOutput = out.Payload
	switch out.Status {
	case agent.OutcomeSuccess:
		ar.Status = model.AgentRunSuccess
	case agent.OutcomeParseFallback:
		ar.Status = model.AgentRunPartial
		// keep any well-formed JSON the model produced in the audit
		// trail even though it missed the contract
		ar.ParsedOutput = parse.Extract(out.RawText).Payload
	default:
		ar.Status = model.AgentRunFailed
		ar.ErrorKind = out.ErrorKind
		if out.Err != nil {
			ar.Error = out.Err.Error()
		}
	}
}

func buildReport(all []agentResult, chunkCount int, elapsed time.Duration) *model.RunReport {
	report := &model.RunReport{
		ChunkCount: chunkCount,
		DurationMS: elapsed.Milliseconds(),
	}
	for _, r := range all {
		report.Agents = append(report.Agents, r.detail)
		if r.result != nil {
			report.Results = append(report.Results, *r.result)
		}
		for _, u := range r.usage {
			report.TotalTokens += u.TotalTokens
			report.TotalCost += u.CostUSD
		}
	}
	return report
}

// persist writes results and usage, then decides the terminal status:
// completed when every agent produced a result, failed when none did,
// partially_completed otherwise.
func (o *Orchestrator) persist(ctx context.Context, runID string, all []agentResult, report *model.RunReport) (model.RunStatus, error) {
	succeeded, failed := 0, 0
	var usage []model.UsageRecord
	for i := range all {
		r := &all[i]
		if r.result != nil {
			if err := o.store.UpsertAnalysisResult(ctx, r.result); err != nil {
				return "", eris.Wrapf(err, "persist %s result", r.detail.Agent)
			}
			succeeded++
		} else {
			failed++
		}
		usage = append(usage, r.usage...)
	}
	// upsert assigns result IDs; refresh the report copies
	report.Results = report.Results[:0]
	for _, r := range all {
		if r.result != nil {
			report.Results = append(report.Results, *r.result)
		}
	}

	if len(usage) > 0 {
		if err := o.store.AppendUsageRecords(ctx, usage); err != nil {
			return "", eris.Wrap(err, "persist usage records")
		}
	}

	switch {
	case failed == 0:
		return model.RunStatusCompleted, nil
	case succeeded == 0:
		report.Error = fmt.Sprintf("all %d agents failed", failed)
		return model.RunStatusFailed, nil
	default:
		return model.RunStatusPartiallyCompleted, nil
	}
}
