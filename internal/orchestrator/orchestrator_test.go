package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealmate/internal/agent"
	"github.com/sells-group/dealmate/internal/model"
	"github.com/sells-group/dealmate/internal/resilience"
	"github.com/sells-group/dealmate/internal/selector"
	"github.com/sells-group/dealmate/internal/store"
	"github.com/sells-group/dealmate/pkg/anthropic"
)

const (
	financialJSON = `[{"metric_name":"Revenue","metric_value":"$10M","metric_type":"revenue","time_period":"FY2023","source_section":"Overview","confidence_score":0.9}]`
	riskJSON      = `{"risk_summary":"Customer concentration is the dominant risk.","risk_categories":{"market_risks":["single large customer"]},"risk_scores":{"market":0.7},"confidence_score":0.8}`
	memoJSON      = `{"investment_grade":"B+","executive_summary":"Solid regional operator with concentration risk."}`
	quoteJSON     = `{"quotes":[{"quote_text":"We doubled output in two years.","speaker":"Jane Doe","speaker_title":"CEO","quote_type":"executive","significance_score":0.8,"metadata":{"sentiment":"positive"}}],"analysis_summary":"Management commentary is upbeat.","confidence_score":0.8}`
	chartJSON     = `{"chart_elements":[{"chart_type":"table","title":"Revenue by year","description":"FY21-FY23","data_points":{"FY23":"10"},"source_page":3,"confidence_score":0.9}],"analysis_summary":"One financial table found.","confidence_score":0.85}`
	consistJSON   = `{"consistency_summary":"Figures are internally consistent.","consistency_scores":{"overall":0.9},"confidence_score":0.85}`
)

// scriptedClient routes canned responses by prompt content. Each agent
// prompt carries a distinctive role line.
type scriptedClient struct {
	mu        sync.Mutex
	calls     []string
	failAgent string // agent name whose calls always fail
	failErr   error
	flakeOnce string // agent name whose first call fails transiently
	flaked    bool
}

func (c *scriptedClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prompt := req.Messages[0].Content
	name := agentForPrompt(prompt)
	c.calls = append(c.calls, name)

	if c.failAgent == name {
		return nil, c.failErr
	}
	if c.flakeOnce == name && !c.flaked {
		c.flaked = true
		return nil, resilience.NewTransientError(eris.New("overloaded"), 529)
	}

	body := map[string]string{
		"financial":   financialJSON,
		"risk":        riskJSON,
		"memo":        memoJSON,
		"quote":       quoteJSON,
		"chart":       chartJSON,
		"consistency": consistJSON,
	}[name]

	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: body}},
		Usage:   anthropic.TokenUsage{InputTokens: 1000, OutputTokens: 500},
	}, nil
}

func agentForPrompt(prompt string) string {
	switch {
	case strings.Contains(prompt, "financial analyst"):
		return "financial"
	case strings.Contains(prompt, "due diligence analyst"):
		return "risk"
	case strings.Contains(prompt, "private equity associate"):
		return "memo"
	case strings.Contains(prompt, "quote analysis expert"):
		return "quote"
	case strings.Contains(prompt, "chart analysis expert"):
		return "chart"
	case strings.Contains(prompt, "quality reviewer"):
		return "consistency"
	}
	return "unknown"
}

func (c *scriptedClient) callCount(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.calls {
		if call == name {
			n++
		}
	}
	return n
}

func newOrchestrator(t *testing.T, client anthropic.Client) (*Orchestrator, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	seed := selector.DefaultSeed()
	snap := selector.NewSnapshot(seed.Profiles, seed.Selections)

	o := New(st, agent.NewRunner(client), snap, Config{
		Workers:    3,
		RunTimeout: 30 * time.Second,
		Retry:      resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	})
	return o, st
}

func seedDocument(t *testing.T, st store.Store, text string) *model.Document {
	t.Helper()
	doc := &model.Document{
		DealID: "deal-1",
		Name:   "acme-cim.pdf",
		Type:   model.DocumentTypeCIM,
		Text:   text,
	}
	require.NoError(t, st.CreateDocument(context.Background(), doc))
	return doc
}

const cimText = "Acme Industrial Services.\n\nRevenue was $10M in FY2023 with 25% EBITDA margins.\n\nThe company depends on one customer for 40% of sales."

func TestAnalyzeCompleted(t *testing.T) {
	client := &scriptedClient{}
	o, st := newOrchestrator(t, client)
	ctx := context.Background()
	doc := seedDocument(t, st, cimText)

	run, err := o.Analyze(ctx, doc.ID, "")
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusCompleted, run.Status)
	require.NotNil(t, run.Report)
	assert.Len(t, run.Report.Agents, 6)
	assert.Len(t, run.Report.Results, 6)
	assert.Greater(t, run.Report.ChunkCount, 0)

	// six invocations at 1500 tokens each, sonnet pricing
	assert.Equal(t, 9000, run.Report.TotalTokens)
	assert.InDelta(t, 6*(1.0*0.003+0.5*0.015), run.Report.TotalCost, 1e-9)

	// terminal state persisted
	stored, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, stored.Status)
	require.NotNil(t, stored.Report)

	// one live result per kind
	results, err := st.ListAnalysisResults(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, results, 6)
	for _, r := range results {
		assert.Equal(t, model.ConfidenceExact, r.Confidence)
		assert.NotEmpty(t, r.AgentRunID)
	}

	// audit trail has one success row per agent
	agentRuns, err := st.ListAgentRuns(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, agentRuns, 6)
	for _, ar := range agentRuns {
		assert.Equal(t, model.AgentRunSuccess, ar.Status)
		assert.NotNil(t, ar.CompletedAt)
	}
}

func TestAnalyzeEmptyDocument(t *testing.T) {
	client := &scriptedClient{}
	o, st := newOrchestrator(t, client)
	ctx := context.Background()
	doc := seedDocument(t, st, "   \n\t ")

	run, err := o.Analyze(ctx, doc.ID, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyDocument))

	require.NotNil(t, run)
	assert.Equal(t, model.RunStatusFailed, run.Status)

	// no agent was dispatched
	agentRuns, err := st.ListAgentRuns(ctx, doc.ID)
	require.NoError(t, err)
	assert.Empty(t, agentRuns)
	assert.Equal(t, 0, client.callCount("financial"))
}

func TestAnalyzeRiskFailurePartiallyCompletes(t *testing.T) {
	client := &scriptedClient{
		failAgent: "risk",
		failErr:   eris.New("invalid request"), // permanent, no retry
	}
	o, st := newOrchestrator(t, client)
	ctx := context.Background()
	doc := seedDocument(t, st, cimText)

	run, err := o.Analyze(ctx, doc.ID, "")
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusPartiallyCompleted, run.Status)

	byAgent := map[string]model.AgentStatusDetail{}
	for _, d := range run.Report.Agents {
		byAgent[d.Agent] = d
	}
	assert.Equal(t, model.AgentRunFailed, byAgent["risk"].Status)
	assert.Equal(t, model.ErrorKindInvocation, byAgent["risk"].ErrorKind)

	// consistency still ran off financial + memo
	assert.Equal(t, model.AgentRunSuccess, byAgent["consistency"].Status)
	assert.Equal(t, 1, client.callCount("consistency"))

	results, err := st.ListAnalysisResults(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, results, 5)

	// permanent errors are not retried
	assert.Equal(t, 1, client.callCount("risk"))
}

func TestAnalyzeConsistencyGate(t *testing.T) {
	// financial and memo both down, risk fine
	client := &scriptedClient{}
	o, st := newOrchestrator(t, client)
	ctx := context.Background()
	doc := seedDocument(t, st, cimText)

	client.failAgent = "financial"
	client.failErr = eris.New("bad request")
	// memo needs a second failing agent; route through a wrapper
	failing := &dualFailClient{inner: client, alsoFail: "memo"}
	o = New(st, agent.NewRunner(failing), selectorSnapshot(), Config{
		Workers: 3, Retry: resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	})

	run, err := o.Analyze(ctx, doc.ID, "")
	require.NoError(t, err)

	assert.Equal(t, model.RunStatusPartiallyCompleted, run.Status)

	byAgent := map[string]model.AgentStatusDetail{}
	for _, d := range run.Report.Agents {
		byAgent[d.Agent] = d
	}
	assert.Equal(t, model.AgentRunSuccess, byAgent["risk"].Status)
	assert.Equal(t, model.AgentRunFailed, byAgent["consistency"].Status)
	assert.Equal(t, model.ErrorKindDependencyUnavailable, byAgent["consistency"].ErrorKind)
	assert.Equal(t, 0, client.callCount("consistency"), "gate prevents the model call")

	// the skip is still audited
	agentRuns, err := st.ListAgentRuns(ctx, doc.ID)
	require.NoError(t, err)
	var consistencyRuns int
	for _, ar := range agentRuns {
		if ar.Agent == "consistency" {
			consistencyRuns++
			assert.Equal(t, model.AgentRunFailed, ar.Status)
			assert.Equal(t, model.ErrorKindDependencyUnavailable, ar.ErrorKind)
		}
	}
	assert.Equal(t, 1, consistencyRuns)
}

func TestAnalyzeTransientRetrySucceeds(t *testing.T) {
	client := &scriptedClient{flakeOnce: "memo"}
	o, st := newOrchestrator(t, client)
	ctx := context.Background()
	doc := seedDocument(t, st, cimText)

	run, err := o.Analyze(ctx, doc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusCompleted, run.Status)
	assert.Equal(t, 2, client.callCount("memo"))

	// both attempts are in the audit trail
	agentRuns, err := st.ListAgentRuns(ctx, doc.ID)
	require.NoError(t, err)
	var memoAttempts []model.AgentRun
	for _, ar := range agentRuns {
		if ar.Agent == "memo" {
			memoAttempts = append(memoAttempts, ar)
		}
	}
	require.Len(t, memoAttempts, 2)
	assert.Equal(t, model.AgentRunFailed, memoAttempts[0].Status)
	assert.Equal(t, 1, memoAttempts[0].Attempt)
	assert.Equal(t, model.AgentRunSuccess, memoAttempts[1].Status)
	assert.Equal(t, 2, memoAttempts[1].Attempt)
}

func TestAnalyzeRerunAppendsAgentRuns(t *testing.T) {
	client := &scriptedClient{}
	o, st := newOrchestrator(t, client)
	ctx := context.Background()
	doc := seedDocument(t, st, cimText)

	run1, err := o.Analyze(ctx, doc.ID, "")
	require.NoError(t, err)
	run2, err := o.Analyze(ctx, doc.ID, "")
	require.NoError(t, err)
	assert.NotEqual(t, run1.ID, run2.ID)

	// the audit trail doubles; the live result set does not
	agentRuns, err := st.ListAgentRuns(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, agentRuns, 12)

	results, err := st.ListAnalysisResults(ctx, doc.ID)
	require.NoError(t, err)
	assert.Len(t, results, 6)
}

func TestAnalyzeParseFallbackIsPartial(t *testing.T) {
	client := &proseClient{agent: "risk"}
	o, st := newOrchestrator(t, client)
	ctx := context.Background()
	doc := seedDocument(t, st, cimText)

	run, err := o.Analyze(ctx, doc.ID, "")
	require.NoError(t, err)

	// fallback output still counts as a produced result
	assert.Equal(t, model.RunStatusCompleted, run.Status)

	byAgent := map[string]model.AgentStatusDetail{}
	for _, d := range run.Report.Agents {
		byAgent[d.Agent] = d
	}
	assert.Equal(t, model.AgentRunPartial, byAgent["risk"].Status)
	assert.Equal(t, model.ConfidenceFallback, byAgent["risk"].Confidence)

	results, err := st.ListAnalysisResults(ctx, doc.ID)
	require.NoError(t, err)
	var riskResult *model.AnalysisResult
	for i := range results {
		if results[i].Kind == model.KindRiskAnalysis {
			riskResult = &results[i]
		}
	}
	require.NotNil(t, riskResult)
	assert.Equal(t, model.ConfidenceFallback, riskResult.Confidence)
	assert.Contains(t, string(riskResult.Payload), "The company looks risky overall")
}

func TestAnalyzeRunTimeoutMarksStuckAgents(t *testing.T) {
	client := &hangingClient{hang: map[string]bool{"risk": true}}

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { st.Close() })

	o := New(st, agent.NewRunner(client), selectorSnapshot(), Config{
		Workers:    5,
		RunTimeout: 250 * time.Millisecond,
		Retry:      resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	})
	ctx := context.Background()
	doc := seedDocument(t, st, cimText)

	run, err := o.Analyze(ctx, doc.ID, "")
	require.NoError(t, err)

	// finished agents are aggregated; the stuck one is cut off
	assert.Equal(t, model.RunStatusPartiallyCompleted, run.Status)

	byAgent := map[string]model.AgentStatusDetail{}
	for _, d := range run.Report.Agents {
		byAgent[d.Agent] = d
	}
	assert.Equal(t, model.AgentRunFailed, byAgent["risk"].Status)
	assert.Equal(t, model.ErrorKindTimeout, byAgent["risk"].ErrorKind)
	for _, name := range []string{"financial", "memo", "quote", "chart"} {
		assert.Equal(t, model.AgentRunSuccess, byAgent[name].Status, name)
	}

	// consistency was still pending when the deadline hit
	assert.Equal(t, model.AgentRunFailed, byAgent["consistency"].Status)
	assert.Equal(t, model.ErrorKindTimeout, byAgent["consistency"].ErrorKind)

	// the finished agents' results were persisted anyway
	results, err := st.ListAnalysisResults(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.Len(t, results, 4)
}

// hangingClient blocks selected agents until the context expires and
// routes everything else through the scripted client.
type hangingClient struct {
	scripted scriptedClient
	hang     map[string]bool
}

func (c *hangingClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if c.hang[agentForPrompt(req.Messages[0].Content)] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return c.scripted.CreateMessage(ctx, req)
}

// dualFailClient fails one extra agent on top of the wrapped client's
// own failure behavior.
type dualFailClient struct {
	inner    *scriptedClient
	alsoFail string
}

func (c *dualFailClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if agentForPrompt(req.Messages[0].Content) == c.alsoFail {
		c.inner.mu.Lock()
		c.inner.calls = append(c.inner.calls, c.alsoFail)
		c.inner.mu.Unlock()
		return nil, eris.New("bad request")
	}
	return c.inner.CreateMessage(ctx, req)
}

// proseClient answers one agent with unparsable prose and everything
// else with valid JSON.
type proseClient struct {
	scripted scriptedClient
	agent    string
}

func (c *proseClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	if agentForPrompt(req.Messages[0].Content) == c.agent {
		return &anthropic.MessageResponse{
			Content: []anthropic.ContentBlock{{Type: "text", Text: "The company looks risky overall but nothing is quantified."}},
			Usage:   anthropic.TokenUsage{InputTokens: 800, OutputTokens: 100},
		}, nil
	}
	return c.scripted.CreateMessage(ctx, req)
}

func selectorSnapshot() *selector.Snapshot {
	seed := selector.DefaultSeed()
	return selector.NewSnapshot(seed.Profiles, seed.Selections)
}
