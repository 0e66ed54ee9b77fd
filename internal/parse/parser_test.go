package parse

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealmate/internal/model"
)

func TestExtractFencedBlock(t *testing.T) {
	t.Parallel()
	raw := "Here is the result:\n```json\n{\"grade\":\"B+\"}\n```\nEnd."

	res := Extract(raw)
	assert.Equal(t, model.ConfidenceExtracted, res.Confidence)
	assert.JSONEq(t, `{"grade":"B+"}`, string(res.Payload))
}

func TestExtractDirect(t *testing.T) {
	t.Parallel()
	res := Extract(`{"value": 42}`)
	assert.Equal(t, model.ConfidenceExact, res.Confidence)
	assert.JSONEq(t, `{"value": 42}`, string(res.Payload))
}

func TestExtractBraceSpan(t *testing.T) {
	t.Parallel()
	res := Extract(`The answer is {"ok": true} as requested.`)
	assert.Equal(t, model.ConfidenceExtracted, res.Confidence)
	assert.JSONEq(t, `{"ok": true}`, string(res.Payload))
}

func TestExtractProseFallsBack(t *testing.T) {
	t.Parallel()
	prose := "The company appears financially healthy overall."

	res := Extract(prose)
	assert.Equal(t, model.ConfidenceFallback, res.Confidence)

	var fb FallbackPayload
	require.NoError(t, json.Unmarshal(res.Payload, &fb))
	assert.Equal(t, prose, fb.Summary)
	assert.True(t, fb.Unparsed)
}

func TestParseMemoDirect(t *testing.T) {
	t.Parallel()
	raw := `{"investment_grade":"A","executive_summary":"Strong recurring revenue."}`

	res := Parse(model.KindInvestmentMemo, raw)
	require.Equal(t, model.ConfidenceExact, res.Confidence)

	var memo model.InvestmentMemo
	require.NoError(t, json.Unmarshal(res.Payload, &memo))
	assert.Equal(t, "A", memo.InvestmentGrade)
	assert.Equal(t, "Strong recurring revenue.", memo.ExecutiveSummary)
}

func TestParseMemoFencedWithNoise(t *testing.T) {
	t.Parallel()
	raw := "Sure, here is the memo:\n```json\n{\"investment_grade\":\"B+\",\"executive_summary\":\"Solid niche player.\"}\n```\nLet me know if you need anything else."

	res := Parse(model.KindInvestmentMemo, raw)
	require.Equal(t, model.ConfidenceExtracted, res.Confidence)

	var memo model.InvestmentMemo
	require.NoError(t, json.Unmarshal(res.Payload, &memo))
	assert.Equal(t, "B+", memo.InvestmentGrade)
}

func TestParseMemoInvalidGradeDefaults(t *testing.T) {
	t.Parallel()
	raw := `{"investment_grade":"Z","executive_summary":"text"}`

	res := Parse(model.KindInvestmentMemo, raw)
	var memo model.InvestmentMemo
	require.NoError(t, json.Unmarshal(res.Payload, &memo))
	assert.Equal(t, "B", memo.InvestmentGrade)
}

func TestParseFinancialArray(t *testing.T) {
	t.Parallel()
	raw := `[{"metric_name":"Revenue","metric_value":"$10M","metric_type":"REVENUE","time_period":"2023","source_section":"Financials","confidence_score":1.4}]`

	res := Parse(model.KindFinancialMetrics, raw)
	require.Equal(t, model.ConfidenceExact, res.Confidence)

	var metrics []model.FinancialMetric
	require.NoError(t, json.Unmarshal(res.Payload, &metrics))
	require.Len(t, metrics, 1)
	assert.Equal(t, model.MetricRevenue, metrics[0].MetricType)
	assert.Equal(t, 1.0, metrics[0].ConfidenceScore, "confidence must be clamped to [0,1]")
}

func TestParseFinancialSingleObjectWrapped(t *testing.T) {
	t.Parallel()
	raw := `{"metric_name":"EBITDA","metric_value":"$2.1M","metric_type":"made_up","confidence_score":-0.2}`

	res := Parse(model.KindFinancialMetrics, raw)
	require.Equal(t, model.ConfidenceExact, res.Confidence)

	var metrics []model.FinancialMetric
	require.NoError(t, json.Unmarshal(res.Payload, &metrics))
	require.Len(t, metrics, 1)
	assert.Equal(t, model.MetricOther, metrics[0].MetricType)
	assert.Equal(t, 0.0, metrics[0].ConfidenceScore)
}

func TestParseFinancialMetricsWrapper(t *testing.T) {
	t.Parallel()
	raw := `{"metrics":[{"metric_name":"Revenue","metric_value":"$10M","metric_type":"revenue","confidence_score":0.9}]}`

	res := Parse(model.KindFinancialMetrics, raw)
	require.Equal(t, model.ConfidenceExact, res.Confidence)

	// the wrapper is stripped; the payload is always a bare array
	var metrics []model.FinancialMetric
	require.NoError(t, json.Unmarshal(res.Payload, &metrics))
	require.Len(t, metrics, 1)
	assert.Equal(t, "Revenue", metrics[0].MetricName)
}

func TestParseFinancialBraceSpan(t *testing.T) {
	t.Parallel()
	raw := "Extracted metrics follow: [{\"metric_name\":\"Gross Margin\",\"metric_value\":\"62%\",\"metric_type\":\"profitability\",\"confidence_score\":0.9}] -- end of output"

	res := Parse(model.KindFinancialMetrics, raw)
	assert.Equal(t, model.ConfidenceExtracted, res.Confidence)
}

func TestParseQuoteNormalizes(t *testing.T) {
	t.Parallel()
	raw := `{"quotes":[{"quote_text":"We doubled output in two years.","speaker":"Jane Doe","speaker_title":"CEO","quote_type":"EXECUTIVE","significance_score":1.7,"metadata":{"sentiment":"UPBEAT"}}],"quote_relationships":[{"quote_id":"q1","related_metric":"Revenue","relationship_type":"backs up","confidence_score":-0.5}],"analysis_summary":"Management is bullish.","confidence_score":0.8}`

	res := Parse(model.KindQuoteAnalysis, raw)
	require.Equal(t, model.ConfidenceExact, res.Confidence)

	var qa model.QuoteAnalysis
	require.NoError(t, json.Unmarshal(res.Payload, &qa))
	require.Len(t, qa.Quotes, 1)
	assert.Equal(t, "executive", qa.Quotes[0].QuoteType)
	assert.Equal(t, 1.0, qa.Quotes[0].SignificanceScore)
	assert.Equal(t, "neutral", qa.Quotes[0].Metadata.Sentiment, "unknown sentiment defaults")
	require.Len(t, qa.QuoteRelationships, 1)
	assert.Equal(t, "contextualizes", qa.QuoteRelationships[0].RelationshipType)
	assert.Equal(t, 0.0, qa.QuoteRelationships[0].ConfidenceScore)
}

func TestParseChartNormalizes(t *testing.T) {
	t.Parallel()
	raw := `{"chart_elements":[{"chart_type":"Waterfall","title":"Revenue bridge","description":"FY22 to FY23","data_points":{"FY22":"8.5","FY23":"10"},"source_page":12,"confidence_score":0.9}],"chart_relationships":[{"chart_id":"c1","related_text":"as shown in the bridge","relationship_type":"CITATION","confidence_score":0.6}],"analysis_summary":"One revenue chart found.","confidence_score":0.75}`

	res := Parse(model.KindChartAnalysis, raw)
	require.Equal(t, model.ConfidenceExact, res.Confidence)

	var ca model.ChartAnalysis
	require.NoError(t, json.Unmarshal(res.Payload, &ca))
	require.Len(t, ca.ChartElements, 1)
	assert.Equal(t, "other", ca.ChartElements[0].ChartType, "unknown chart type defaults")
	assert.Equal(t, 12, ca.ChartElements[0].SourcePage)
	require.Len(t, ca.ChartRelationships, 1)
	assert.Equal(t, "reference", ca.ChartRelationships[0].RelationshipType)
}

func TestParseRiskNormalizesScores(t *testing.T) {
	t.Parallel()
	raw := `{"risk_summary":"Moderate risk profile.","risk_categories":{"market_risks":["pricing pressure"]},"risk_scores":{"market_risk":1.8,"overall_risk":0.5},"confidence_score":0.7}`

	res := Parse(model.KindRiskAnalysis, raw)
	require.Equal(t, model.ConfidenceExact, res.Confidence)

	var risk model.RiskAnalysis
	require.NoError(t, json.Unmarshal(res.Payload, &risk))
	assert.Equal(t, 1.0, risk.RiskScores["market_risk"])
	assert.Equal(t, 0.5, risk.RiskScores["overall_risk"])
}

func TestParseConsistencyNormalizesEnums(t *testing.T) {
	t.Parallel()
	raw := `{"consistency_summary":"Two issues found.","inconsistencies":[{"type":"WEIRD","description":"Revenue mismatch","severity":"CRITICAL"}]}`

	res := Parse(model.KindConsistencyReport, raw)
	require.Equal(t, model.ConfidenceExact, res.Confidence)

	var report model.ConsistencyReport
	require.NoError(t, json.Unmarshal(res.Payload, &report))
	require.Len(t, report.Inconsistencies, 1)
	assert.Equal(t, "other", report.Inconsistencies[0].Type)
	assert.Equal(t, "medium", report.Inconsistencies[0].Severity)
}

// The chain must be total: any input terminates with one of exactly
// three confidence tags and valid JSON, never a panic or error.
func TestParseTotality(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"",
		"plain prose with no structure at all",
		"{broken json",
		"```json\nnot json either\n```",
		"]}{[",
		"{\"investment_grade\":",
		"null",
		"```\n```",
	}
	kinds := []model.ResultKind{
		model.KindFinancialMetrics,
		model.KindRiskAnalysis,
		model.KindInvestmentMemo,
		model.KindQuoteAnalysis,
		model.KindChartAnalysis,
		model.KindConsistencyReport,
	}

	for _, kind := range kinds {
		for _, in := range inputs {
			res := Parse(kind, in)
			assert.Contains(t, []model.Confidence{
				model.ConfidenceExact,
				model.ConfidenceExtracted,
				model.ConfidenceFallback,
			}, res.Confidence)
			assert.True(t, json.Valid(res.Payload), "kind %s input %q produced invalid JSON", kind, in)
		}
	}
}

func TestParseProseFallbackCarriesTextVerbatim(t *testing.T) {
	t.Parallel()
	prose := "Management projects strong growth but provides no figures."

	res := Parse(model.KindRiskAnalysis, prose)
	require.Equal(t, model.ConfidenceFallback, res.Confidence)

	var fb FallbackPayload
	require.NoError(t, json.Unmarshal(res.Payload, &fb))
	assert.Equal(t, prose, fb.Summary)
	assert.True(t, fb.Unparsed)
}
