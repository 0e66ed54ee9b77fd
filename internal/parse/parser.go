// Package parse turns raw model output into validated structured
// payloads. The fallback chain is pure and total: for any input text it
// terminates with a result, never with a parse error bubbling to the
// caller. How the payload was recovered is tagged as a confidence level
// so downstream consumers can tell trustworthy extractions from
// best-effort ones.
package parse

import (
	"encoding/json"
	"strings"

	"github.com/sells-group/dealmate/internal/model"
)

// Result is a parsed payload plus the confidence of its recovery.
type Result struct {
	Payload    json.RawMessage
	Confidence model.Confidence
}

// FallbackPayload is the minimal valid payload synthesized when no
// strategy could decode the raw text. Summary carries the text
// verbatim.
type FallbackPayload struct {
	Summary  string `json:"summary"`
	Unparsed bool   `json:"unparsed"`
}

// Parse attempts each strategy in strict order until one succeeds:
// direct decode of the whole text, fenced-block extraction, brace-span
// extraction, then fallback synthesis. The last step always succeeds.
func Parse(kind model.ResultKind, raw string) Result {
	trimmed := strings.TrimSpace(raw)

	if payload, ok := decodeForKind(kind, trimmed); ok {
		return Result{Payload: payload, Confidence: model.ConfidenceExact}
	}

	if block, ok := fencedBlock(trimmed); ok {
		if payload, ok := decodeForKind(kind, block); ok {
			return Result{Payload: payload, Confidence: model.ConfidenceExtracted}
		}
	}

	if span, ok := braceSpan(trimmed); ok {
		if payload, ok := decodeForKind(kind, span); ok {
			return Result{Payload: payload, Confidence: model.ConfidenceExtracted}
		}
	}

	payload, _ := json.Marshal(FallbackPayload{Summary: raw, Unparsed: true})
	return Result{Payload: payload, Confidence: model.ConfidenceFallback}
}

// Extract recovers any well-formed JSON value from raw text using the
// same strategy chain as Parse, without enforcing a payload shape. Used
// to preserve whatever structure the model produced in the audit trail
// even when the kind-specific contract was not met.
func Extract(raw string) Result {
	trimmed := strings.TrimSpace(raw)

	if json.Valid([]byte(trimmed)) && len(trimmed) > 0 {
		return Result{Payload: json.RawMessage(trimmed), Confidence: model.ConfidenceExact}
	}

	if block, ok := fencedBlock(trimmed); ok && json.Valid([]byte(block)) {
		return Result{Payload: json.RawMessage(block), Confidence: model.ConfidenceExtracted}
	}

	if span, ok := braceSpan(trimmed); ok && json.Valid([]byte(span)) {
		return Result{Payload: json.RawMessage(span), Confidence: model.ConfidenceExtracted}
	}

	payload, _ := json.Marshal(FallbackPayload{Summary: raw, Unparsed: true})
	return Result{Payload: payload, Confidence: model.ConfidenceFallback}
}

// fencedBlock returns the contents of the first delimited code block,
// stripping an optional language tag after the opening fence.
func fencedBlock(text string) (string, bool) {
	start := strings.Index(text, "```")
	if start < 0 {
		return "", false
	}
	rest := text[start+3:]
	// Skip the language tag up to the first newline.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
		if tag := strings.TrimSpace(rest[:nl]); tag == "" || isLangTag(tag) {
			rest = rest[nl+1:]
		}
	}
	end := strings.Index(rest, "```")
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func isLangTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// braceSpan returns the substring from the first opening brace or
// bracket to the last matching closer.
func braceSpan(text string) (string, bool) {
	objStart := strings.IndexByte(text, '{')
	arrStart := strings.IndexByte(text, '[')

	start, closer := objStart, byte('}')
	if arrStart >= 0 && (objStart < 0 || arrStart < objStart) {
		start, closer = arrStart, ']'
	}
	if start < 0 {
		return "", false
	}
	end := strings.LastIndexByte(text, closer)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// decodeForKind decodes text as the expected payload shape for the
// given result kind and normalizes it. Returns false when the text does
// not decode or does not match the shape.
func decodeForKind(kind model.ResultKind, text string) (json.RawMessage, bool) {
	switch kind {
	case model.KindFinancialMetrics:
		return decodeFinancial(text)
	case model.KindRiskAnalysis:
		return decodeRisk(text)
	case model.KindInvestmentMemo:
		return decodeMemo(text)
	case model.KindQuoteAnalysis:
		return decodeQuote(text)
	case model.KindChartAnalysis:
		return decodeChart(text)
	case model.KindConsistencyReport:
		return decodeConsistency(text)
	}
	return nil, false
}

var validMetricTypes = map[model.MetricType]bool{
	model.MetricRevenue:       true,
	model.MetricProfitability: true,
	model.MetricGrowth:        true,
	model.MetricMultiple:      true,
	model.MetricOther:         true,
}

// decodeFinancial normalizes to a bare metric array, accepting the
// array itself, a {"metrics": [...]} wrapper, or a single metric object.
func decodeFinancial(text string) (json.RawMessage, bool) {
	var metrics []model.FinancialMetric
	if err := json.Unmarshal([]byte(text), &metrics); err != nil {
		var wrapped struct {
			Metrics []model.FinancialMetric `json:"metrics"`
		}
		if err := json.Unmarshal([]byte(text), &wrapped); err == nil && len(wrapped.Metrics) > 0 {
			metrics = wrapped.Metrics
		} else {
			var one model.FinancialMetric
			if err := json.Unmarshal([]byte(text), &one); err != nil {
				return nil, false
			}
			metrics = []model.FinancialMetric{one}
		}
	}
	if len(metrics) == 0 {
		return nil, false
	}
	for i := range metrics {
		if metrics[i].MetricName == "" {
			return nil, false
		}
		mt := model.MetricType(strings.ToLower(string(metrics[i].MetricType)))
		if !validMetricTypes[mt] {
			mt = model.MetricOther
		}
		metrics[i].MetricType = mt
		metrics[i].ConfidenceScore = clamp01(metrics[i].ConfidenceScore)
	}
	payload, err := json.Marshal(metrics)
	return payload, err == nil
}

func decodeRisk(text string) (json.RawMessage, bool) {
	var risk model.RiskAnalysis
	if err := json.Unmarshal([]byte(text), &risk); err != nil {
		return nil, false
	}
	cats := risk.RiskCategories
	hasItems := len(cats.MarketRisks)+len(cats.FinancialRisks)+
		len(cats.OperationalRisks)+len(cats.RegulatoryRisks)+len(cats.OtherRisks) > 0
	if risk.RiskSummary == "" && !hasItems {
		return nil, false
	}
	for k, v := range risk.RiskScores {
		risk.RiskScores[k] = clamp01(v)
	}
	risk.ConfidenceScore = clamp01(risk.ConfidenceScore)
	payload, err := json.Marshal(risk)
	return payload, err == nil
}

var validGrades = map[string]bool{"A+": true, "A": true, "B+": true, "B": true, "C": true}

func decodeMemo(text string) (json.RawMessage, bool) {
	var memo model.InvestmentMemo
	if err := json.Unmarshal([]byte(text), &memo); err != nil {
		return nil, false
	}
	if memo.InvestmentGrade == "" && memo.ExecutiveSummary == "" {
		return nil, false
	}
	if !validGrades[memo.InvestmentGrade] {
		memo.InvestmentGrade = "B"
	}
	payload, err := json.Marshal(memo)
	return payload, err == nil
}

var (
	validQuoteTypes    = map[string]bool{"testimonial": true, "executive": true, "customer": true, "expert": true, "other": true}
	validSentiments    = map[string]bool{"positive": true, "negative": true, "neutral": true}
	validQuoteRelTypes = map[string]bool{"supports": true, "contradicts": true, "contextualizes": true}
)

func decodeQuote(text string) (json.RawMessage, bool) {
	var qa model.QuoteAnalysis
	if err := json.Unmarshal([]byte(text), &qa); err != nil {
		return nil, false
	}
	if qa.AnalysisSummary == "" && len(qa.Quotes) == 0 {
		return nil, false
	}
	for i := range qa.Quotes {
		q := &qa.Quotes[i]
		q.QuoteType = strings.ToLower(q.QuoteType)
		if !validQuoteTypes[q.QuoteType] {
			q.QuoteType = "other"
		}
		q.Metadata.Sentiment = strings.ToLower(q.Metadata.Sentiment)
		if !validSentiments[q.Metadata.Sentiment] {
			q.Metadata.Sentiment = "neutral"
		}
		q.SignificanceScore = clamp01(q.SignificanceScore)
	}
	for i := range qa.QuoteRelationships {
		rel := &qa.QuoteRelationships[i]
		rel.RelationshipType = strings.ToLower(rel.RelationshipType)
		if !validQuoteRelTypes[rel.RelationshipType] {
			rel.RelationshipType = "contextualizes"
		}
		rel.ConfidenceScore = clamp01(rel.ConfidenceScore)
	}
	qa.ConfidenceScore = clamp01(qa.ConfidenceScore)
	payload, err := json.Marshal(qa)
	return payload, err == nil
}

var (
	validChartTypes    = map[string]bool{"bar": true, "line": true, "pie": true, "table": true, "other": true}
	validChartRelTypes = map[string]bool{"explanation": true, "reference": true, "data_source": true}
)

func decodeChart(text string) (json.RawMessage, bool) {
	var ca model.ChartAnalysis
	if err := json.Unmarshal([]byte(text), &ca); err != nil {
		return nil, false
	}
	if ca.AnalysisSummary == "" && len(ca.ChartElements) == 0 {
		return nil, false
	}
	for i := range ca.ChartElements {
		el := &ca.ChartElements[i]
		el.ChartType = strings.ToLower(el.ChartType)
		if !validChartTypes[el.ChartType] {
			el.ChartType = "other"
		}
		el.ConfidenceScore = clamp01(el.ConfidenceScore)
	}
	for i := range ca.ChartRelationships {
		rel := &ca.ChartRelationships[i]
		rel.RelationshipType = strings.ToLower(rel.RelationshipType)
		if !validChartRelTypes[rel.RelationshipType] {
			rel.RelationshipType = "reference"
		}
		rel.ConfidenceScore = clamp01(rel.ConfidenceScore)
	}
	ca.ConfidenceScore = clamp01(ca.ConfidenceScore)
	payload, err := json.Marshal(ca)
	return payload, err == nil
}

var validSeverities = map[string]bool{"high": true, "medium": true, "low": true}

var validInconsistencyTypes = map[string]bool{
	"financial": true, "narrative": true, "metric": true, "timeline": true, "other": true,
}

func decodeConsistency(text string) (json.RawMessage, bool) {
	var report model.ConsistencyReport
	if err := json.Unmarshal([]byte(text), &report); err != nil {
		return nil, false
	}
	if report.ConsistencySummary == "" && len(report.Inconsistencies) == 0 {
		return nil, false
	}
	for i := range report.Inconsistencies {
		inc := &report.Inconsistencies[i]
		inc.Type = strings.ToLower(inc.Type)
		if !validInconsistencyTypes[inc.Type] {
			inc.Type = "other"
		}
		inc.Severity = strings.ToLower(inc.Severity)
		if !validSeverities[inc.Severity] {
			inc.Severity = "medium"
		}
	}
	for k, v := range report.ConsistencyScores {
		report.ConsistencyScores[k] = clamp01(v)
	}
	report.ConfidenceScore = clamp01(report.ConfidenceScore)
	payload, err := json.Marshal(report)
	return payload, err == nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
