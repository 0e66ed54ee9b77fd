package model

import (
	"encoding/json"
	"time"
)

// ResultKind tags the structured output produced by an agent.
type ResultKind string

const (
	KindFinancialMetrics  ResultKind = "financial_metrics"
	KindRiskAnalysis      ResultKind = "risk_analysis"
	KindInvestmentMemo    ResultKind = "investment_memo"
	KindQuoteAnalysis     ResultKind = "quote_analysis"
	KindChartAnalysis     ResultKind = "chart_analysis"
	KindConsistencyReport ResultKind = "consistency_report"
)

// Confidence is the parser's assessment of how reliably raw model
// output was structured.
type Confidence string

const (
	ConfidenceExact     Confidence = "exact"     // whole response decoded directly
	ConfidenceExtracted Confidence = "extracted" // recovered from a fence or brace span
	ConfidenceFallback  Confidence = "fallback"  // synthesized from unparsed text
)

// AnalysisResult is the parsed, validated structured output of one
// agent. Produced exactly once per successful AgentRun; immutable after
// creation.
type AnalysisResult struct {
	ID         string          `json:"id"`
	AgentRunID string          `json:"agent_run_id"`
	DocumentID string          `json:"document_id"`
	DealID     string          `json:"deal_id"`
	Kind       ResultKind      `json:"kind"`
	Confidence Confidence      `json:"confidence"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"created_at"`
}

// MetricType categorizes a financial metric.
type MetricType string

const (
	MetricRevenue       MetricType = "revenue"
	MetricProfitability MetricType = "profitability"
	MetricGrowth        MetricType = "growth"
	MetricMultiple      MetricType = "multiple"
	MetricOther         MetricType = "other"
)

// FinancialMetric is one KPI tuple extracted from the document.
// MetricValue preserves units ($, %, x) as stated in the source.
type FinancialMetric struct {
	MetricName      string     `json:"metric_name"`
	MetricValue     string     `json:"metric_value"`
	MetricType      MetricType `json:"metric_type"`
	TimePeriod      string     `json:"time_period"`
	SourceSection   string     `json:"source_section"`
	ConfidenceScore float64    `json:"confidence_score"`
}

// RiskAnalysis is the risk agent's structured payload.
type RiskAnalysis struct {
	RiskSummary          string             `json:"risk_summary"`
	RiskCategories       RiskCategories     `json:"risk_categories"`
	RiskScores           map[string]float64 `json:"risk_scores"`
	MitigationStrategies []string           `json:"mitigation_strategies"`
	ConfidenceScore      float64            `json:"confidence_score"`
}

// RiskCategories buckets identified risks.
type RiskCategories struct {
	MarketRisks      []string `json:"market_risks"`
	FinancialRisks   []string `json:"financial_risks"`
	OperationalRisks []string `json:"operational_risks"`
	RegulatoryRisks  []string `json:"regulatory_risks"`
	OtherRisks       []string `json:"other_risks"`
}

// InvestmentMemo is the memo agent's structured payload. The grade is
// constrained to the letter scale used by the deal review process.
type InvestmentMemo struct {
	InvestmentGrade      string          `json:"investment_grade"`
	ExecutiveSummary     string          `json:"executive_summary"`
	BusinessModel        map[string]any  `json:"business_model"`
	FinancialMetrics     map[string]any  `json:"financial_metrics"`
	KeyRisks             map[string]any  `json:"key_risks"`
	CompetitivePosition  map[string]any  `json:"competitive_position"`
	Recommendation       map[string]any  `json:"recommendation"`
	InvestmentHighlights []string        `json:"investment_highlights"`
	ManagementQuestions  []string        `json:"management_questions"`
	RawResponse          json.RawMessage `json:"-"`
}

// Quote is one extracted statement with speaker context.
type Quote struct {
	QuoteText         string        `json:"quote_text"`
	Speaker           string        `json:"speaker"`
	SpeakerTitle      string        `json:"speaker_title"`
	Context           string        `json:"context"`
	SignificanceScore float64       `json:"significance_score"`
	QuoteType         string        `json:"quote_type"` // testimonial, executive, customer, expert, other
	Metadata          QuoteMetadata `json:"metadata"`
}

// QuoteMetadata carries sentiment and topical tags for a quote.
type QuoteMetadata struct {
	Sentiment     string   `json:"sentiment"` // positive, negative, neutral
	Topics        []string `json:"topics"`
	KeyPoints     []string `json:"key_points"`
	SourceSection string   `json:"source_section"`
}

// QuoteRelationship links a quote to a metric or KPI it speaks to.
type QuoteRelationship struct {
	QuoteID          string  `json:"quote_id"`
	RelatedMetric    string  `json:"related_metric"`
	RelationshipType string  `json:"relationship_type"` // supports, contradicts, contextualizes
	ConfidenceScore  float64 `json:"confidence_score"`
}

// QuoteAnalysis is the quote agent's structured payload.
type QuoteAnalysis struct {
	Quotes             []Quote             `json:"quotes"`
	QuoteRelationships []QuoteRelationship `json:"quote_relationships"`
	AnalysisSummary    string              `json:"analysis_summary"`
	ConfidenceScore    float64             `json:"confidence_score"`
}

// ChartElement is one chart, graph, or table described in the document.
type ChartElement struct {
	ChartType       string         `json:"chart_type"` // bar, line, pie, table, other
	Title           string         `json:"title"`
	Description     string         `json:"description"`
	DataPoints      map[string]any `json:"data_points"`
	SourcePage      int            `json:"source_page"`
	ConfidenceScore float64        `json:"confidence_score"`
	Metadata        ChartMetadata  `json:"metadata"`
}

// ChartMetadata carries axis, unit, and sourcing detail for a chart.
type ChartMetadata struct {
	AxisLabels []string `json:"axis_labels"`
	Units      []string `json:"units"`
	Categories []string `json:"categories"`
	TimePeriod string   `json:"time_period"`
	Source     string   `json:"source"`
}

// ChartRelationship ties a chart to the text that explains or cites it.
type ChartRelationship struct {
	ChartID          string  `json:"chart_id"`
	RelatedText      string  `json:"related_text"`
	RelationshipType string  `json:"relationship_type"` // explanation, reference, data_source
	ConfidenceScore  float64 `json:"confidence_score"`
}

// ChartAnalysis is the chart agent's structured payload.
type ChartAnalysis struct {
	ChartElements      []ChartElement      `json:"chart_elements"`
	ChartRelationships []ChartRelationship `json:"chart_relationships"`
	AnalysisSummary    string              `json:"analysis_summary"`
	ConfidenceScore    float64             `json:"confidence_score"`
}

// Inconsistency is one contradiction found by the consistency agent.
type Inconsistency struct {
	Type        string `json:"type"`     // financial, narrative, metric, timeline, other
	Description string `json:"description"`
	Location    string `json:"location"`
	Severity    string `json:"severity"` // high, medium, low
	Impact      string `json:"impact"`
	Resolution  string `json:"resolution"`
}

// ConsistencyReport is the consistency agent's structured payload.
type ConsistencyReport struct {
	ConsistencySummary string             `json:"consistency_summary"`
	Inconsistencies    []Inconsistency    `json:"inconsistencies"`
	ConsistencyScores  map[string]float64 `json:"consistency_scores"`
	Recommendations    []string           `json:"recommendations"`
	ConfidenceScore    float64            `json:"confidence_score"`
}
