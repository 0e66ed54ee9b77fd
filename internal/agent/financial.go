package agent

import (
	"github.com/sells-group/dealmate/internal/model"
)

// Financial extracts quantitative KPIs from CIM text.
type Financial struct{}

func (Financial) Name() string { return "financial" }
func (Financial) UseCase() model.UseCase { return model.UseCaseCIMAnalysis }
func (Financial) Kind() model.ResultKind { return model.KindFinancialMetrics }
func (Financial) SectionHint() string { return "Financial Overview" }
func (Financial) MaxTokens() int64 { return defaultMaxTokens }

const financialSchema = `{
  "metrics": [
    {
      "metric_name": "string",
      "metric_value": "string (preserve units: $, %, x)",
      "metric_type": "revenue|profitability|growth|multiple|other",
      "time_period": "string (e.g. FY2023, TTM, Q3 2024)",
      "source_section": "string",
      "confidence_score": 0.0
    }
  ]
}`

func (Financial) BuildPrompt(ec ExecContext) (string, error) {
	var b promptBuilder
	b.line("You are a financial analyst extracting key metrics from a Confidential Information Memorandum (CIM).")
	b.line("")
	b.line("Extract every financial metric you can find: revenue, EBITDA, margins, growth rates, valuation multiples, and any other quantitative KPI. Preserve the value exactly as stated in the document, including units.")
	b.line("")
	b.line("Respond with JSON only, matching this schema exactly:")
	b.line(financialSchema)
	b.line("")
	b.line("Rules:")
	b.line("- confidence_score is between 0.0 and 1.0, reflecting how explicitly the document states the metric.")
	b.line("- Do not invent metrics. If a value is ambiguous, lower the confidence_score rather than guessing.")
	b.line("- source_section names the document section the metric came from.")
	b.line("")
	b.line("Document:")
	b.raw(joinChunks(ec.Chunks))
	return b.String(), nil
}
