package agent

import (
	"github.com/sells-group/dealmate/internal/model"
)

// Chart extracts charts, graphs, and tables described in the document
// text, structuring their data points and linking them to the prose
// that cites them.
type Chart struct{}

func (Chart) Name() string { return "chart" }
func (Chart) UseCase() model.UseCase { return model.UseCaseCIMAnalysis }
func (Chart) Kind() model.ResultKind { return model.KindChartAnalysis }
func (Chart) SectionHint() string { return "" }
func (Chart) MaxTokens() int64 { return defaultMaxTokens }

const chartSchema = `{
  "chart_elements": [
    {
      "chart_type": "bar|line|pie|table|other",
      "title": "string",
      "description": "string",
      "data_points": {},
      "source_page": 0,
      "confidence_score": 0.0,
      "metadata": {
        "axis_labels": ["string"],
        "units": ["string"],
        "categories": ["string"],
        "time_period": "string",
        "source": "string"
      }
    }
  ],
  "chart_relationships": [
    {
      "chart_id": "string",
      "related_text": "string",
      "relationship_type": "explanation|reference|data_source",
      "confidence_score": 0.0
    }
  ],
  "analysis_summary": "string",
  "confidence_score": 0.0
}`

func (Chart) BuildPrompt(ec ExecContext) (string, error) {
	var b promptBuilder
	b.line("You are a chart analysis expert cataloguing the charts, graphs, and tables in a Confidential Information Memorandum (CIM).")
	b.line("")
	b.line("Identify every visual element the text describes or reproduces: financial tables, trend charts, market share graphics. Classify each, structure its data points, and note where the surrounding prose explains or cites it.")
	b.line("")
	b.line("Respond with JSON only, matching this schema exactly:")
	b.line(chartSchema)
	b.line("")
	b.line("Rules:")
	b.line("- chart_type is one of bar, line, pie, table, other.")
	b.line("- data_points holds the structured values, keyed appropriately for the chart type.")
	b.line("- Confidence scores are between 0.0 and 1.0; use source_page 0 when the page is unknown.")
	b.line("")
	b.line("Document:")
	b.raw(joinChunks(ec.Chunks))
	return b.String(), nil
}
