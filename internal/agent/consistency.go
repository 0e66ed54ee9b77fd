package agent

import (
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/dealmate/internal/model"
)

// Consistency cross-checks the document against the financial and memo
// outputs. It is the only agent with upstream dependencies: BuildPrompt
// fails when neither prior result is available.
type Consistency struct{}

func (Consistency) Name() string { return "consistency" }
func (Consistency) UseCase() model.UseCase { return model.UseCaseCIMAnalysis }
func (Consistency) Kind() model.ResultKind { return model.KindConsistencyReport }
func (Consistency) SectionHint() string { return "" }
func (Consistency) MaxTokens() int64 { return defaultMaxTokens }

const consistencySchema = `{
  "consistency_summary": "string",
  "inconsistencies": [
    {
      "type": "financial|narrative|metric|timeline|other",
      "description": "string",
      "location": "string",
      "severity": "high|medium|low",
      "impact": "string",
      "resolution": "string"
    }
  ],
  "consistency_scores": {"financial": 0.0, "narrative": 0.0, "overall": 0.0},
  "recommendations": ["string"],
  "confidence_score": 0.0
}`

func (Consistency) BuildPrompt(ec ExecContext) (string, error) {
	if ec.Prior == nil || (len(ec.Prior.FinancialMetrics) == 0 && ec.Prior.Memo == nil) {
		return "", eris.New("consistency agent requires at least one prior analysis result")
	}

	var b promptBuilder
	b.line("You are a quality reviewer checking a Confidential Information Memorandum (CIM) analysis for internal contradictions.")
	b.line("")
	b.line("Compare the document against the extracted metrics and the draft memo below. Flag every inconsistency: numbers that disagree between sections, narrative claims the financials contradict, timeline conflicts, and metrics that changed between analyses.")
	b.line("")
	b.line("Respond with JSON only, matching this schema exactly:")
	b.line(consistencySchema)
	b.line("")

	if len(ec.Prior.FinancialMetrics) > 0 {
		metrics, err := json.Marshal(ec.Prior.FinancialMetrics)
		if err != nil {
			return "", eris.Wrap(err, "consistency: marshal prior metrics")
		}
		b.line("Extracted financial metrics:")
		b.line(string(metrics))
		b.line("")
	}
	if ec.Prior.Memo != nil {
		memo, err := json.Marshal(ec.Prior.Memo)
		if err != nil {
			return "", eris.Wrap(err, "consistency: marshal prior memo")
		}
		b.line("Draft investment memo:")
		b.line(string(memo))
		b.line("")
	}

	b.line("Document:")
	b.raw(joinChunks(ec.Chunks))
	return b.String(), nil
}
