package agent

import (
	"github.com/sells-group/dealmate/internal/model"
)

// Risk identifies and categorizes deal risks.
type Risk struct{}

func (Risk) Name() string { return "risk" }
func (Risk) UseCase() model.UseCase { return model.UseCaseRiskAnalysis }
func (Risk) Kind() model.ResultKind { return model.KindRiskAnalysis }
func (Risk) SectionHint() string { return "Risk Factors" }
func (Risk) MaxTokens() int64 { return defaultMaxTokens }

const riskSchema = `{
  "risk_summary": "string",
  "risk_categories": {
    "market_risks": ["string"],
    "financial_risks": ["string"],
    "operational_risks": ["string"],
    "regulatory_risks": ["string"],
    "other_risks": ["string"]
  },
  "risk_scores": {"market": 0.0, "financial": 0.0, "operational": 0.0, "regulatory": 0.0},
  "mitigation_strategies": ["string"],
  "confidence_score": 0.0
}`

func (Risk) BuildPrompt(ec ExecContext) (string, error) {
	var b promptBuilder
	b.line("You are a due diligence analyst assessing risk in an acquisition target described by a Confidential Information Memorandum (CIM).")
	b.line("")
	b.line("Identify the material risks to the investment thesis. Classify each into market, financial, operational, regulatory, or other. Score each category from 0.0 (negligible) to 1.0 (severe) and suggest concrete mitigation strategies.")
	b.line("")
	b.line("Respond with JSON only, matching this schema exactly:")
	b.line(riskSchema)
	b.line("")
	b.line("Rules:")
	b.line("- Ground every risk in the document. Do not speculate beyond what the text supports.")
	b.line("- risk_summary is two or three sentences covering the dominant risks.")
	b.line("- confidence_score reflects how completely the document discloses its risk profile.")
	b.line("")
	b.line("Document:")
	b.raw(joinChunks(ec.Chunks))
	return b.String(), nil
}
