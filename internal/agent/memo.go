package agent

import (
	"github.com/sells-group/dealmate/internal/model"
)

// Memo drafts the investment memo, including the letter grade used by
// the deal review process.
type Memo struct{}

func (Memo) Name() string { return "memo" }
func (Memo) UseCase() model.UseCase { return model.UseCaseCIMAnalysis }
func (Memo) Kind() model.ResultKind { return model.KindInvestmentMemo }
func (Memo) SectionHint() string { return "" }
func (Memo) MaxTokens() int64 { return defaultMaxTokens }

const memoSchema = `{
  "investment_grade": "A+|A|B+|B|C",
  "executive_summary": "string",
  "business_model": {"description": "string", "revenue_streams": ["string"], "moat": "string"},
  "financial_metrics": {"summary": "string"},
  "key_risks": {"summary": "string"},
  "competitive_position": {"summary": "string"},
  "recommendation": {"action": "string", "rationale": "string"},
  "investment_highlights": ["string"],
  "management_questions": ["string"]
}`

func (Memo) BuildPrompt(ec ExecContext) (string, error) {
	var b promptBuilder
	b.line("You are a private equity associate drafting an investment memo from a Confidential Information Memorandum (CIM).")
	b.line("")
	b.line("Write a structured memo assessing the opportunity: business model, financial picture, key risks, competitive position, and a recommendation with an overall letter grade.")
	b.line("")
	b.line("Respond with JSON only, matching this schema exactly:")
	b.line(memoSchema)
	b.line("")
	b.line("Rules:")
	b.line("- investment_grade must be one of A+, A, B+, B, C.")
	b.line("- executive_summary is a single paragraph a partner can read in under a minute.")
	b.line("- management_questions lists the open questions the document left unanswered.")
	b.line("")
	b.line("Document:")
	b.raw(joinChunks(ec.Chunks))
	return b.String(), nil
}
