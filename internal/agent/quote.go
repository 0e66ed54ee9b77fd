package agent

import (
	"github.com/sells-group/dealmate/internal/model"
)

// Quote extracts quotes, testimonials, and key statements, with speaker
// context, sentiment, and links back to the metrics they speak to.
type Quote struct{}

func (Quote) Name() string { return "quote" }
func (Quote) UseCase() model.UseCase { return model.UseCaseCIMAnalysis }
func (Quote) Kind() model.ResultKind { return model.KindQuoteAnalysis }
func (Quote) SectionHint() string { return "" }
func (Quote) MaxTokens() int64 { return defaultMaxTokens }

const quoteSchema = `{
  "quotes": [
    {
      "quote_text": "string",
      "speaker": "string",
      "speaker_title": "string",
      "context": "string (surrounding context)",
      "significance_score": 0.0,
      "quote_type": "testimonial|executive|customer|expert|other",
      "metadata": {
        "sentiment": "positive|negative|neutral",
        "topics": ["string"],
        "key_points": ["string"],
        "source_section": "string"
      }
    }
  ],
  "quote_relationships": [
    {
      "quote_id": "string",
      "related_metric": "string",
      "relationship_type": "supports|contradicts|contextualizes",
      "confidence_score": 0.0
    }
  ],
  "analysis_summary": "string",
  "confidence_score": 0.0
}`

func (Quote) BuildPrompt(ec ExecContext) (string, error) {
	var b promptBuilder
	b.line("You are a quote analysis expert extracting quotes, testimonials, and key statements from a Confidential Information Memorandum (CIM).")
	b.line("")
	b.line("Identify every direct quote and attributed statement: management commentary, customer testimonials, and expert opinions. Capture who said it, in what context, and how significant it is to the investment story. Where a quote speaks to a metric or KPI, record the relationship.")
	b.line("")
	b.line("Respond with JSON only, matching this schema exactly:")
	b.line(quoteSchema)
	b.line("")
	b.line("Rules:")
	b.line("- quote_text is verbatim from the document; do not paraphrase.")
	b.line("- significance_score and confidence_score are between 0.0 and 1.0.")
	b.line("- quote_type is one of testimonial, executive, customer, expert, other.")
	b.line("- sentiment is one of positive, negative, neutral.")
	b.line("")
	b.line("Document:")
	b.raw(joinChunks(ec.Chunks))
	return b.String(), nil
}
