package chunk

import (
	"strings"

	"github.com/sells-group/dealmate/internal/model"
)

// DefaultBudget is the default per-chunk token budget. It leaves
// generous headroom under every profile's context window once the
// prompt scaffolding is added.
const DefaultBudget = 6000

// EstimateTokens approximates the token count of a text span. The
// 4-bytes-per-token heuristic matches what the billing reports show
// for English business prose; the planner only needs an upper-bound
// estimate, the transport reports exact counts after each call.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Plan splits document text into an ordered sequence of chunks covering
// the full text with no gaps and no overlaps, each at or under the
// token budget. Splits prefer paragraph boundaries; a single paragraph
// over the budget is hard-split at the budget boundary. Deterministic
// and side-effect-free: the same text and budget always produce the
// same sequence.
func Plan(text string, budget int, sectionHint string) []model.Chunk {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if text == "" {
		return nil
	}

	maxBytes := budget * 4

	var chunks []model.Chunk
	var curStart, curEnd int

	flush := func() {
		if curEnd <= curStart {
			return
		}
		chunkText := text[curStart:curEnd]
		c := model.Chunk{
			Index:         len(chunks),
			Start:         curStart,
			End:           curEnd,
			TokenEstimate: EstimateTokens(chunkText),
			Text:          chunkText,
		}
		if sectionHint != "" && containsFold(chunkText, sectionHint) {
			c.Section = sectionHint
		}
		chunks = append(chunks, c)
		curStart = curEnd
	}

	for _, seg := range segments(text) {
		segBytes := seg.end - seg.start

		if segBytes > maxBytes {
			// Oversized paragraph: flush what we have, then hard-split
			// the paragraph itself at the budget boundary.
			flush()
			for curStart < seg.end {
				curEnd = curStart + maxBytes
				if curEnd > seg.end {
					curEnd = seg.end
				}
				flush()
			}
			continue
		}

		if (curEnd-curStart)+segBytes > maxBytes {
			flush()
		}
		curEnd = seg.end
	}
	flush()

	return chunks
}

// Label returns a copy of the chunk sequence with Section set on every
// chunk whose text matches the hint. The input slice is never mutated,
// so one plan can be shared read-only across agents with different
// section preferences.
func Label(chunks []model.Chunk, sectionHint string) []model.Chunk {
	if sectionHint == "" {
		return chunks
	}
	out := make([]model.Chunk, len(chunks))
	copy(out, chunks)
	for i := range out {
		if containsFold(out[i].Text, sectionHint) {
			out[i].Section = sectionHint
		}
	}
	return out
}

// span is a half-open byte range within the document text.
type span struct {
	start, end int
}

// segments splits text into paragraph spans. Each span ends after the
// paragraph's trailing newline run, so concatenating the spans in order
// reproduces the text exactly.
func segments(text string) []span {
	var out []span
	start := 0
	for start < len(text) {
		idx := strings.Index(text[start:], "\n\n")
		if idx < 0 {
			out = append(out, span{start, len(text)})
			break
		}
		end := start + idx
		// Absorb the full newline run into this segment.
		for end < len(text) && text[end] == '\n' {
			end++
		}
		out = append(out, span{start, end})
		start = end
	}
	return out
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
