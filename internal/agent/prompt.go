package agent

import "strings"

// promptBuilder assembles prompts line by line. Thin wrapper so agent
// prompt code reads as a sequence of statements rather than one giant
// string literal.
type promptBuilder struct {
	b strings.Builder
}

func (p *promptBuilder) line(s string) {
	p.b.WriteString(s)
	p.b.WriteString("\n")
}

// raw appends text without a trailing newline.
func (p *promptBuilder) raw(s string) {
	p.b.WriteString(s)
}

func (p *promptBuilder) String() string {
	return p.b.String()
}
