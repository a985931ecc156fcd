package engine

import (
	"fmt"
	"strings"

	"github.com/explorerd/explorerd/internal/session"
)

// buildInitialPrompt assembles the exploration prompt from (cwd, prompt,
// depth, scope) per spec.md §2 step 3. This is the one user message
// history extraction always skips (spec.md §4.5).
func buildInitialPrompt(m session.Meta) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Explore the source tree at %s", m.Cwd)
	if m.Focus != "" {
		fmt.Fprintf(&b, ", focusing on %s", m.Focus)
	}
	if len(m.Scope) > 0 {
		fmt.Fprintf(&b, ", limited to: %s", strings.Join(m.Scope, ", "))
	}
	fmt.Fprintf(&b, ". Depth: %s.\n\n", m.Depth)

	if m.Prompt != "" {
		fmt.Fprintf(&b, "%s\n\n", m.Prompt)
	}

	b.WriteString("Write your findings as a single Markdown document, using mermaid diagrams (fenced as ```mermaid blocks, which the renderer turns into <pre class=\"mermaid\">) where a diagram clarifies structure or flow better than prose.\n")
	return b.String()
}
