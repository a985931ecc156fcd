// Package mermaidcheck provides the concrete validation.ValidatorFunc
// cmd/explorerd wires into the engine's diagram fix-loop.
//
// There is no Go or Node mermaid-cli dependency anywhere in the retrieval
// pack, and shelling out to the upstream "mmdc" tool would make every
// session depend on a Node toolchain the rest of this module never
// otherwise requires — so this is one of the few stdlib-only pieces of the
// whole project (see DESIGN.md). It catches the class of error spec.md's
// own worked example exercises (an unclosed/malformed diagram block)
// without attempting a full mermaid grammar.
package mermaidcheck

import "strings"

var knownDiagramTypes = []string{
	"graph", "flowchart", "sequenceDiagram", "classDiagram", "stateDiagram",
	"stateDiagram-v2", "erDiagram", "gantt", "pie", "journey", "gitGraph",
	"mindmap", "timeline", "quadrantChart", "sankey-beta",
}

// Validate performs a shallow structural check: the block must declare a
// known diagram type on its first non-blank line and its brackets must
// balance. Matches validation.ValidatorFunc's signature.
func Validate(source string) (ok bool, errText string) {
	trimmed := strings.TrimSpace(source)
	if trimmed == "" {
		return false, "empty diagram block"
	}

	firstLine := strings.TrimSpace(strings.SplitN(trimmed, "\n", 2)[0])
	recognized := false
	for _, kind := range knownDiagramTypes {
		if strings.HasPrefix(firstLine, kind) {
			recognized = true
			break
		}
	}
	if !recognized {
		return false, "unrecognized diagram type: " + firstLine
	}

	if err := checkBalanced(trimmed); err != "" {
		return false, err
	}

	return true, ""
}

func checkBalanced(s string) string {
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	var stack []rune
	for _, r := range s {
		switch r {
		case '(', '[', '{':
			stack = append(stack, r)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[r] {
				return "unbalanced bracket near '" + string(r) + "'"
			}
			stack = stack[:len(stack)-1]
		}
	}
	if len(stack) != 0 {
		return "unclosed bracket '" + string(stack[len(stack)-1]) + "'"
	}
	return ""
}
