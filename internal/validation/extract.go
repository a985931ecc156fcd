// Package validation implements the diagram fix-loop: extracting mermaid
// blocks from a rendered HTML document, validating each through an external
// validator, and synthesizing a fix prompt for the agent when any fail
// (spec.md §4.3).
package validation

import "strings"

// Block is one extracted diagram, in document order.
type Block struct {
	Index  int
	Source string
}

// Extract scans html for `<pre class="mermaid">…</pre>` and
// `<div class="mermaid">…</div>` blocks, trimmed, returning them in order.
// This mirrors the teacher's extractor style (internal/extractor/*.go): a
// pure function over a byte/string body that returns nil on no matches
// rather than an error.
func Extract(html string) []Block {
	var blocks []Block
	for _, tag := range []string{"pre", "div"} {
		blocks = append(blocks, extractTag(html, tag)...)
	}
	return orderByPosition(html, blocks)
}

func extractTag(html, tag string) []Block {
	open := "<" + tag + " class=\"mermaid\">"
	closeTag := "</" + tag + ">"

	var out []Block
	rest := html
	offset := 0
	for {
		i := strings.Index(rest, open)
		if i < 0 {
			break
		}
		start := i + len(open)
		j := strings.Index(rest[start:], closeTag)
		if j < 0 {
			break
		}
		source := strings.TrimSpace(rest[start : start+j])
		out = append(out, Block{Index: offset + i, Source: source})
		advance := start + j + len(closeTag)
		rest = rest[advance:]
		offset += advance
	}
	return out
}

// orderByPosition sorts extracted blocks by document position (the Index
// field temporarily holds byte offset) and then renumbers them 0..n-1, the
// shape the rest of the package expects.
func orderByPosition(html string, blocks []Block) []Block {
	for i := 0; i < len(blocks); i++ {
		for j := i + 1; j < len(blocks); j++ {
			if blocks[j].Index < blocks[i].Index {
				blocks[i], blocks[j] = blocks[j], blocks[i]
			}
		}
	}
	for i := range blocks {
		blocks[i].Index = i
	}
	return blocks
}
