// Package render provides the concrete engine.Renderer cmd/explorerd wires
// in: it turns the agent's markdown document into an HTML body fragment on
// disk using goldmark, the markdown library the retrieval pack's own agent
// projects standardize on (e.g. 2389-research-mammoth, nevindra-oasis,
// mark3labs-kit all require github.com/yuin/goldmark).
//
// spec.md §1 treats the renderer as a pure `(markdown path) -> html path`
// function external to the engine core; this package is that function's one
// concrete implementation, used only by cmd/explorerd.
package render

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// ToHTML reads the markdown file at markdownPath, converts it to an HTML
// fragment, and writes it alongside as "<name>.html". Matches
// engine.Renderer's signature exactly.
func ToHTML(markdownPath string) (htmlPath string, err error) {
	src, err := os.ReadFile(markdownPath)
	if err != nil {
		return "", fmt.Errorf("reading markdown %s: %w", markdownPath, err)
	}

	var buf bytes.Buffer
	if err := markdown.Convert(src, &buf); err != nil {
		return "", fmt.Errorf("converting markdown %s: %w", markdownPath, err)
	}

	ext := filepath.Ext(markdownPath)
	htmlPath = markdownPath[:len(markdownPath)-len(ext)] + ".html"
	if err := os.WriteFile(htmlPath, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("writing html %s: %w", htmlPath, err)
	}
	return htmlPath, nil
}
