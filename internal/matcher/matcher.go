// Package matcher detects tool calls that are about to write a markdown
// file, so the engine can populate its pending-tool-write map (spec.md §3)
// and later resolve the written path back to a tool-call id when the
// matching tool_execution_end arrives.
//
// Grounded on the teacher's rule matcher (internal/engine/matcher.go), which
// pre-compiles gobwas/glob patterns once and matches tool-call argument
// fields against them. This package reuses that approach for a single
// fixed glob ("*.md") instead of a user-configurable rule set.
package matcher

import (
	"strings"

	"github.com/gobwas/glob"
)

// writeLikeTools are the tool names whose "path" argument is a write target.
// Matched case-insensitively, mirroring the teacher's tool-name comparison.
var writeLikeTools = map[string]bool{
	"write":      true,
	"write_file": true,
	"edit":       true,
	"edit_file":  true,
	"create":     true,
	"create_file": true,
}

// shellTools are tool names whose "command" argument may redirect output to
// a file via shell syntax (">", ">>", "tee").
var shellTools = map[string]bool{
	"bash":  true,
	"shell": true,
	"exec":  true,
	"run":   true,
}

var mdGlob = glob.MustCompile("*.md")

// Matcher decides whether a tool-call start targets a markdown file and, if
// so, extracts the path.
type Matcher struct{}

// New returns a ready-to-use Matcher. It carries no state: the glob pattern
// is fixed and compiled once at package init, like the teacher compiles its
// rule globs once at load time.
func New() *Matcher { return &Matcher{} }

// MarkdownTarget returns the markdown path a tool_execution_start is about
// to write, and true, or ("", false) if this tool call isn't write-like or
// doesn't target a ".md" path.
func (m *Matcher) MarkdownTarget(toolName string, args map[string]any) (string, bool) {
	name := strings.ToLower(toolName)

	if writeLikeTools[name] {
		if p := stringArg(args, "path"); p != "" && matchesMarkdown(p) {
			return p, true
		}
		if p := stringArg(args, "file_path"); p != "" && matchesMarkdown(p) {
			return p, true
		}
		return "", false
	}

	if shellTools[name] {
		if cmd := stringArg(args, "command"); cmd != "" {
			if p, ok := redirectTarget(cmd); ok {
				return p, true
			}
		}
		return "", false
	}

	return "", false
}

func matchesMarkdown(path string) bool {
	base := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		base = path[i+1:]
	}
	return mdGlob.Match(base)
}

// redirectTarget extracts a ">"/">>" or "tee" redirection target from a
// shell command line, if it ends in ".md". This is a best-effort scan, not a
// shell parser: it scans redirection operators from the end of the command
// and takes the token right after each one (or attached to it, as in
// ">out.md"); failing that, it takes the first non-flag ".md" token after
// the last "tee ".
func redirectTarget(command string) (string, bool) {
	fields := strings.Fields(command)
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		switch {
		case f == ">" || f == ">>":
			if i+1 < len(fields) {
				target := strings.Trim(fields[i+1], `"'`)
				if matchesMarkdown(target) {
					return target, true
				}
			}
		case strings.HasPrefix(f, ">") || strings.HasPrefix(f, ">>"):
			target := strings.TrimLeft(f, ">")
			target = strings.Trim(target, `"'`)
			if matchesMarkdown(target) {
				return target, true
			}
		}
	}
	if idx := strings.LastIndex(command, "tee "); idx >= 0 {
		rest := strings.Fields(command[idx+len("tee "):])
		for _, f := range rest {
			if strings.HasPrefix(f, "-") {
				continue
			}
			target := strings.Trim(f, `"'`)
			if matchesMarkdown(target) {
				return target, true
			}
		}
	}
	return "", false
}

func stringArg(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
