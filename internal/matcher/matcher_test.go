package matcher

import "testing"

func TestMarkdownTarget_WriteTool(t *testing.T) {
	m := New()

	cases := []struct {
		name     string
		tool     string
		args     map[string]any
		wantPath string
		wantOK   bool
	}{
		{
			name:     "write to markdown path",
			tool:     "write",
			args:     map[string]any{"path": "docs/plan.md"},
			wantPath: "docs/plan.md",
			wantOK:   true,
		},
		{
			name:   "write to non-markdown path",
			tool:   "write",
			args:   map[string]any{"path": "docs/plan.txt"},
			wantOK: false,
		},
		{
			name:     "edit_file with file_path arg",
			tool:     "edit_file",
			args:     map[string]any{"file_path": "README.md"},
			wantPath: "README.md",
			wantOK:   true,
		},
		{
			name:   "unrelated tool",
			tool:   "read",
			args:   map[string]any{"path": "notes.md"},
			wantOK: false,
		},
		{
			name:     "tool name case insensitive",
			tool:     "WRITE",
			args:     map[string]any{"path": "x.md"},
			wantPath: "x.md",
			wantOK:   true,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path, ok := m.MarkdownTarget(c.tool, c.args)
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if ok && path != c.wantPath {
				t.Fatalf("path = %q, want %q", path, c.wantPath)
			}
		})
	}
}

func TestMarkdownTarget_ShellRedirect(t *testing.T) {
	m := New()

	cases := []struct {
		name     string
		command  string
		wantPath string
		wantOK   bool
	}{
		{
			name:     "simple redirect",
			command:  "echo hello > notes.md",
			wantPath: "notes.md",
			wantOK:   true,
		},
		{
			name:     "append redirect",
			command:  "cat extra.txt >> report.md",
			wantPath: "report.md",
			wantOK:   true,
		},
		{
			name:     "attached redirect operator",
			command:  "echo hi >out.md",
			wantPath: "out.md",
			wantOK:   true,
		},
		{
			name:     "tee pipeline",
			command:  "echo hi | tee summary.md",
			wantPath: "summary.md",
			wantOK:   true,
		},
		{
			name:    "redirect to non-markdown file",
			command: "echo hi > out.txt",
			wantOK:  false,
		},
		{
			name:    "no redirection",
			command: "ls -la",
			wantOK:  false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path, ok := m.MarkdownTarget("bash", map[string]any{"command": c.command})
			if ok != c.wantOK {
				t.Fatalf("ok = %v, want %v", ok, c.wantOK)
			}
			if ok && path != c.wantPath {
				t.Fatalf("path = %q, want %q", path, c.wantPath)
			}
		})
	}
}
