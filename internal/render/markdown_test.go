package render

import (
	"strings"
	"testing"
)

func TestMarkdown_Render(t *testing.T) {
	m := NewMarkdown()

	tests := []struct {
		name     string
		source   string
		contains []string
		excludes []string
	}{
		{
			name:     "emphasis and code",
			source:   "**bold** and `code`",
			contains: []string{"<strong>bold</strong>", "<code>code</code>"},
		},
		{
			name:     "fenced code block",
			source:   "```go\nfmt.Println(1)\n```",
			contains: []string{`<pre><code class="language-go">`},
		},
		{
			name:     "table",
			source:   "| a | b |\n|---|---|\n| 1 | 2 |",
			contains: []string{"<table>", "<td>1</td>"},
		},
		{
			name:     "raw html is omitted",
			source:   "<script>alert(1)</script>",
			contains: []string{"<!-- raw HTML omitted -->"},
			excludes: []string{"<script>", "&lt;script&gt;"},
		},
		{
			name:     "autolinks",
			source:   "see https://build.nvidia.com",
			contains: []string{`<a href="https://build.nvidia.com">`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := m.Render(tt.source)
			if err != nil {
				t.Fatalf("Render() error = %v", err)
			}
			for _, want := range tt.contains {
				if !strings.Contains(string(out), want) {
					t.Errorf("Render() = %q, want it to contain %q", out, want)
				}
			}
			for _, bad := range tt.excludes {
				if strings.Contains(string(out), bad) {
					t.Errorf("Render() = %q, must not contain %q", out, bad)
				}
			}
		})
	}
}

func TestMarkdown_RenderOrEscape(t *testing.T) {
	out := NewMarkdown().RenderOrEscape("plain")
	if !strings.Contains(string(out), "plain") {
		t.Errorf("RenderOrEscape() = %q", out)
	}
}
