package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Markdown converts chat message markdown to HTML for display in a message bubble.
// Raw HTML in messages is omitted from the output, not passed through.
type Markdown struct {
	md goldmark.Markdown
}

// NewMarkdown creates a Markdown renderer with GitHub-flavoured extensions.
func NewMarkdown() *Markdown {
	return &Markdown{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Typographer,
			),
			goldmark.WithRendererOptions(
				html.WithHardWraps(),
			),
		),
	}
}

// Render converts source to HTML.
func (m *Markdown) Render(source string) (template.HTML, error) {
	var buf bytes.Buffer
	if err := m.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("failed to render markdown: %w", err)
	}
	return template.HTML(buf.String()), nil
}

// RenderOrEscape is Render with a fallback to escaped plain text, for templates.
func (m *Markdown) RenderOrEscape(source string) template.HTML {
	out, err := m.Render(source)
	if err != nil {
		return template.HTML("<p>" + template.HTMLEscapeString(source) + "</p>")
	}
	return out
}
