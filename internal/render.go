package internal

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Render modes accepted by the "render" setting
const (
	RenderAuto     = "auto"
	RenderMarkdown = "markdown"
	RenderPlain    = "plain"
)

// ValidRenderMode reports whether mode is a known render setting
func ValidRenderMode(mode string) bool {
	switch mode {
	case RenderAuto, RenderMarkdown, RenderPlain:
		return true
	}
	return false
}

// AnswerRenderer turns answer markdown into terminal output
type AnswerRenderer struct {
	renderer *glamour.TermRenderer
}

// NewAnswerRenderer builds a renderer for mode. In auto mode answers are
// styled only when tty is true; plain mode never styles.
func NewAnswerRenderer(mode string, tty bool, width int) *AnswerRenderer {
	if mode == RenderPlain || (mode != RenderMarkdown && !tty) {
		return &AnswerRenderer{}
	}
	if width <= 0 {
		width = 100
	}

	style := glamour.WithAutoStyle()
	if !tty {
		style = glamour.WithStandardStyle("dark")
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		LogDebug("Markdown renderer unavailable: %v", err)
		return &AnswerRenderer{}
	}
	return &AnswerRenderer{renderer: r}
}

// Styled reports whether output is styled markdown
func (a *AnswerRenderer) Styled() bool {
	return a.renderer != nil
}

// Render returns the styled answer, or the raw text when styling is off or fails
func (a *AnswerRenderer) Render(md string) string {
	if a.renderer == nil || strings.TrimSpace(md) == "" {
		return md
	}
	out, err := a.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
