package internal

import (
	"strings"
	"testing"
)

func TestValidRenderMode(t *testing.T) {
	for _, mode := range []string{"auto", "markdown", "plain"} {
		if !ValidRenderMode(mode) {
			t.Errorf("ValidRenderMode(%q) = false", mode)
		}
	}
	if ValidRenderMode("fancy") {
		t.Error("ValidRenderMode(\"fancy\") = true")
	}
}

func TestAnswerRenderer_Modes(t *testing.T) {
	tests := []struct {
		name       string
		mode       string
		tty        bool
		wantStyled bool
	}{
		{"auto on a pipe", RenderAuto, false, false},
		{"plain on a terminal", RenderPlain, true, false},
		{"forced markdown on a pipe", RenderMarkdown, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewAnswerRenderer(tt.mode, tt.tty, 80)
			if r.Styled() != tt.wantStyled {
				t.Errorf("Styled() = %v, want %v", r.Styled(), tt.wantStyled)
			}
		})
	}
}

func TestAnswerRenderer_PlainPassesThrough(t *testing.T) {
	md := "The handbook covers **onboarding**."
	if got := NewAnswerRenderer(RenderPlain, true, 80).Render(md); got != md {
		t.Errorf("Render() = %q, want unchanged", got)
	}
}

func TestAnswerRenderer_Markdown(t *testing.T) {
	r := NewAnswerRenderer(RenderMarkdown, false, 80)
	got := r.Render("The handbook covers **onboarding** and `expenses`.")
	if !strings.Contains(got, "onboarding") || !strings.Contains(got, "expenses") {
		t.Errorf("Render() lost text: %q", got)
	}
	if strings.HasPrefix(got, "\n") || strings.HasSuffix(got, "\n") {
		t.Errorf("Render() should trim surrounding newlines: %q", got)
	}
	if r.Render("   ") != "   " {
		t.Error("blank input should pass through")
	}
}
