package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iksnae/rag-client/internal"
)

// MarkdownExporter exports conversations in Markdown format
type MarkdownExporter struct{}

// Export exports a conversation to Markdown format
func (e *MarkdownExporter) Export(conv *internal.Conversation, w io.Writer) error {
	_, _ = fmt.Fprintf(w, "# %s\n\n", conv.Title())
	_, _ = fmt.Fprintf(w, "**Conversation:** %s  \n", conv.ID)
	if conv.SessionID != "" {
		_, _ = fmt.Fprintf(w, "**Session:** %s  \n", conv.SessionID)
	}
	if !conv.CreatedAt.IsZero() {
		_, _ = fmt.Fprintf(w, "**Started:** %s  \n", conv.CreatedAt.UTC().Format(time.RFC3339))
	}
	_, _ = fmt.Fprintf(w, "**Messages:** %d\n\n", len(conv.Messages))

	_, _ = fmt.Fprintf(w, "---\n\n")

	for i, msg := range conv.Messages {
		timestamp := ""
		if !msg.Timestamp.IsZero() {
			timestamp = fmt.Sprintf(" (%s)", msg.Timestamp.UTC().Format(time.RFC3339))
		}

		// Answers are already markdown; questions are typed text.
		text := msg.Text
		if msg.Role == internal.RoleUser {
			text = escapeMarkdown(text)
		}

		_, _ = fmt.Fprintf(w, "**%s:**%s\n\n%s\n\n", roleLabel(msg.Role), timestamp, text)

		if len(msg.Sources) > 0 {
			_, _ = fmt.Fprintf(w, "_Sources:_ %s\n\n", strings.Join(msg.SourceNames(), ", "))
		}

		if i < len(conv.Messages)-1 {
			_, _ = fmt.Fprintf(w, "---\n\n")
		}
	}

	return nil
}

func roleLabel(role internal.Role) string {
	if role == internal.RoleUser {
		return "You"
	}
	return "Assistant"
}

// escapeMarkdown escapes markdown special characters
func escapeMarkdown(text string) string {
	// Basic escaping - preserve code blocks
	lines := strings.Split(text, "\n")
	var result []string
	inCodeBlock := false

	for _, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			result = append(result, line)
		} else if inCodeBlock {
			result = append(result, line)
		} else {
			line = strings.ReplaceAll(line, "**", "\\*\\*")
			line = strings.ReplaceAll(line, "__", "\\_\\_")
			result = append(result, line)
		}
	}

	return strings.Join(result, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
