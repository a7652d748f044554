package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var (
	limit int
)

var (
	sessionMetaStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("243")).
				MarginBottom(1)

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
)

// historyShowCmd represents the show command
var historyShowCmd = &cobra.Command{
	Use:   "show [conversation-id]",
	Short: "Show the messages of a conversation",
	Long: `Display a saved conversation. Without an id the active conversation is shown.
An unambiguous id prefix is enough.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		transcripts := openTranscripts()

		var (
			conv *internal.Conversation
			err  error
		)
		if len(args) == 1 {
			conv, err = transcripts.LoadConversation(args[0])
		} else {
			conv, err = transcripts.LoadActive()
			if err == nil && conv == nil {
				return fmt.Errorf("no active conversation (use 'rag-client history list' to pick one)")
			}
		}
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		displayConversation(cmd, conv, answerRenderer(cfg, cmd.OutOrStdout()))
		return nil
	},
}

func displayConversation(cmd *cobra.Command, conv *internal.Conversation, renderer *internal.AnswerRenderer) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("💬 "+conv.Title()))
	meta := fmt.Sprintf("ID: %s  •  Started: %s  •  Messages: %d", conv.ID, formatWhen(conv.CreatedAt), len(conv.Messages))
	if conv.SessionID != "" {
		meta += "  •  Session: " + conv.SessionID
	}
	fmt.Fprintln(out, sessionMetaStyle.Render(meta))

	messages := conv.Messages
	if limit > 0 && len(messages) > limit {
		fmt.Fprintln(out, idStyle.Render(fmt.Sprintf("… %d earlier message(s) hidden", len(messages)-limit)))
		messages = messages[len(messages)-limit:]
	}

	for _, msg := range messages {
		label := userMessageStyle.Render("You")
		if msg.Role == internal.RoleAssistant {
			label = assistantMessageStyle.Render("Assistant")
		}
		fmt.Fprintf(out, "%s %s\n", label, timestampStyle.Render(msg.Timestamp.Local().Format("15:04")))
		if msg.Role == internal.RoleAssistant {
			printReply(out, renderer, &msg)
		} else {
			fmt.Fprintln(out, msg.Text)
		}
		fmt.Fprintln(out, strings.Repeat("─", 40))
	}
}

func init() {
	historyCmd.AddCommand(historyShowCmd)
	historyShowCmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show only the last N messages")
}
