package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var (
	historyClearYes bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse and export past conversations",
}

func openTranscripts() *internal.TranscriptCache {
	return internal.NewTranscriptCache(internal.TranscriptDir(dataDir))
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List past conversations",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		index, err := openTranscripts().LoadIndex()
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}
		displayConversationIndex(cmd, index)
		return nil
	},
}

func displayConversationIndex(cmd *cobra.Command, index *internal.TranscriptIndex) {
	out := cmd.OutOrStdout()
	if len(index.Conversations) == 0 {
		fmt.Fprintln(out, headerStyle.Render("📋 No conversations yet"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📋 Found %d conversation(s)", len(index.Conversations))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Title")+"\t"+titleStyle.Render("Messages")+"\t"+titleStyle.Render("Updated")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 100))

	for _, entry := range index.Conversations {
		id := idStyle.Render(shortID(entry.ID))
		if entry.ID == index.Metadata.Active {
			id += " " + countStyle.Render("*")
		}
		title := entry.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
			id, title, countStyle.Render(strconv.Itoa(entry.MessageCount)), dateStyle.Render(formatWhen(entry.UpdatedAt)))
	}

	_ = w.Flush()
	fmt.Fprintln(out)
	fmt.Fprintln(out, idStyle.Render("💡 Tip: Use the ID (e.g., ")+
		lipgloss.NewStyle().Foreground(lipgloss.Color("62")).Render(shortID(index.Conversations[0].ID))+
		idStyle.Render(") with `rag-client history show <id>`; * marks the active conversation"))
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every saved conversation",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !historyClearYes {
			prompter := internal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			if !prompter.Confirm("Delete all saved conversations?") {
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}
		if err := openTranscripts().ClearCache(); err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), "History cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd, historyClearCmd)
	historyClearCmd.Flags().BoolVarP(&historyClearYes, "yes", "y", false, "Clear without asking for confirmation")
}
