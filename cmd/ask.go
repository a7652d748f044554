package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var (
	askNew bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>...",
	Short: "Ask a question about your documents",
	Long: `Ask a question about your uploaded documents.

Questions continue the active conversation, so follow-ups keep their context.
Use --new to start a fresh conversation first.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := strings.TrimSpace(strings.Join(args, " "))
		if question == "" {
			return &internal.ValidationError{Field: "question", Value: question, Reason: "must not be empty"}
		}

		session, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()
		if err := session.RequireAuth(); err != nil {
			return err
		}

		if askNew {
			if err := session.NewConversation(); err != nil {
				return err
			}
		}

		var reply *internal.Message
		err = internal.ShowProgress(cmd.Context(), "Thinking", func() error {
			var askErr error
			reply, askErr = session.Ask(cmd.Context(), question)
			return askErr
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printReply(out, answerRenderer(session.Config, out), reply)
		return nil
	},
}

func answerRenderer(cfg *internal.Config, out io.Writer) *internal.AnswerRenderer {
	return internal.NewAnswerRenderer(cfg.Render, internal.IsTerminal(out), 0)
}

// printReply writes an assistant message followed by its sources
func printReply(out io.Writer, renderer *internal.AnswerRenderer, reply *internal.Message) {
	if reply == nil {
		return
	}
	if reply.Failed {
		fmt.Fprintln(out, errorStyle.Render(reply.Text))
		return
	}
	fmt.Fprintln(out, renderer.Render(reply.Text))
	if names := reply.SourceNames(); len(names) > 0 {
		fmt.Fprintln(out, sourceStyle.Render("Sources: "+strings.Join(names, ", ")))
	}
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askNew, "new", false, "Start a new conversation before asking")
}
