package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /new    start a new conversation
  /docs   list your documents
  /help   show this help
  /quit   leave the chat (Ctrl-D works too)`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question-and-answer session",
	Long: `Ask questions one after another in the active conversation.

Every question keeps the context of the previous ones. Type /new to start
over, /docs to see your documents, and /quit or Ctrl-D to leave.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()
		if err := session.RequireAuth(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		renderer := answerRenderer(session.Config, out)
		prompter := internal.NewPrompter(cmd.InOrStdin(), out)

		creds := session.Store.Current()
		fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("💬 Hi %s! Ask anything about your documents.", creds.DisplayName)))
		if conv := session.Conversation.Snapshot(); len(conv.Messages) > 0 {
			fmt.Fprintln(out, idStyle.Render(fmt.Sprintf("Continuing conversation %s (%d messages). Type /new to start over.", shortID(conv.ID), len(conv.Messages))))
		}
		fmt.Fprintln(out, idStyle.Render("Type /help for commands."))

		for {
			if prompter.Interactive() {
				fmt.Fprint(out, userMessageStyle.Render("You")+"> ")
			}
			line, err := prompter.ReadLine()
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			if err != nil {
				return err
			}

			input := strings.TrimSpace(line)
			switch input {
			case "":
				continue
			case "/quit", "/exit":
				return nil
			case "/help":
				fmt.Fprintln(out, chatHelp)
				continue
			case "/new":
				if err := session.NewConversation(); err != nil {
					return err
				}
				fmt.Fprintln(out, infoStyle.Render("Started a new conversation."))
				continue
			case "/docs":
				docs, err := session.Documents.List(cmd.Context())
				if err != nil {
					if errors.Is(err, internal.ErrSessionExpired) {
						return err
					}
					internal.PrintError(out, err.Error())
					continue
				}
				displayDocuments(cmd, docs)
				continue
			}
			if strings.HasPrefix(input, "/") {
				fmt.Fprintf(out, "Unknown command %s. Type /help for commands.\n", input)
				continue
			}

			var reply *internal.Message
			askErr := internal.ShowProgress(cmd.Context(), "Thinking", func() error {
				var sendErr error
				reply, sendErr = session.Ask(cmd.Context(), input)
				return sendErr
			})
			if errors.Is(askErr, internal.ErrSessionExpired) {
				return askErr
			}
			if askErr != nil && reply == nil {
				internal.PrintError(out, askErr.Error())
				continue
			}
			fmt.Fprint(out, assistantMessageStyle.Render("Assistant")+": ")
			if renderer.Styled() {
				fmt.Fprintln(out)
			}
			printReply(out, renderer, reply)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
