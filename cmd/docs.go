package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var (
	deleteYes bool
)

var docsCmd = &cobra.Command{
	Use:     "docs",
	Aliases: []string{"documents"},
	Short:   "Manage your uploaded documents",
}

var docsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List uploaded documents",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()
		if err := session.RequireAuth(); err != nil {
			return err
		}

		docs, err := session.Documents.List(cmd.Context())
		if err != nil {
			return err
		}
		displayDocuments(cmd, docs)
		return nil
	},
}

func displayDocuments(cmd *cobra.Command, docs []internal.Document) {
	out := cmd.OutOrStdout()
	if len(docs) == 0 {
		fmt.Fprintln(out, headerStyle.Render("📄 No documents uploaded yet"))
		fmt.Fprintln(out, idStyle.Render("💡 Tip: Upload one with `rag-client docs upload <file.pdf>`"))
		return
	}

	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("📄 %d document(s)", len(docs))))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Name")+"\t"+titleStyle.Render("Size")+"\t"+titleStyle.Render("Status")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("─", 80))
	for _, d := range docs {
		size := dateStyle.Render("—")
		if d.SizeBytes > 0 {
			size = countStyle.Render(humanize.Bytes(uint64(d.SizeBytes)))
		}
		status := d.Status
		if status == "" {
			status = "—"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", idStyle.Render(d.ID), d.Filename, size, dateStyle.Render(status))
	}
	_ = w.Flush()
}

var docsUploadCmd = &cobra.Command{
	Use:   "upload <file.pdf>...",
	Short: "Upload one or more PDF documents",
	Long: `Upload PDF documents so questions can be answered from them.

Only files with a .pdf extension are accepted. Processing happens on the
server; the document list shows its status.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			if err := internal.ValidateUploadName(path); err != nil {
				return err
			}
		}

		session, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()
		if err := session.RequireAuth(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, path := range args {
			var result internal.UploadResult
			err := internal.ShowProgress(cmd.Context(), "Uploading "+path, func() error {
				var uploadErr error
				result, uploadErr = session.Documents.UploadFile(cmd.Context(), path)
				return uploadErr
			})
			if err != nil {
				return fmt.Errorf("failed to upload %s: %w", path, err)
			}

			msg := fmt.Sprintf("Uploaded %s", path)
			if result.Message != "" {
				msg += ": " + result.Message
			}
			internal.PrintSuccess(out, msg)
		}
		return nil
	},
}

var docsDeleteCmd = &cobra.Command{
	Use:     "delete <id-or-filename>",
	Aliases: []string{"rm"},
	Short:   "Delete an uploaded document",
	Long: `Delete a document by id or filename. You are asked to confirm first
unless --yes is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()
		if err := session.RequireAuth(); err != nil {
			return err
		}

		if _, err := session.Documents.List(cmd.Context()); err != nil {
			return err
		}
		doc, ok := session.Documents.Find(args[0])
		if !ok {
			return fmt.Errorf("document not found: %s (use 'rag-client docs list' to see your documents)", args[0])
		}

		session.Documents.RequestDelete(doc.ID, doc.Filename)
		if !deleteYes {
			prompter := internal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
			if !prompter.Confirm(fmt.Sprintf("Delete %s?", doc.Filename)) {
				session.Documents.CancelDelete()
				fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
				return nil
			}
		}

		if err := session.Documents.ConfirmDelete(cmd.Context()); err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), "Deleted "+doc.Filename)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.AddCommand(docsListCmd, docsUploadCmd, docsDeleteCmd)
	docsDeleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Delete without asking for confirmation")
}
