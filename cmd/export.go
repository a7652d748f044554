package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iksnae/rag-client/internal"
	"github.com/iksnae/rag-client/internal/export"
	"github.com/spf13/cobra"
)

var (
	format    string
	outputDir string
)

// historyExportCmd represents the export command
var historyExportCmd = &cobra.Command{
	Use:   "export [conversation-id]",
	Short: "Export conversations to files",
	Long: `Export saved conversations to various formats (jsonl, md, yaml, json).

Without an id every saved conversation is exported, one file each.
Use 'rag-client history list' to see available ids.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		exporter, err := export.NewExporter(format)
		if err != nil {
			return err
		}
		transcripts := openTranscripts()

		var convs []*internal.Conversation
		steps := []internal.ProgressStep{
			{
				Message: "Loading conversations",
				Fn: func() error {
					if len(args) == 1 {
						conv, err := transcripts.LoadConversation(args[0])
						if err != nil {
							return err
						}
						convs = []*internal.Conversation{conv}
						return nil
					}
					var loadErr error
					convs, loadErr = transcripts.LoadAllConversations()
					return loadErr
				},
			},
			{
				Message: fmt.Sprintf("Writing %s files to %s", strings.ToUpper(exporter.Extension()), outputDir),
				Fn: func() error {
					if err := os.MkdirAll(outputDir, 0755); err != nil {
						return fmt.Errorf("failed to create output directory: %w", err)
					}
					for _, conv := range convs {
						if err := exportConversation(exporter, conv); err != nil {
							internal.LogError("Failed to export conversation %s: %v", conv.ID, err)
						}
					}
					return nil
				},
			},
		}
		if err := internal.ShowProgressWithSteps(cmd.Context(), steps); err != nil {
			return err
		}

		if len(convs) == 0 {
			internal.PrintWarning(cmd.ErrOrStderr(), "No conversations to export")
			return nil
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Export complete: %d conversation(s) exported to %s", len(convs), outputDir))
		return nil
	},
}

func exportConversation(exporter export.Exporter, conv *internal.Conversation) error {
	path := filepath.Join(outputDir, fmt.Sprintf("conversation_%s.%s", conv.ID, exporter.Extension()))
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := exporter.Export(conv, file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func init() {
	historyCmd.AddCommand(historyExportCmd)
	historyExportCmd.Flags().StringVarP(&format, "format", "f", "md", "Export format ("+strings.Join(export.Formats, ", ")+")")
	historyExportCmd.Flags().StringVarP(&outputDir, "out", "o", "./exports", "Output directory")
}
