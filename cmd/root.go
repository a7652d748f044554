package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var (
	verbose bool
	dataDir string
	version string = "dev"
	commit  string = "unknown"
	date    string = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rag-client",
	Short: "Ask questions about your documents from the terminal",
	Long: `A command-line client for a serverless document question-answering service.

Sign in with your account, upload PDF documents, and ask questions about them.
Follow-up questions continue the same conversation until you start a new one.

Quick Start:
  rag-client config set client_id <app-client-id>
  rag-client config set api_url https://<api-id>.execute-api.<region>.amazonaws.com/prod
  rag-client login
  rag-client docs upload handbook.pdf
  rag-client ask "What does the handbook say about expenses?"
  rag-client chat`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if dataDir == "" {
			dir, err := internal.DefaultDataDir()
			if err != nil {
				return err
			}
			dataDir = dir
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", friendlyError(err))
		os.Exit(1)
	}
}

// friendlyError adds the next step to errors the user can fix
func friendlyError(err error) error {
	switch {
	case errors.Is(err, internal.ErrSessionExpired):
		return fmt.Errorf("%w (run `rag-client login`)", err)
	case errors.Is(err, internal.ErrNotAuthenticated):
		return fmt.Errorf("%w (run `rag-client login` first)", err)
	}
	return err
}

// loadConfig reads configuration and applies the log level
func loadConfig() (*internal.Config, error) {
	cfg, err := internal.LoadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	if level, ok := internal.ParseLogLevel(cfg.LogLevel); ok {
		internal.SetLogLevel(level)
	}
	if verbose {
		internal.SetVerbose(true)
	}
	return cfg, nil
}

// openSession loads configuration and opens the local session for a
// command that talks to the service.
func openSession() (*internal.Session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return internal.OpenSession(dataDir, cfg)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for credentials, history and config (default ~/.rag-client)")

	// Set version template to ensure --version flag works
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
