package cmd

import (
	"fmt"
	"time"

	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var (
	healthcheckOffline bool
)

// healthcheckCmd represents the healthcheck command
var healthcheckCmd = &cobra.Command{
	Use:     "healthcheck",
	Aliases: []string{"status"},
	Short:   "Check configuration, sign-in state and API access",
	Long: `Check that rag-client is ready to use by verifying:
  • Configuration (client id and API URL)
  • Stored session and signed-in user
  • ID token expiry
  • API reachability (skipped with --offline)

Reaching the API with an expired ID token refreshes it, just as any other command would.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, sectionStyle.Render("🔍 rag-client Health Check"))
		fmt.Fprintln(out)

		// Step 1: Configuration
		fmt.Fprintln(out, infoStyle.Render("Step 1: Checking configuration..."))
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to load configuration:"), err)
			return err
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Configuration incomplete:"), err)
			return err
		}
		fmt.Fprintln(out, successStyle.Render("✅ Configuration complete"))
		if verbose {
			fmt.Fprintf(out, "   Config file: %s\n", internal.ConfigPath(dataDir))
			fmt.Fprintf(out, "   API: %s\n", cfg.APIURL)
			fmt.Fprintf(out, "   Identity provider: %s\n", cfg.IdentityEndpoint)
		}
		fmt.Fprintln(out)

		session, err := internal.OpenSession(dataDir, cfg)
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render("❌ Failed to open local data:"), err)
			return err
		}
		defer func() { _ = session.Close() }()

		// Step 2: Stored session
		fmt.Fprintln(out, infoStyle.Render("Step 2: Checking stored session..."))
		creds := session.Store.Current()
		if !creds.Authenticated() {
			fmt.Fprintln(out, warningStyle.Render("⚠️  Not signed in"))
			fmt.Fprintln(out, "   Run `rag-client login` to sign in.")
			return internal.ErrNotAuthenticated
		}
		fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ Signed in as %s (%s)", creds.DisplayName, creds.Email)))
		fmt.Fprintln(out)

		// Step 3: Token expiry
		fmt.Fprintln(out, infoStyle.Render("Step 3: Checking ID token..."))
		claims, err := internal.ParseIDToken(creds.IDToken)
		switch {
		case err != nil:
			fmt.Fprintln(out, warningStyle.Render("⚠️  ID token could not be decoded:"), err)
		case claims.ExpiresAt.IsZero():
			fmt.Fprintln(out, warningStyle.Render("⚠️  ID token carries no expiry"))
		case claims.Expired(time.Now()):
			fmt.Fprintln(out, warningStyle.Render(fmt.Sprintf("⚠️  ID token expired %s; it is refreshed on the next request", formatWhen(claims.ExpiresAt))))
		default:
			fmt.Fprintln(out, successStyle.Render("✅ ID token valid until "+claims.ExpiresAt.Local().Format("2006-01-02 15:04")))
		}
		fmt.Fprintln(out)

		// Step 4: API reachability
		if healthcheckOffline {
			fmt.Fprintln(out, dateStyle.Render("Step 4: Skipping API check (--offline)"))
			fmt.Fprintln(out)
		} else {
			fmt.Fprintln(out, infoStyle.Render("Step 4: Contacting the API..."))
			docs, err := session.Documents.List(cmd.Context())
			if err != nil {
				fmt.Fprintln(out, errorStyle.Render("❌ API request failed:"), err)
				return err
			}
			fmt.Fprintln(out, successStyle.Render(fmt.Sprintf("✅ API reachable, %d document(s) available", len(docs))))
			fmt.Fprintln(out)
		}

		// Summary
		fmt.Fprintln(out, sectionStyle.Render("📊 Summary"))
		fmt.Fprintln(out)
		fmt.Fprintln(out, successStyle.Render("✅ Health check passed!"))
		if conv := session.Conversation.Snapshot(); len(conv.Messages) > 0 {
			fmt.Fprintf(out, "   • Active conversation: %s (%d messages)\n", shortID(conv.ID), len(conv.Messages))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthcheckCmd)
	healthcheckCmd.Flags().BoolVar(&healthcheckOffline, "offline", false, "Skip the API reachability check")
}
