package cmd

import (
	"fmt"

	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var (
	authEmail string
	authName  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with your email and password",
	Long: `Sign in and store the session locally so later commands stay signed in.

The password is read from the terminal without echo, or from stdin when piped.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		prompter := internal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
		email := authEmail
		if email == "" {
			if email, err = prompter.Ask("Email"); err != nil {
				return err
			}
		}
		password, err := prompter.Password("Password")
		if err != nil {
			return err
		}

		var creds internal.Credentials
		err = internal.ShowProgress(cmd.Context(), "Signing in", func() error {
			var loginErr error
			creds, loginErr = session.Login(cmd.Context(), email, password)
			return loginErr
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s!\n", creds.DisplayName)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Register a new account. A verification code is emailed to you;
activate the account with 'rag-client confirm'.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		prompter := internal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
		name, email := authName, authEmail
		if name == "" {
			if name, err = prompter.Ask("Name"); err != nil {
				return err
			}
		}
		if email == "" {
			if email, err = prompter.Ask("Email"); err != nil {
				return err
			}
		}
		password, err := prompter.Password("Password")
		if err != nil {
			return err
		}

		if err := session.SignUp(cmd.Context(), name, email, password); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Account created. Check your email for a verification code, then run:")
		fmt.Fprintf(out, "  rag-client confirm --email %s <code>\n", email)
		return nil
	},
}

var confirmCmd = &cobra.Command{
	Use:   "confirm [code]",
	Short: "Verify a new account with the emailed code",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, err := openSession()
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		prompter := internal.NewPrompter(cmd.InOrStdin(), cmd.ErrOrStderr())
		email := authEmail
		if email == "" {
			if email, err = prompter.Ask("Email"); err != nil {
				return err
			}
		}
		var code string
		if len(args) == 1 {
			code = args[0]
		} else if code, err = prompter.Ask("Verification code"); err != nil {
			return err
		}

		if err := session.ConfirmSignUp(cmd.Context(), email, code); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Account verified. You can now run 'rag-client login'.")
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		session, err := internal.OpenSession(dataDir, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = session.Close() }()

		if err := session.Logout(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd, signupCmd, confirmCmd, logoutCmd)

	loginCmd.Flags().StringVarP(&authEmail, "email", "e", "", "Account email (prompted when omitted)")
	signupCmd.Flags().StringVarP(&authEmail, "email", "e", "", "Account email (prompted when omitted)")
	signupCmd.Flags().StringVarP(&authName, "name", "n", "", "Display name (prompted when omitted)")
	confirmCmd.Flags().StringVarP(&authEmail, "email", "e", "", "Account email (prompted when omitted)")
}
