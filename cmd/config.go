package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/iksnae/rag-client/internal"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change client settings",
	Long: `Show or change settings stored in config.yaml inside the data directory.

Every setting can also be supplied through an environment variable named
RAG_CLIENT_<KEY>, for example RAG_CLIENT_API_URL.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, idStyle.Render("Config file: "+internal.ConfigPath(dataDir)))
		values := cfg.Values()
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, key := range internal.ConfigKeys() {
			value := values[key]
			if value == "" {
				value = dateStyle.Render("(not set)")
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", titleStyle.Render(key), value)
		}
		return w.Flush()
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Change a setting",
	Args:      cobra.ExactArgs(2),
	ValidArgs: internal.ConfigKeys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.SetConfigValue(dataDir, args[0], args[1]); err != nil {
			return err
		}
		internal.PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("Set %s", args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd, configSetCmd)
}
