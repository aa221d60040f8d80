package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"invoicesync/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Invoices CLI - keep a shared invoice collection in sync",
	Long: `Invoices CLI reads a remote invoice collection, repairs malformed comment
logs, and lets signed-in users browse, edit, comment on and export invoices.

Every command loads the collection first. Edits are applied to the local view
immediately and rolled back if the store rejects them. Store IDs often start
with "-"; put them after "--" so they are not read as flags.

Required environment variables:
  INVOICE_STORE_URL  - Collection URL, e.g. https://<db>.firebaseio.com/invoices
  INVOICE_USER_EMAIL - Signed-in user (or pass --user)

Optional environment variables:
  FIREBASE_AUTH_TOKEN - Database secret or ID token
  STORE_USE_OAUTH     - "true" to authenticate with the Google service account
  ADMIN_EMAILS        - Comma-separated users allowed to create, delete and edit amounts`,
	Version: version,
	Run: func(cmd *cobra.Command, args []string) {
		log := logger.WithComponent("root")
		log.Info().
			Str("version", version).
			Msg("Invoices CLI executed")

		fmt.Println("Welcome to Invoices CLI!")
		fmt.Println("Use --help to see available commands and options.")
	},
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")

	rootCmd.PersistentFlags().StringP("user", "u", "", "Signed-in user email (default: INVOICE_USER_EMAIL)")
	rootCmd.PersistentFlags().Int("timeout", 60, "Command timeout in seconds")
}
