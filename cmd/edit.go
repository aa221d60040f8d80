package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"invoicesync/internal/logger"
	"invoicesync/pkg/models"
)

var setCmd = &cobra.Command{
	Use:   "set <id> <field> <value>",
	Short: "Change one field of an invoice",
	Long: `Change one field of an invoice. The new value is shown right away and rolled
back if the store rejects the change.

Fields: store, date, invoiceNumber, amount, gst, paid.
Only administrators may change store, date, invoiceNumber, amount and gst.
Comments are edited with 'invoices comment'.`,
	Example: `  # Mark an invoice as paid
  invoices set -- -NabcInvoiceId paid true

  # Correct an amount (administrators only)
  invoices set -- -NabcInvoiceId amount 120.50`,
	Args: cobra.ExactArgs(3),
	RunE: runSet,
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new invoice with default values (administrators only)",
	Long: `Create a new invoice dated today with a generated invoice number, zero amounts
and no comments. Prints the new invoice ID.`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an invoice (administrators only)",
	Long:  `Delete an invoice permanently. Asks for confirmation unless --yes is given.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(deleteCmd)

	deleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

func runSet(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("set")

	id, fieldName, text := args[0], args[1], args[2]
	field, err := models.ParseField(fieldName)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	log.Info().
		Str("id", id).
		Str("field", string(field)).
		Msg("Updating invoice field")

	ctx, cancel := createContext(cmd, log)
	defer cancel()

	a, err := loadApp(ctx, cmd, false, log)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	if err := a.manager.UpdateFieldText(ctx, id, field, text); err != nil {
		return handleInvoiceError(err, log)
	}

	for _, w := range a.manager.AmountWarnings(id) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	return nil
}

func runCreate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("create")

	ctx, cancel := createContext(cmd, log)
	defer cancel()

	a, err := loadApp(ctx, cmd, false, log)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	id, err := a.manager.Create(ctx)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	log.Info().Str("id", id).Msg("Invoice created")
	fmt.Fprintln(cmd.OutOrStdout(), id)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("delete")

	id := args[0]
	yes, _ := cmd.Flags().GetBool("yes")

	ctx, cancel := createContext(cmd, log)
	defer cancel()

	a, err := loadApp(ctx, cmd, yes, log)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	if err := a.manager.Delete(ctx, id); err != nil {
		return handleInvoiceError(err, log)
	}

	log.Info().Str("id", id).Msg("Invoice deleted")
	return nil
}
