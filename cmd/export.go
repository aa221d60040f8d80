package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"invoicesync/internal/gcp"
	"invoicesync/internal/logger"
	"invoicesync/internal/sheets"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Append the filtered invoice view to a Google Sheet",
	Long: `Append the filtered, grouped invoice view to a worksheet of a Google Sheet:
one row per invoice, a total row per store and a grand total row. The worksheet
and its header row are created when missing.

Accepts the same filters as 'invoices list'.

Required environment variables:
  GOOGLE_APPLICATION_CREDENTIALS - Path to service account JSON file, OR
  GOOGLE_CREDENTIALS - Inline JSON credentials string
  GOOGLE_SHEET_URL - Target spreadsheet (or pass --sheet-url)`,
	Example: `  # Export the current year
  invoices export

  # Export one store to a dedicated worksheet
  invoices export --store acme --all --worksheet "Acme"`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("sheet-url", "", "Google Sheets URL (default: GOOGLE_SHEET_URL)")
	exportCmd.Flags().String("worksheet", "", "Worksheet name (default: GOOGLE_SHEET_WORKSHEET or Invoices)")
	exportCmd.Flags().String("store", "", "Only this store (case-insensitive)")
	exportCmd.Flags().String("date", "", "Only this date (YYYY-MM-DD)")
	exportCmd.Flags().String("year", "", "Only this year (default: current year)")
	exportCmd.Flags().String("month", "", "Only this month (1-12)")
	exportCmd.Flags().Bool("all", false, "Clear the default year filter")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	criteria := criteriaFromFlags(cmd, time.Now())

	ctx, cancel := createContext(cmd, log)
	defer cancel()

	a, err := loadApp(ctx, cmd, false, log)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	if sheetURL == "" {
		sheetURL = a.cfg.GoogleSheetURL
	}
	if sheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL environment variable or --sheet-url is required")
	}
	worksheet, _ := cmd.Flags().GetString("worksheet")
	if worksheet == "" {
		worksheet = a.cfg.GoogleSheetWorksheet
	}

	vm := a.manager.View(criteria)

	log.Info().
		Str("worksheet", worksheet).
		Int("invoices", vm.Count).
		Msg("Exporting invoices to Google Sheets")

	sheetsService, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		if errors.Is(err, gcp.ErrMissingCredentials) {
			return fmt.Errorf("missing Google credentials. Please set one of:\n" +
				"  GOOGLE_APPLICATION_CREDENTIALS=/path/to/service-account-key.json\n" +
				"  GOOGLE_CREDENTIALS='<json-credentials>'")
		}
		return fmt.Errorf("failed to initialize Google Sheets service: %w", err)
	}

	rows, err := sheetsService.WriteView(ctx, vm, worksheet)
	if err != nil {
		return handleExportError(err, log)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d invoices (%d rows) to worksheet %q\n", vm.Count, rows, worksheet)
	return nil
}

// handleExportError provides user-friendly error messages for Google Sheets failures
func handleExportError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Export failed")

	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "403"):
		return fmt.Errorf("permission denied. Share the spreadsheet with the service account email as an editor: %w", err)
	case strings.Contains(errStr, "NOT_FOUND") || strings.Contains(errStr, "404"):
		return fmt.Errorf("spreadsheet not found. Please check GOOGLE_SHEET_URL: %w", err)
	case strings.Contains(errStr, "invalid_grant") || strings.Contains(errStr, "Unauthenticated"):
		return fmt.Errorf("Google authentication failed. Please check your service account credentials: %w", err)
	default:
		return fmt.Errorf("export failed: %w", err)
	}
}
