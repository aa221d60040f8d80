package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	"invoicesync/internal/logger"
	"invoicesync/internal/view"
	"invoicesync/pkg/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices grouped by store with totals",
	Long: `List invoices grouped by store, newest first, with amount and GST totals per
store and overall.

By default only invoices of the current year are shown. Filters combine: an
invoice is listed only if it matches every filter given. Use --all to drop the
default year filter.`,
	Example: `  # Invoices of the current year
  invoices list

  # One store in March 2024, as JSON
  invoices list --store acme --year 2024 --month 3 --format json

  # Everything
  invoices list --all`,
	Args: cobra.NoArgs,
	RunE: runList,
}

var optionsCmd = &cobra.Command{
	Use:   "options",
	Short: "Show the available filter choices",
	Long:  `Show the years, months and stores that can be passed to 'invoices list'.`,
	Args:  cobra.NoArgs,
	RunE:  runOptions,
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(optionsCmd)

	listCmd.Flags().String("store", "", "Only this store (case-insensitive)")
	listCmd.Flags().String("date", "", "Only this date (YYYY-MM-DD)")
	listCmd.Flags().String("year", "", "Only this year (default: current year)")
	listCmd.Flags().String("month", "", "Only this month (1-12)")
	listCmd.Flags().Bool("all", false, "Clear the default year filter")
	listCmd.Flags().StringP("format", "f", "table", "Output format: table, json or yaml")

	optionsCmd.Flags().StringP("format", "f", "table", "Output format: table, json or yaml")
}

func runList(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("list")

	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}
	criteria := criteriaFromFlags(cmd, time.Now())

	log.Info().
		Str("store", criteria.Store).
		Str("date", criteria.Date).
		Str("year", criteria.Year).
		Str("month", criteria.Month).
		Str("format", format).
		Msg("Listing invoices")

	ctx, cancel := createContext(cmd, log)
	defer cancel()

	a, err := loadApp(ctx, cmd, false, log)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	vm := a.manager.View(criteria)
	log.Debug().Int("groups", len(vm.Groups)).Int("invoices", vm.Count).Msg("View built")

	return writeView(cmd.OutOrStdout(), vm, format)
}

func runOptions(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("options")

	format, _ := cmd.Flags().GetString("format")
	if err := validateFormat(format); err != nil {
		return err
	}

	ctx, cancel := createContext(cmd, log)
	defer cancel()

	a, err := loadApp(ctx, cmd, false, log)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	return writeOptions(cmd.OutOrStdout(), a.manager.Options(), format)
}

// criteriaFromFlags starts from the default criteria and applies the flags that were set.
func criteriaFromFlags(cmd *cobra.Command, now time.Time) view.Criteria {
	criteria := view.DefaultCriteria(now)
	if all, _ := cmd.Flags().GetBool("all"); all {
		criteria.Clear()
	}
	if cmd.Flags().Changed("store") {
		criteria.Store, _ = cmd.Flags().GetString("store")
	}
	if cmd.Flags().Changed("date") {
		criteria.Date, _ = cmd.Flags().GetString("date")
	}
	if cmd.Flags().Changed("year") {
		criteria.Year, _ = cmd.Flags().GetString("year")
	}
	if cmd.Flags().Changed("month") {
		criteria.Month, _ = cmd.Flags().GetString("month")
	}
	return criteria
}

func validateFormat(format string) error {
	switch format {
	case "table", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unsupported format %q. Use table, json or yaml", format)
}

// ListOutput is the json and yaml shape of a listing.
type ListOutput struct {
	Groups           []GroupOutput `json:"groups" yaml:"groups"`
	GrandTotalAmount string        `json:"grand_total_amount" yaml:"grand_total_amount"`
	GrandTotalGST    string        `json:"grand_total_gst" yaml:"grand_total_gst"`
	Count            int           `json:"count" yaml:"count"`
}

// GroupOutput is one store of a listing.
type GroupOutput struct {
	Store       string          `json:"store" yaml:"store"`
	TotalAmount string          `json:"total_amount" yaml:"total_amount"`
	TotalGST    string          `json:"total_gst" yaml:"total_gst"`
	Invoices    []InvoiceOutput `json:"invoices" yaml:"invoices"`
}

// InvoiceOutput is one invoice of a listing.
type InvoiceOutput struct {
	ID            string           `json:"id" yaml:"id"`
	Date          string           `json:"date" yaml:"date"`
	InvoiceNumber string           `json:"invoice_number" yaml:"invoice_number"`
	Amount        string           `json:"amount" yaml:"amount"`
	GST           string           `json:"gst" yaml:"gst"`
	Paid          bool             `json:"paid" yaml:"paid"`
	Comments      []models.Comment `json:"comments" yaml:"comments"`
}

func toListOutput(vm view.ViewModel) ListOutput {
	out := ListOutput{
		Groups:           make([]GroupOutput, 0, len(vm.Groups)),
		GrandTotalAmount: vm.GrandTotalAmount.StringFixed(2),
		GrandTotalGST:    vm.GrandTotalGST.StringFixed(2),
		Count:            vm.Count,
	}
	for _, g := range vm.Groups {
		group := GroupOutput{
			Store:       g.Name,
			TotalAmount: g.TotalAmount.StringFixed(2),
			TotalGST:    g.TotalGST.StringFixed(2),
			Invoices:    make([]InvoiceOutput, 0, len(g.Records)),
		}
		for _, r := range g.Records {
			group.Invoices = append(group.Invoices, InvoiceOutput{
				ID:            r.ID,
				Date:          r.Date,
				InvoiceNumber: r.InvoiceNumber,
				Amount:        r.Amount.StringFixed(2),
				GST:           r.GST.StringFixed(2),
				Paid:          r.Paid,
				Comments:      models.CloneComments(r.Comment),
			})
		}
		out.Groups = append(out.Groups, group)
	}
	return out
}

func writeView(w io.Writer, vm view.ViewModel, format string) error {
	switch format {
	case "json":
		return writeJSON(w, toListOutput(vm))
	case "yaml":
		return writeYAML(w, toListOutput(vm))
	}

	if vm.Count == 0 {
		_, err := fmt.Fprintln(w, "No invoices match the current filters.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	header := []string{"ID"}
	for _, c := range view.Columns {
		header = append(header, c.Label)
	}

	for _, g := range vm.Groups {
		fmt.Fprintf(tw, "%s\n", g.Name)
		fmt.Fprintln(tw, strings.Join(header, "\t"))
		for _, r := range g.Records {
			fmt.Fprintln(tw, strings.Join(recordCells(r), "\t"))
		}
		fmt.Fprintf(tw, "Total\t\t\t%s\t%s\t\t\n\n", g.TotalAmount.StringFixed(2), g.TotalGST.StringFixed(2))
	}
	fmt.Fprintf(tw, "Grand total (%d invoices)\t\t\t%s\t%s\t\t\n",
		vm.Count, vm.GrandTotalAmount.StringFixed(2), vm.GrandTotalGST.StringFixed(2))

	return tw.Flush()
}

// recordCells renders a record in the order of view.Columns, prefixed by its ID.
func recordCells(r *models.Record) []string {
	cells := []string{r.ID}
	for _, c := range view.Columns {
		switch c.Field {
		case models.FieldDate:
			cells = append(cells, r.Date)
		case models.FieldInvoiceNumber:
			cells = append(cells, r.InvoiceNumber)
		case models.FieldAmount:
			cells = append(cells, r.Amount.StringFixed(2))
		case models.FieldGST:
			cells = append(cells, r.GST.StringFixed(2))
		case models.FieldPaid:
			cells = append(cells, paidMark(r.Paid))
		case models.FieldComment:
			cells = append(cells, commentSummary(r.Comment))
		}
	}
	return cells
}

func paidMark(paid bool) string {
	if paid {
		return "yes"
	}
	return "no"
}

// commentSummary shows the count and the most recent entry, truncated.
func commentSummary(log []models.Comment) string {
	if len(log) == 0 {
		return ""
	}
	latest := log[len(log)-1].Text
	if r := []rune(latest); len(r) > 30 {
		latest = string(r[:29]) + "…"
	}
	return fmt.Sprintf("(%d) %s", len(log), latest)
}

func writeOptions(w io.Writer, opts view.FilterOptions, format string) error {
	switch format {
	case "json":
		return writeJSON(w, opts)
	case "yaml":
		return writeYAML(w, opts)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Years:\t%s\n", strings.Join(opts.Years, ", "))
	months := make([]string, 0, len(opts.Months))
	for _, m := range opts.Months {
		if m.Value != "" {
			months = append(months, fmt.Sprintf("%s=%s", m.Value, m.Label))
		}
	}
	fmt.Fprintf(tw, "Months:\t%s\n", strings.Join(months, ", "))
	fmt.Fprintln(tw, "Stores:")
	for _, s := range opts.Stores {
		fmt.Fprintf(tw, "  %s\t%s\n", s.Value, s.Label)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return nil
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to create YAML output: %w", err)
	}
	return enc.Close()
}
