package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"invoicesync/internal/comments"
	"invoicesync/internal/logger"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Read and edit the comment log of an invoice",
	Long: `Read and edit the comment log of an invoice. Any signed-in user may comment.

Positions shown by 'comment list' are used by 'comment edit' and 'comment delete'.`,
	Example: `  invoices comment list -- -NabcInvoiceId
  invoices comment add -- -NabcInvoiceId "Supplier confirmed payment"
  invoices comment edit -- -NabcInvoiceId 0 "Supplier confirmed payment by phone"
  invoices comment delete --yes -- -NabcInvoiceId 0`,
}

var commentListCmd = &cobra.Command{
	Use:   "list <id>",
	Short: "Show the comments of an invoice, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runCommentList,
}

var commentAddCmd = &cobra.Command{
	Use:   "add <id> <text>",
	Short: "Add a comment stamped with the current time",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runCommentAdd,
}

var commentEditCmd = &cobra.Command{
	Use:   "edit <id> <position> <text>",
	Short: "Replace the text of a comment, keeping its timestamp",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runCommentEdit,
}

var commentDeleteCmd = &cobra.Command{
	Use:   "delete <id> <position>",
	Short: "Delete a comment",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommentDelete,
}

func init() {
	rootCmd.AddCommand(commentCmd)
	commentCmd.AddCommand(commentListCmd, commentAddCmd, commentEditCmd, commentDeleteCmd)

	commentDeleteCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
}

// openComments loads the collection and opens the comment log of id.
func openComments(cmd *cobra.Command, id string, assumeYes bool, run func(ctx context.Context, ctrl *comments.Controller) error) error {
	log := logger.WithComponent("comment")

	ctx, cancel := createContext(cmd, log)
	defer cancel()

	a, err := loadApp(ctx, cmd, assumeYes, log)
	if err != nil {
		return handleInvoiceError(err, log)
	}

	ctrl := a.manager.Comments()
	if err := ctrl.OpenFor(id); err != nil {
		return handleInvoiceError(err, log)
	}
	defer ctrl.Close()

	if err := run(ctx, ctrl); err != nil {
		return handleInvoiceError(err, log)
	}
	return nil
}

func runCommentList(cmd *cobra.Command, args []string) error {
	return openComments(cmd, args[0], false, func(ctx context.Context, ctrl *comments.Controller) error {
		return writeComments(cmd.OutOrStdout(), ctrl)
	})
}

func runCommentAdd(cmd *cobra.Command, args []string) error {
	text := strings.Join(args[1:], " ")
	return openComments(cmd, args[0], false, func(ctx context.Context, ctrl *comments.Controller) error {
		if err := ctrl.BeginCompose(); err != nil {
			return err
		}
		return ctrl.SubmitAdd(ctx, text)
	})
}

func runCommentEdit(cmd *cobra.Command, args []string) error {
	index, err := parsePosition(args[1])
	if err != nil {
		return err
	}
	text := strings.Join(args[2:], " ")
	return openComments(cmd, args[0], false, func(ctx context.Context, ctrl *comments.Controller) error {
		if err := ctrl.BeginEdit(index); err != nil {
			return err
		}
		return ctrl.SubmitEdit(ctx, text)
	})
}

func runCommentDelete(cmd *cobra.Command, args []string) error {
	index, err := parsePosition(args[1])
	if err != nil {
		return err
	}
	yes, _ := cmd.Flags().GetBool("yes")
	return openComments(cmd, args[0], yes, func(ctx context.Context, ctrl *comments.Controller) error {
		return ctrl.DeleteAt(ctx, index)
	})
}

func parsePosition(s string) (int, error) {
	index, err := strconv.Atoi(s)
	if err != nil || index < 0 {
		return 0, fmt.Errorf("invalid comment position %q. Use the number shown by 'invoices comment list'", s)
	}
	return index, nil
}

func writeComments(w io.Writer, ctrl *comments.Controller) error {
	log := ctrl.Comments()
	if len(log) == 0 {
		_, err := fmt.Fprintln(w, "No comments yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTimestamp\tText")
	for _, i := range ctrl.DisplayOrder() {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i, log[i].Timestamp, log[i].Text)
	}
	return tw.Flush()
}
