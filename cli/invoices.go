// ABOUTME: Invoice CLI commands
// ABOUTME: Lists invoices and cancels pending ones
package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/models"
	"github.com/spf13/cobra"
)

func (a *app) invoicesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invoices",
		Short: "Inspect and manage invoices",
	}
	cmd.AddCommand(a.invoicesListCommand(), a.invoicesCancelCommand())
	return cmd
}

func (a *app) invoicesListCommand() *cobra.Command {
	var userID, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			switch status {
			case "", models.InvoiceStatusPending, models.InvoiceStatusPaid, models.InvoiceStatusCancelled:
			default:
				return fmt.Errorf("invalid status: %s (valid: pending, paid, cancelled)", status)
			}

			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			var invoices []*models.Invoice
			if userID != "" {
				invoices, err = e.billing.ListForUser(cmd.Context(), userID)
			} else {
				invoices, err = e.billing.ListAll(cmd.Context())
			}
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NUMBER\tCLIENT\tYEAR\tAMOUNT\tSTATUS\tCREATED")
			fmt.Fprintln(w, "------\t------\t----\t------\t------\t-------")
			shown := 0
			for _, inv := range invoices {
				if status != "" && inv.Status != status {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n",
					inv.InvoiceNumber, inv.UserEmail, inv.TaxYear,
					billing.FormatMoney(inv.Amount, inv.Currency), inv.Status,
					inv.CreatedAt.Format("2006-01-02"))
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d invoice(s)\n", shown)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "Only invoices for this user ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	return cmd
}

func (a *app) invoicesCancelCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <number>",
		Short: "Cancel a pending invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			inv, err := e.billing.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Invoice %s cancelled\n", inv.InvoiceNumber)
			return nil
		},
	}
}
