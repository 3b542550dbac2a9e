// ABOUTME: Lead CLI commands
// ABOUTME: Human-friendly commands for listing, adding, and moving leads
package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/models"
	"github.com/spf13/cobra"
)

// cliAuthor is recorded on activities created from the command line.
const cliAuthor = "cli"

func (a *app) leadsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Manage the lead pipeline",
	}
	cmd.AddCommand(a.leadsListCommand(), a.leadsAddCommand(), a.leadsMoveCommand(), a.leadsStatsCommand())
	return cmd
}

func (a *app) leadsListCommand() *cobra.Command {
	var status string
	var open bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List leads",
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" && !models.IsValidLeadStatus(status) {
				return fmt.Errorf("invalid status: %s (valid: %s)", status, strings.Join(models.LeadStatuses, ", "))
			}

			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			leads, err := e.crm.List(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCOMPANY\tSTATUS\tVALUE")
			fmt.Fprintln(w, "--\t----\t-------\t------\t-----")
			shown := 0
			for _, l := range leads {
				if status != "" && l.Status != status {
					continue
				}
				if open && !l.IsOpen() {
					continue
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", l.ID, l.Name, l.Company, l.Status, billing.FormatMoney(l.EstimatedValue, ""))
				shown++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nTotal: %d lead(s)\n", shown)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&open, "open", false, "Only leads that are neither won nor lost")
	return cmd
}

func (a *app) leadsAddCommand() *cobra.Command {
	var input models.LeadInput
	var value float64
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new lead",
		RunE: func(cmd *cobra.Command, args []string) error {
			if input.Name == "" {
				return fmt.Errorf("--name is required")
			}
			input.EstimatedValue = models.Cents(value)

			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			lead, err := e.crm.Create(cmd.Context(), input, cliAuthor)
			if err != nil {
				return fmt.Errorf("failed to create lead: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Lead created: %s (ID: %s)\n", lead.Name, lead.ID)
			fmt.Fprintf(out, "  Status: %s\n", lead.Status)
			fmt.Fprintf(out, "  Contact method: %s\n", lead.ContactMethod)
			if lead.EstimatedValue > 0 {
				fmt.Fprintf(out, "  Estimated value: %s\n", billing.FormatMoney(lead.EstimatedValue, ""))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&input.Name, "name", "", "Lead name (required)")
	f.StringVar(&input.Email, "email", "", "Email address")
	f.StringVar(&input.Phone, "phone", "", "Phone number")
	f.StringVar(&input.Company, "company", "", "Company name")
	f.StringVar(&input.ContactMethod, "via", "", "Contact method (email, whatsapp, phone, form, referral, linkedin, instagram, other)")
	f.Float64Var(&value, "value", 0, "Estimated value in dollars")
	f.StringVar(&input.Notes, "notes", "", "Notes about the lead")
	f.StringVar(&input.Source, "source", "", "Where the lead came from")
	return cmd
}

func (a *app) leadsMoveCommand() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "move <id> <status>",
		Short: "Move a lead to a new status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			status := args[1]
			patch := models.LeadPatch{Status: &status}
			if reason != "" {
				patch.LostReason = &reason
			}
			lead, err := e.crm.Update(cmd.Context(), args[0], patch, cliAuthor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is now %s\n", lead.Name, lead.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Lost reason")
	return cmd
}

func (a *app) leadsStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show pipeline statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			stats, err := e.crm.Stats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total leads:     %d\n", stats.Total)
			fmt.Fprintf(out, "Conversion rate: %d%%\n", stats.ConversionRate)
			fmt.Fprintf(out, "Won value:       %s\n", billing.FormatMoney(stats.TotalValue, ""))
			fmt.Fprintf(out, "Pipeline value:  %s\n", billing.FormatMoney(stats.PipelineValue, ""))

			fmt.Fprintln(out, "\nBy status:")
			for _, s := range models.LeadStatuses {
				fmt.Fprintf(out, "  %-12s %d\n", s, stats.ByStatus[s])
			}

			methods := make([]string, 0, len(stats.ByContactMethod))
			for m := range stats.ByContactMethod {
				methods = append(methods, m)
			}
			sort.Strings(methods)
			fmt.Fprintln(out, "\nBy contact method:")
			for _, m := range methods {
				fmt.Fprintf(out, "  %-12s %d\n", m, stats.ByContactMethod[m])
			}
			return nil
		},
	}
}
