// ABOUTME: Visualization CLI commands
// ABOUTME: Renders the pipeline graph and the terminal dashboard
package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/harperreed/taxdesk/viz"
	"github.com/spf13/cobra"
)

func (a *app) vizCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "viz",
		Short: "Visualization commands",
	}
	cmd.AddCommand(a.vizPipelineCommand(), a.vizDashboardCommand())
	return cmd
}

func (a *app) vizPipelineCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Generate the lead pipeline graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			leads, err := e.crm.List(cmd.Context())
			if err != nil {
				return err
			}
			dot, err := viz.GeneratePipelineGraph(cmd.Context(), leads, e.cfg.Billing.Currency)
			if err != nil {
				return err
			}

			if output != "" {
				return os.WriteFile(output, []byte(dot), 0644)
			}
			fmt.Fprintln(cmd.OutOrStdout(), dot)
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "Output file (default: stdout)")
	return cmd
}

func (a *app) vizDashboardCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Print the pipeline and invoice dashboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			leads, err := e.crm.List(cmd.Context())
			if err != nil {
				return err
			}
			invoices, err := e.billing.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), viz.RenderDashboard(viz.GenerateDashboardStats(leads, invoices, time.Now())))
			return nil
		},
	}
}
