// ABOUTME: Interactive terminal subcommand
// ABOUTME: Runs the bubbletea pipeline browser in the alternate screen
package cli

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/taxdesk/tui"
	"github.com/spf13/cobra"
)

func (a *app) tuiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse leads and invoices interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			p := tea.NewProgram(tui.NewModel(ctx, e.crm, e.billing), tea.WithAltScreen())
			_, err = p.Run()
			return err
		},
	}
}
