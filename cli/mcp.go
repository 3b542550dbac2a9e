// ABOUTME: MCP server subcommand
// ABOUTME: Starts the MCP server on stdio for assistant integrations
package cli

import (
	"context"
	"os"
	"os/signal"

	"github.com/harperreed/taxdesk/handlers"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func (a *app) mcpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open()
			if err != nil {
				return err
			}
			defer func() { _ = e.Close() }()

			e.log.Info().Msg("starting MCP server")
			server := handlers.NewServer(
				handlers.NewLeadHandlers(e.crm, handlers.DefaultAuthor),
				handlers.NewInvoiceHandlers(e.billing),
				a.version,
			)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
}
