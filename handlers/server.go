// ABOUTME: Builds the MCP server with every tool registered
// ABOUTME: Shared by the stdio mcp command and the handler tests
package handlers

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewServer registers the CRM and invoice tools on a new MCP server.
func NewServer(leads *LeadHandlers, invoices *InvoiceHandlers, version string) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "taxdesk",
		Version: version,
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_leads",
		Description: "List CRM leads, optionally filtered by status, open state, or a search term",
	}, leads.ListLeads)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_lead",
		Description: "Get a lead with its full activity history and allowed next statuses",
	}, leads.GetLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "create_lead",
		Description: "Create a new lead in the CRM",
	}, leads.CreateLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "update_lead",
		Description: "Update a lead's status, value, quote flag, or notes; status changes are validated",
	}, leads.UpdateLead)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "add_lead_activity",
		Description: "Append a call, email, meeting, or note to a lead's activity history",
	}, leads.AddLeadActivity)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "lead_stats",
		Description: "Pipeline statistics: counts by status, conversion rate, won and open value",
	}, leads.LeadStats)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_invoices",
		Description: "List invoices, optionally for one user or one status",
	}, invoices.ListInvoices)

	return server
}
