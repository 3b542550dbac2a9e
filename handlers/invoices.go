// ABOUTME: Invoice MCP tool handlers
// ABOUTME: Implements the read-only list_invoices tool
package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/models"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type InvoiceHandlers struct {
	billing *billing.Service
}

func NewInvoiceHandlers(service *billing.Service) *InvoiceHandlers {
	return &InvoiceHandlers{billing: service}
}

type ListInvoicesInput struct {
	UserID string `json:"user_id,omitempty" jsonschema:"Only invoices for this user"`
	Status string `json:"status,omitempty" jsonschema:"Only invoices with this status: pending, paid, cancelled"`
}

type InvoiceOutput struct {
	Number    string `json:"number"`
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	TaxYear   int    `json:"tax_year"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	PaidAt    string `json:"paid_at,omitempty"`
}

type ListInvoicesOutput struct {
	Invoices []InvoiceOutput `json:"invoices"`
	Count    int             `json:"count"`
}

func (h *InvoiceHandlers) ListInvoices(ctx context.Context, _ *mcp.CallToolRequest, input ListInvoicesInput) (*mcp.CallToolResult, ListInvoicesOutput, error) {
	switch input.Status {
	case "", models.InvoiceStatusPending, models.InvoiceStatusPaid, models.InvoiceStatusCancelled:
	default:
		return nil, ListInvoicesOutput{}, fmt.Errorf("invalid status: %s (valid: pending, paid, cancelled)", input.Status)
	}

	var (
		invoices []*models.Invoice
		err      error
	)
	if input.UserID != "" {
		invoices, err = h.billing.ListForUser(ctx, input.UserID)
	} else {
		invoices, err = h.billing.ListAll(ctx)
	}
	if err != nil {
		return nil, ListInvoicesOutput{}, fmt.Errorf("failed to list invoices: %w", err)
	}

	out := ListInvoicesOutput{Invoices: []InvoiceOutput{}}
	for _, inv := range invoices {
		if input.Status != "" && inv.Status != input.Status {
			continue
		}
		out.Invoices = append(out.Invoices, invoiceToOutput(inv))
	}
	out.Count = len(out.Invoices)
	return nil, out, nil
}

func invoiceToOutput(inv *models.Invoice) InvoiceOutput {
	out := InvoiceOutput{
		Number:    inv.InvoiceNumber,
		UserID:    inv.UserID,
		UserEmail: inv.UserEmail,
		TaxYear:   inv.TaxYear,
		Type:      inv.Type,
		Amount:    billing.FormatMoney(inv.Amount, inv.Currency),
		Status:    inv.Status,
		CreatedAt: inv.CreatedAt.Format(time.RFC3339),
	}
	if inv.PaidAt != nil {
		out.PaidAt = inv.PaidAt.Format(time.RFC3339)
	}
	return out
}
