// ABOUTME: HTML invoice document rendering
// ABOUTME: Pure function of the invoice; tax is zero with a compliance note
package billing

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/harperreed/taxdesk/models"
)

//go:embed templates/invoice.html
var templateFS embed.FS

var invoiceTemplate = template.Must(template.New("invoice.html").Funcs(template.FuncMap{
	"money": FormatMoney,
	"date": func(inv *models.Invoice) string {
		return inv.CreatedAt.Format("January 2, 2006")
	},
}).ParseFS(templateFS, "templates/invoice.html"))

// Issuer is the business printed on the invoice header.
type Issuer struct {
	Name    string
	Email   string
	Address string
}

type invoiceView struct {
	Issuer   Issuer
	Invoice  *models.Invoice
	Subtotal int64
	Tax      int64
	Total    int64
	TaxNote  string
	Banner   string
	Paid     bool
}

// taxNote explains the zero tax line.
const taxNote = "Tax preparation services are billed without GST/HST under the small supplier exemption."

// RenderInvoice renders inv as a standalone HTML document.
func RenderInvoice(inv *models.Invoice, issuer Issuer) ([]byte, error) {
	view := invoiceView{
		Issuer:   issuer,
		Invoice:  inv,
		Subtotal: inv.Amount,
		Tax:      0,
		Total:    inv.Amount,
		TaxNote:  taxNote,
		Banner:   statusBanner(inv),
		Paid:     inv.Status == models.InvoiceStatusPaid,
	}

	var buf bytes.Buffer
	if err := invoiceTemplate.Execute(&buf, view); err != nil {
		return nil, fmt.Errorf("failed to render invoice %s: %w", inv.InvoiceNumber, err)
	}
	return buf.Bytes(), nil
}

func statusBanner(inv *models.Invoice) string {
	switch inv.Status {
	case models.InvoiceStatusPaid:
		if inv.PaidAt != nil {
			return "PAID on " + inv.PaidAt.Format("January 2, 2006")
		}
		return "PAID"
	case models.InvoiceStatusCancelled:
		return "CANCELLED"
	default:
		return "PAYMENT PENDING"
	}
}

// FormatMoney renders cents as a dollar amount with currency, e.g. "$50.00 CAD".
func FormatMoney(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	out := fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
	if currency != "" {
		out += " " + strings.ToUpper(currency)
	}
	return out
}
