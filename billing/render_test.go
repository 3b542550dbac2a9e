// ABOUTME: Tests for the HTML invoice document
// ABOUTME: Checks line items, totals, banners, and escaping
package billing

import (
	"strings"
	"testing"
	"time"

	"github.com/harperreed/taxdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$50.00 CAD", FormatMoney(5000, "cad"))
	assert.Equal(t, "$0.05 CAD", FormatMoney(5, "CAD"))
	assert.Equal(t, "-$1.50 USD", FormatMoney(-150, "usd"))
}

func TestRenderInvoice(t *testing.T) {
	paidAt := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	inv := &models.Invoice{
		InvoiceNumber: "0042",
		UserName:      "Jane <script>",
		UserEmail:     "jane@example.com",
		TaxYear:       2024,
		Amount:        5000,
		Currency:      "CAD",
		Status:        models.InvoiceStatusPaid,
		Description:   "Initial tax filing fee - 2024",
		DocumentCount: 2,
		CreatedAt:     paidAt,
		PaidAt:        &paidAt,
	}

	out, err := RenderInvoice(inv, Issuer{Name: "Taxdesk"})
	require.NoError(t, err)
	html := string(out)

	assert.Contains(t, html, "Invoice #0042")
	assert.Contains(t, html, "jane@example.com")
	assert.Contains(t, html, "$50.00 CAD")
	assert.Contains(t, html, "$0.00 CAD")
	assert.Contains(t, html, "PAID on March 4, 2025")
	assert.Contains(t, html, "(2 documents)")
	assert.Contains(t, html, "small supplier")
	assert.False(t, strings.Contains(html, "<script>"))

	inv.Status = models.InvoiceStatusPending
	out, err = RenderInvoice(inv, Issuer{Name: "Taxdesk"})
	require.NoError(t, err)
	assert.Contains(t, string(out), "PAYMENT PENDING")
}
