// ABOUTME: Tests for dashboard statistics and the pipeline graph
// ABOUTME: Uses hand-built leads and invoices with a fixed clock
package viz

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/taxdesk/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleLeads(t *testing.T) []*models.Lead {
	t.Helper()
	old := now.Add(-30 * 24 * time.Hour)

	stale, err := models.NewLead(models.LeadInput{Name: "Stale Co", EstimatedValue: 10000}, "staff", old)
	require.NoError(t, err)

	won, err := models.NewLead(models.LeadInput{Name: "Won Co", EstimatedValue: 40000}, "staff", now)
	require.NoError(t, err)
	status := models.LeadStatusContacted
	require.NoError(t, won.Apply(models.LeadPatch{Status: &status}, "staff", now))
	status = models.LeadStatusWon
	require.NoError(t, won.Apply(models.LeadPatch{Status: &status}, "staff", now))

	return []*models.Lead{stale, won}
}

func TestGenerateDashboardStats(t *testing.T) {
	invoices := []*models.Invoice{
		{InvoiceNumber: "0001", Amount: 5000, Currency: "CAD", Status: models.InvoiceStatusPaid},
		{InvoiceNumber: "0002", Amount: 5000, Currency: "CAD", Status: models.InvoiceStatusPending},
		{InvoiceNumber: "0003", Amount: 5000, Currency: "CAD", Status: models.InvoiceStatusCancelled},
	}
	stats := GenerateDashboardStats(sampleLeads(t), invoices, now)

	assert.Equal(t, 2, stats.Leads.Total)
	assert.Equal(t, 1, stats.PipelineByStatus[models.LeadStatusWon].Count)
	assert.Equal(t, int64(10000), stats.PipelineByStatus[models.LeadStatusNew].Amount)
	assert.Equal(t, 1, stats.PaidInvoices)
	assert.Equal(t, int64(5000), stats.PendingAmount)
	require.Len(t, stats.StaleLeads, 1)
	assert.Equal(t, "Stale Co", stats.StaleLeads[0].Name)
	assert.Equal(t, 30, stats.StaleLeads[0].DaysSince)

	out := RenderDashboard(stats)
	assert.Contains(t, out, "TAXDESK DASHBOARD")
	assert.Contains(t, out, "50% conversion")
	assert.Contains(t, out, "$400.00 CAD won")
	assert.Contains(t, out, "Stale Co")
}

func TestCountTransitions(t *testing.T) {
	counts := countTransitions(sampleLeads(t))
	assert.Equal(t, 1, counts[transition{models.LeadStatusNew, models.LeadStatusContacted}])
	assert.Equal(t, 1, counts[transition{models.LeadStatusContacted, models.LeadStatusWon}])
	assert.Zero(t, counts[transition{models.LeadStatusNew, models.LeadStatusLost}])
}

func TestGeneratePipelineGraph(t *testing.T) {
	dot, err := GeneratePipelineGraph(context.Background(), sampleLeads(t), "CAD")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(dot), "digraph") || strings.Contains(dot, "digraph"))
	for _, status := range models.LeadStatuses {
		assert.Contains(t, dot, status)
	}
}
