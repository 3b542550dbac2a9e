// ABOUTME: Terminal dashboard statistics and rendering
// ABOUTME: Provides ASCII dashboard for the lead pipeline and outstanding invoices
package viz

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/models"
)

// StaleAfter is how long an open lead may go without activity.
const StaleAfter = 14 * 24 * time.Hour

type DashboardStats struct {
	Leads models.LeadStats

	PipelineByStatus map[string]PipelineStageStats

	PendingInvoices int
	PendingAmount   int64 // in cents
	PaidInvoices    int
	PaidAmount      int64 // in cents
	Currency        string

	StaleLeads []StaleLead
}

type PipelineStageStats struct {
	Status string
	Count  int
	Amount int64 // in cents
}

type StaleLead struct {
	Name      string
	Status    string
	DaysSince int
}

// GenerateDashboardStats summarizes leads and invoices as of now.
func GenerateDashboardStats(leads []*models.Lead, invoices []*models.Invoice, now time.Time) *DashboardStats {
	stats := &DashboardStats{
		Leads:            models.ComputeLeadStats(leads),
		PipelineByStatus: make(map[string]PipelineStageStats),
		Currency:         models.DefaultCurrency,
	}

	for _, l := range leads {
		p := stats.PipelineByStatus[l.Status]
		p.Status = l.Status
		p.Count++
		p.Amount += l.EstimatedValue
		stats.PipelineByStatus[l.Status] = p

		if !l.IsOpen() {
			continue
		}
		last := l.UpdatedAt
		for _, a := range l.Activities {
			if a.CreatedAt.After(last) {
				last = a.CreatedAt
			}
		}
		if since := now.Sub(last); since > StaleAfter {
			stats.StaleLeads = append(stats.StaleLeads, StaleLead{
				Name:      l.Name,
				Status:    l.Status,
				DaysSince: int(since.Hours() / 24),
			})
		}
	}
	sort.Slice(stats.StaleLeads, func(i, j int) bool {
		return stats.StaleLeads[i].DaysSince > stats.StaleLeads[j].DaysSince
	})

	for _, inv := range invoices {
		if inv.Currency != "" {
			stats.Currency = inv.Currency
		}
		switch inv.Status {
		case models.InvoiceStatusPending:
			stats.PendingInvoices++
			stats.PendingAmount += inv.Amount
		case models.InvoiceStatusPaid:
			stats.PaidInvoices++
			stats.PaidAmount += inv.Amount
		}
	}
	return stats
}

func RenderDashboard(stats *DashboardStats) string {
	var out strings.Builder

	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
	out.WriteString("  TAXDESK DASHBOARD\n")
	out.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n\n")

	out.WriteString("PIPELINE OVERVIEW\n")
	renderPipeline(&out, stats.PipelineByStatus, stats.Currency)
	out.WriteString("\n")

	out.WriteString("STATS\n")
	out.WriteString(fmt.Sprintf("  %d leads  %d%% conversion  %s won  %s open\n",
		stats.Leads.Total, stats.Leads.ConversionRate,
		billing.FormatMoney(stats.Leads.TotalValue, stats.Currency),
		billing.FormatMoney(stats.Leads.PipelineValue, stats.Currency)))
	out.WriteString(fmt.Sprintf("  %d invoices paid (%s)  %d pending (%s)\n\n",
		stats.PaidInvoices, billing.FormatMoney(stats.PaidAmount, stats.Currency),
		stats.PendingInvoices, billing.FormatMoney(stats.PendingAmount, stats.Currency)))

	if len(stats.StaleLeads) > 0 {
		out.WriteString("NEEDS ATTENTION\n")
		out.WriteString(fmt.Sprintf("  ⚠️  %d open leads - no activity in 14+ days\n", len(stats.StaleLeads)))
		for i, l := range stats.StaleLeads {
			if i == 5 {
				out.WriteString(fmt.Sprintf("     ... and %d more\n", len(stats.StaleLeads)-i))
				break
			}
			out.WriteString(fmt.Sprintf("     %-24s %-12s %dd\n", l.Name, l.Status, l.DaysSince))
		}
	}

	return out.String()
}

func renderPipeline(out *strings.Builder, pipeline map[string]PipelineStageStats, currency string) {
	maxCount := 0
	for _, p := range pipeline {
		if p.Count > maxCount {
			maxCount = p.Count
		}
	}
	if maxCount == 0 {
		maxCount = 1
	}

	for _, status := range models.LeadStatuses {
		p, exists := pipeline[status]
		if !exists {
			continue
		}

		// Calculate bar length (0-10 blocks)
		barLength := (p.Count * 10) / maxCount
		bar := strings.Repeat("█", barLength) + strings.Repeat("░", 10-barLength)

		out.WriteString(fmt.Sprintf("  %-12s %s  %2d (%s)\n",
			status, bar, p.Count, billing.FormatMoney(p.Amount, currency)))
	}
}
