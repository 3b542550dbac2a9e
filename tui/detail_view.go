// ABOUTME: Detail view for a single lead or invoice
// ABOUTME: Lead status changes and invoice cancellation happen from here
package tui

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/models"
)

var (
	fieldLabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Width(20)

	fieldValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))
)

func (m Model) renderDetailView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("DETAIL VIEW"))
	s.WriteString("\n\n")

	switch m.entity {
	case EntityLeads:
		s.WriteString(m.renderLeadDetail())
	case EntityInvoices:
		s.WriteString(m.renderInvoiceDetail())
	}

	s.WriteString("\n")
	if m.statusMessage != "" {
		s.WriteString(m.statusMessage)
		s.WriteString("\n")
	}

	s.WriteString(m.renderDetailHelp())

	return s.String()
}

func (m Model) renderLeadDetail() string {
	lead := m.selectedLead()
	if lead == nil {
		return "Lead not found"
	}

	var s strings.Builder

	s.WriteString(m.renderField("Name", lead.Name))
	s.WriteString(m.renderField("Email", lead.Email))
	s.WriteString(m.renderField("Phone", lead.Phone))
	s.WriteString(m.renderField("Company", lead.Company))
	s.WriteString(m.renderField("Contact Method", lead.ContactMethod))
	s.WriteString(m.renderField("Status", lead.Status))
	s.WriteString(m.renderField("Estimated Value", billing.FormatMoney(lead.EstimatedValue, models.DefaultCurrency)))
	if lead.QuoteSentDate != nil {
		s.WriteString(m.renderField("Quote Sent", lead.QuoteSentDate.Format("2006-01-02")))
	}
	if lead.ClosedDate != nil {
		s.WriteString(m.renderField("Closed", lead.ClosedDate.Format("2006-01-02")))
	}
	if lead.LostReason != "" {
		s.WriteString(m.renderField("Lost Reason", lead.LostReason))
	}
	s.WriteString(m.renderField("Notes", lead.Notes))

	s.WriteString("\n")
	s.WriteString(titleStyle.Render("Activity"))
	s.WriteString("\n")
	for _, a := range lead.Activities {
		s.WriteString(fmt.Sprintf("  %s  %-13s %s (%s)\n", a.CreatedAt.Format("2006-01-02 15:04"), a.Type, a.Description, a.Author))
	}

	if next := models.NextLeadStatuses(lead.Status); len(next) > 0 {
		s.WriteString("\n")
		s.WriteString(titleStyle.Render("Move To"))
		s.WriteString("\n")
		for i, status := range next {
			s.WriteString(fmt.Sprintf("  %d: %s\n", i+1, status))
		}
	}

	return s.String()
}

func (m Model) renderInvoiceDetail() string {
	inv := m.selectedInvoice()
	if inv == nil {
		return "Invoice not found"
	}

	var s strings.Builder

	s.WriteString(m.renderField("Invoice", inv.InvoiceNumber))
	s.WriteString(m.renderField("Client", fmt.Sprintf("%s <%s>", inv.UserName, inv.UserEmail)))
	s.WriteString(m.renderField("Tax Year", strconv.Itoa(inv.TaxYear)))
	s.WriteString(m.renderField("Type", inv.Type))
	s.WriteString(m.renderField("Amount", billing.FormatMoney(inv.Amount, inv.Currency)))
	s.WriteString(m.renderField("Status", inv.Status))
	s.WriteString(m.renderField("Created", inv.CreatedAt.Format("2006-01-02 15:04")))
	if inv.PaidAt != nil {
		s.WriteString(m.renderField("Paid", inv.PaidAt.Format("2006-01-02 15:04")))
	}
	if inv.StripePaymentIntentID != "" {
		s.WriteString(m.renderField("Payment Intent", inv.StripePaymentIntentID))
	}

	return s.String()
}

func (m Model) renderField(label, value string) string {
	if value == "" {
		value = "-"
	}
	return fieldLabelStyle.Render(label+":") + " " + fieldValueStyle.Render(value) + "\n"
}

func (m Model) renderDetailHelp() string {
	var help []string
	switch m.entity {
	case EntityLeads:
		help = []string{"1-9: Change status", "s: Mark quote sent", "d: Delete"}
	case EntityInvoices:
		help = []string{"c: Cancel invoice"}
	}
	help = append(help, "Esc: Back", "q: Quit")
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "esc", "backspace":
		m.viewMode = ViewList
		m.statusMessage = ""
		return m, nil
	}

	switch m.entity {
	case EntityLeads:
		return m.handleLeadKeys(key)
	case EntityInvoices:
		return m.handleInvoiceKeys(key)
	}
	return m, nil
}

func (m Model) handleLeadKeys(key string) (tea.Model, tea.Cmd) {
	lead := m.selectedLead()
	if lead == nil {
		return m, nil
	}

	switch key {
	case "d":
		m.viewMode = ViewConfirmDelete
		return m, nil
	case "s":
		sent := true
		return m.applyPatch(lead.ID, models.LeadPatch{QuoteSent: &sent}, "Quote marked as sent")
	}

	n, err := strconv.Atoi(key)
	if err != nil {
		return m, nil
	}
	next := models.NextLeadStatuses(lead.Status)
	if n < 1 || n > len(next) {
		return m, nil
	}
	status := next[n-1]
	return m.applyPatch(lead.ID, models.LeadPatch{Status: &status}, "Status changed to "+status)
}

func (m Model) applyPatch(id string, patch models.LeadPatch, done string) (tea.Model, tea.Cmd) {
	updated, err := m.crm.Update(m.ctx, id, patch, Author)
	if err != nil {
		m.statusMessage = errorStyle.Render("Error: " + err.Error())
		return m, nil
	}
	for i, l := range m.leads {
		if l.ID == id {
			m.leads[i] = updated
		}
	}
	m.statusMessage = done
	return m, m.load
}

func (m Model) handleInvoiceKeys(key string) (tea.Model, tea.Cmd) {
	if key != "c" {
		return m, nil
	}
	inv := m.selectedInvoice()
	if inv == nil {
		return m, nil
	}
	updated, err := m.billing.Cancel(m.ctx, inv.InvoiceNumber)
	if err != nil {
		m.statusMessage = errorStyle.Render("Error: " + err.Error())
		return m, nil
	}
	for i, cur := range m.invoices {
		if cur.InvoiceNumber == updated.InvoiceNumber {
			m.invoices[i] = updated
		}
	}
	m.statusMessage = "Invoice " + updated.InvoiceNumber + " cancelled"
	return m, m.load
}
