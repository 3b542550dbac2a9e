package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/taxdesk/billing"
)

func (m Model) renderListView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("TAXDESK"))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	s.WriteString(m.renderTable())
	s.WriteString("\n")

	if m.statusMessage != "" {
		s.WriteString(m.statusMessage)
		s.WriteString("\n")
	}

	s.WriteString(m.renderListHelp())

	return s.String()
}

func (m Model) renderTabs() string {
	tabs := []string{"Leads", "Invoices"}
	var rendered []string

	for i, tab := range tabs {
		if EntityType(i) == m.entity {
			rendered = append(rendered, tabActiveStyle.Render(tab))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderTable() string {
	if m.entity == EntityInvoices {
		return m.renderInvoicesTable()
	}
	return m.renderLeadsTable()
}

func (m Model) tableHeight() int {
	if h := m.height - 12; h > 3 {
		return h
	}
	return 3
}

func (m Model) renderLeadsTable() string {
	columns := []table.Column{
		{Title: "Name", Width: 24},
		{Title: "Company", Width: 20},
		{Title: "Status", Width: 12},
		{Title: "Value", Width: 14},
		{Title: "Via", Width: 10},
	}

	rows := make([]table.Row, 0, len(m.leads))
	for _, l := range m.leads {
		rows = append(rows, table.Row{
			l.Name,
			l.Company,
			l.Status,
			billing.FormatMoney(l.EstimatedValue, ""),
			l.ContactMethod,
		})
	}

	return m.newTable(columns, rows).View()
}

func (m Model) renderInvoicesTable() string {
	columns := []table.Column{
		{Title: "Number", Width: 8},
		{Title: "Client", Width: 28},
		{Title: "Year", Width: 6},
		{Title: "Amount", Width: 14},
		{Title: "Status", Width: 10},
	}

	rows := make([]table.Row, 0, len(m.invoices))
	for _, inv := range m.invoices {
		rows = append(rows, table.Row{
			inv.InvoiceNumber,
			inv.UserEmail,
			fmt.Sprintf("%d", inv.TaxYear),
			billing.FormatMoney(inv.Amount, inv.Currency),
			inv.Status,
		})
	}

	return m.newTable(columns, rows).View()
}

func (m Model) newTable(columns []table.Column, rows []table.Row) table.Model {
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(m.tableHeight()),
	)
	if m.selectedRow < len(rows) {
		t.SetCursor(m.selectedRow)
	}
	return t
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Tab: Switch tabs",
		"Enter: View details",
		"v: Dashboard",
		"r: Reload",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < m.rowCount()-1 {
			m.selectedRow++
		}
	case "tab":
		m.entity = (m.entity + 1) % entityCount
		m.selectedRow = 0
	case "enter":
		if id := m.getSelectedID(); id != "" {
			m.selectedID = id
			m.viewMode = ViewDetail
			m.statusMessage = ""
		}
	case "v":
		m.viewMode = ViewDashboard
	case "r":
		return m, m.load
	}

	return m, nil
}

func (m Model) getSelectedID() string {
	switch m.entity {
	case EntityLeads:
		if m.selectedRow < len(m.leads) {
			return m.leads[m.selectedRow].ID
		}
	case EntityInvoices:
		if m.selectedRow < len(m.invoices) {
			return m.invoices[m.selectedRow].InvoiceNumber
		}
	}
	return ""
}
