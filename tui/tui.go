// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Provides interactive full-screen interface for leads and invoices
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/crm"
	"github.com/harperreed/taxdesk/models"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewDashboard
	ViewConfirmDelete
)

// EntityType represents the type of entity being viewed
type EntityType int

const (
	EntityLeads EntityType = iota
	EntityInvoices
	entityCount
)

// Author is recorded on activities created from the TUI.
const Author = "tui"

// Model is the main bubbletea model
type Model struct {
	ctx      context.Context
	crm      *crm.Service
	billing  *billing.Service
	viewMode ViewMode
	entity   EntityType

	leads    []*models.Lead
	invoices []*models.Invoice

	selectedRow int
	selectedID  string

	statusMessage string

	width  int
	height int
	now    func() time.Time
	err    error
}

type loadedMsg struct {
	leads    []*models.Lead
	invoices []*models.Invoice
	err      error
}

// NewModel creates a new TUI model
func NewModel(ctx context.Context, leads *crm.Service, invoices *billing.Service) Model {
	return Model{
		ctx:      ctx,
		crm:      leads,
		billing:  invoices,
		viewMode: ViewList,
		entity:   EntityLeads,
		width:    80,
		height:   24,
		now:      time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	return m.load
}

func (m Model) load() tea.Msg {
	leads, err := m.crm.List(m.ctx)
	if err != nil {
		return loadedMsg{err: err}
	}
	invoices, err := m.billing.ListAll(m.ctx)
	return loadedMsg{leads: leads, invoices: invoices, err: err}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.leads = msg.leads
			m.invoices = msg.invoices
		}
		if n := m.rowCount(); m.selectedRow >= n && n > 0 {
			m.selectedRow = n - 1
		}
		return m, nil
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewDashboard:
		return m.renderDashboardView()
	case ViewConfirmDelete:
		return m.renderConfirmDeleteView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewDashboard:
		return m.handleDashboardKeys(msg)
	case ViewConfirmDelete:
		return m.handleConfirmDeleteKeys(msg)
	}

	return m, nil
}

func (m Model) rowCount() int {
	if m.entity == EntityInvoices {
		return len(m.invoices)
	}
	return len(m.leads)
}

func (m Model) selectedLead() *models.Lead {
	for _, l := range m.leads {
		if l.ID == m.selectedID {
			return l
		}
	}
	return nil
}

func (m Model) selectedInvoice() *models.Invoice {
	for _, inv := range m.invoices {
		if inv.InvoiceNumber == m.selectedID {
			return inv
		}
	}
	return nil
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)
