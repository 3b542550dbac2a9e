package tui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/taxdesk/viz"
)

func (m Model) renderDashboardView() string {
	var s strings.Builder
	stats := viz.GenerateDashboardStats(m.leads, m.invoices, m.now())
	s.WriteString(viz.RenderDashboard(stats))
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Esc: Back • r: Reload • q: Quit"))
	return s.String()
}

func (m Model) handleDashboardKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "v":
		m.viewMode = ViewList
	case "r":
		return m, m.load
	}
	return m, nil
}
