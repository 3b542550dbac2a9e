// ABOUTME: Delete confirmation view for TUI
// ABOUTME: Handles deletion of leads with confirmation dialog
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	confirmBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("9")).
			Padding(1, 2).
			Width(60).
			Align(lipgloss.Center)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	confirmButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("9")).
				Padding(0, 2).
				MarginRight(2)

	cancelButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("8")).
				Padding(0, 2)
)

func (m Model) renderConfirmDeleteView() string {
	lead := m.selectedLead()
	if lead == nil {
		return "Lead not found"
	}

	title := warningStyle.Render("⚠  DELETE CONFIRMATION  ⚠")
	message := "Are you sure you want to delete this lead?"
	entityInfo := fmt.Sprintf("\nLEAD: %s (%s)\n", lead.Name, lead.Status)
	warning := "\nThis action cannot be undone!"

	buttons := lipgloss.JoinHorizontal(
		lipgloss.Left,
		confirmButtonStyle.Render("Yes, Delete (y)"),
		cancelButtonStyle.Render("Cancel (n/esc)"),
	)

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		title,
		"",
		message,
		entityInfo,
		warning,
		"",
		buttons,
	)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		confirmBoxStyle.Render(content),
	)
}

func (m Model) handleConfirmDeleteKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		if err := m.crm.Delete(m.ctx, m.selectedID); err != nil {
			m.statusMessage = errorStyle.Render("Error: " + err.Error())
			m.viewMode = ViewDetail
			return m, nil
		}
		kept := m.leads[:0:0]
		for _, l := range m.leads {
			if l.ID != m.selectedID {
				kept = append(kept, l)
			}
		}
		m.leads = kept
		m.statusMessage = "Successfully deleted"
		m.viewMode = ViewList
		m.selectedID = ""
		if m.selectedRow >= len(m.leads) && m.selectedRow > 0 {
			m.selectedRow--
		}
		return m, m.load
	case "n", "N", "esc":
		m.viewMode = ViewDetail
	}

	return m, nil
}
