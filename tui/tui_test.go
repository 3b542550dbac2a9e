// ABOUTME: Tests for TUI key handling against an in-memory store
// ABOUTME: Drives the model through list, detail, delete, and dashboard views
package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/crm"
	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
	"github.com/harperreed/taxdesk/payments"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	repos   *db.Repositories
	crm     *crm.Service
	billing *billing.Service
}

func setup(t *testing.T) *harness {
	t.Helper()
	repos := db.New(kv.NewTestStore(t))
	return &harness{
		repos:   repos,
		crm:     crm.NewService(repos.Leads, zerolog.Nop()),
		billing: billing.NewService(repos, payments.NewFake(), billing.Options{}, zerolog.Nop(), nil),
	}
}

func (h *harness) model(t *testing.T) Model {
	t.Helper()
	m := NewModel(context.Background(), h.crm, h.billing)
	return send(t, m, m.load())
}

func send(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func keys(t *testing.T, m Model, ks ...string) Model {
	t.Helper()
	for _, k := range ks {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "tab":
			msg = tea.KeyMsg{Type: tea.KeyTab}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		m = send(t, m, msg)
	}
	return m
}

func TestLoadPopulatesLists(t *testing.T) {
	h := setup(t)
	_, err := h.crm.Create(context.Background(), models.LeadInput{Name: "Acme Co"}, "alice")
	require.NoError(t, err)

	m := h.model(t)
	assert.Len(t, m.leads, 1)
	assert.Empty(t, m.invoices)
	assert.Contains(t, m.View(), "Acme Co")
}

func TestChangeStatusFromDetail(t *testing.T) {
	h := setup(t)
	lead, err := h.crm.Create(context.Background(), models.LeadInput{Name: "Acme Co"}, "alice")
	require.NoError(t, err)

	m := keys(t, h.model(t), "enter")
	assert.Equal(t, ViewDetail, m.viewMode)
	assert.Equal(t, lead.ID, m.selectedID)
	assert.Contains(t, m.View(), "1: contacted")

	m = keys(t, m, "1")
	assert.Equal(t, "Status changed to contacted", m.statusMessage)

	got, err := h.crm.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusContacted, got.Status)
	last := got.Activities[len(got.Activities)-1]
	assert.Equal(t, models.ActivityStatusChange, last.Type)
	assert.Equal(t, Author, last.Author)

	// Out-of-range choices are ignored.
	m = keys(t, m, "9")
	got, err = h.crm.Get(context.Background(), lead.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeadStatusContacted, got.Status)

	m = keys(t, m, "esc")
	assert.Equal(t, ViewList, m.viewMode)
}

func TestDeleteLead(t *testing.T) {
	h := setup(t)
	lead, err := h.crm.Create(context.Background(), models.LeadInput{Name: "Acme Co"}, "alice")
	require.NoError(t, err)

	m := keys(t, h.model(t), "enter", "d")
	assert.Equal(t, ViewConfirmDelete, m.viewMode)
	assert.Contains(t, m.View(), "Acme Co")

	m = keys(t, m, "n")
	assert.Equal(t, ViewDetail, m.viewMode)

	m = keys(t, m, "d", "y")
	assert.Equal(t, ViewList, m.viewMode)
	assert.Empty(t, m.leads)

	_, err = h.crm.Get(context.Background(), lead.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCancelInvoice(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	require.NoError(t, h.repos.Users.Put(ctx, &models.User{ID: "u1", Email: "one@example.com", Name: "One"}))
	_, err := h.billing.CreateInitialInvoice(ctx, "u1", billing.CreateInvoiceRequest{TaxYear: 2024})
	require.NoError(t, err)

	m := keys(t, h.model(t), "tab")
	assert.Equal(t, EntityInvoices, m.entity)
	assert.Contains(t, m.View(), "one@example.com")

	m = keys(t, m, "enter", "c")
	assert.Equal(t, "Invoice 0001 cancelled", m.statusMessage)

	inv, err := h.billing.GetInvoice(ctx, "0001", billing.Caller{Admin: true})
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusCancelled, inv.Status)
}

func TestDashboardView(t *testing.T) {
	h := setup(t)
	_, err := h.crm.Create(context.Background(), models.LeadInput{Name: "Acme Co", EstimatedValue: 25000}, "alice")
	require.NoError(t, err)

	m := keys(t, h.model(t), "v")
	assert.Equal(t, ViewDashboard, m.viewMode)
	assert.Contains(t, m.View(), "TAXDESK DASHBOARD")

	m = keys(t, m, "esc")
	assert.Equal(t, ViewList, m.viewMode)
}
