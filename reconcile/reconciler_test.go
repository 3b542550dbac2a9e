// ABOUTME: Tests for webhook reconciliation outcomes
// ABOUTME: Uses the real billing service over an in-memory store
package reconcile

import (
	"context"
	"testing"

	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/models"
	"github.com/harperreed/taxdesk/payments"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Reconciler, *billing.Service, *db.Repositories) {
	t.Helper()
	repos := db.New(kv.NewTestStore(t))
	require.NoError(t, repos.Users.Put(context.Background(), &models.User{ID: "u1", Email: "u1@example.com"}))
	svc := billing.NewService(repos, payments.NewFake(), billing.Options{}, zerolog.Nop(), nil)
	return New(svc, zerolog.Nop(), nil), svc, repos
}

func completed(number string, meta map[string]string) *payments.Event {
	m := map[string]string{}
	if number != "" {
		m[payments.MetaInvoiceNumber] = number
	}
	for k, v := range meta {
		m[k] = v
	}
	return &payments.Event{
		ID:   "evt_1",
		Type: payments.EventCheckoutCompleted,
		Session: &payments.CheckoutSession{
			ID:              "cs_1",
			PaymentStatus:   payments.PaymentStatusPaid,
			PaymentIntentID: "pi_1",
			Metadata:        m,
		},
	}
}

func TestHandleCompletedMarksPaid(t *testing.T) {
	r, svc, repos := setup(t)
	ctx := context.Background()
	_, err := svc.CreateInitialInvoice(ctx, "u1", billing.CreateInvoiceRequest{TaxYear: 2024})
	require.NoError(t, err)

	ev := completed("0001", map[string]string{
		payments.MetaUserID:      "u1",
		payments.MetaTaxYear:     "2024",
		payments.MetaPaymentType: models.PaymentTypeInitial,
	})
	assert.Equal(t, OutcomePaid, r.HandleEvent(ctx, ev))

	inv, err := repos.Invoices.Get(ctx, "0001")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, "pi_1", inv.StripePaymentIntentID)
	assert.Equal(t, "cs_1", inv.StripeSessionID)

	filing, err := repos.Filings.Get(ctx, "u1", 2024)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, filing.Payments[models.PaymentTypeInitial].Status)

	// Redelivery is harmless
	assert.Equal(t, OutcomeDuplicate, r.HandleEvent(ctx, ev))
}

func TestHandleDropsUnusableEvents(t *testing.T) {
	r, svc, _ := setup(t)
	ctx := context.Background()

	assert.Equal(t, OutcomeIgnored, r.HandleEvent(ctx, &payments.Event{ID: "evt_x", Type: "invoice.created"}))
	assert.Equal(t, OutcomeNoInvoice, r.HandleEvent(ctx, completed("", nil)))
	assert.Equal(t, OutcomeNoInvoice, r.HandleEvent(ctx, &payments.Event{Type: payments.EventCheckoutCompleted}))
	assert.Equal(t, OutcomeUnknownInvoice, r.HandleEvent(ctx, completed("9999", nil)))

	_, err := svc.CreateInitialInvoice(ctx, "u1", billing.CreateInvoiceRequest{TaxYear: 2024})
	require.NoError(t, err)
	_, err = svc.Cancel(ctx, "0001")
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, r.HandleEvent(ctx, completed("0001", nil)))
}

func TestHandleCompletedUnpaidWaitsForAsyncSuccess(t *testing.T) {
	r, svc, repos := setup(t)
	ctx := context.Background()
	_, err := svc.CreateInitialInvoice(ctx, "u1", billing.CreateInvoiceRequest{TaxYear: 2024})
	require.NoError(t, err)

	ev := completed("0001", map[string]string{payments.MetaUserID: "u1", payments.MetaTaxYear: "2024"})
	ev.Session.PaymentStatus = payments.PaymentStatusUnpaid
	ev.Session.PaymentIntentID = ""
	assert.Equal(t, OutcomeAwaiting, r.HandleEvent(ctx, ev))

	inv, err := repos.Invoices.Get(ctx, "0001")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPending, inv.Status)
	assert.Empty(t, inv.StripePaymentIntentID)

	settled := completed("0001", map[string]string{payments.MetaUserID: "u1", payments.MetaTaxYear: "2024"})
	settled.ID = "evt_2"
	settled.Type = payments.EventCheckoutAsyncSucceeded
	assert.Equal(t, OutcomePaid, r.HandleEvent(ctx, settled))

	inv, err = repos.Invoices.Get(ctx, "0001")
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, inv.Status)
}
