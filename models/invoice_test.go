// ABOUTME: Tests for invoice numbering and payment transitions
// ABOUTME: Verifies paid is idempotent and cancelled cannot be paid
package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatInvoiceNumber(t *testing.T) {
	assert.Equal(t, "0001", FormatInvoiceNumber(1))
	assert.Equal(t, "0042", FormatInvoiceNumber(42))
	assert.Equal(t, "9999", FormatInvoiceNumber(9999))
	assert.Equal(t, "10000", FormatInvoiceNumber(10000))
}

func TestMarkPaidKeepsFirstPaidAt(t *testing.T) {
	inv := &Invoice{InvoiceNumber: "0001", Status: InvoiceStatusPending}
	first := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	changed, err := inv.MarkPaid(first, "pi_1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, InvoiceStatusPaid, inv.Status)
	assert.Equal(t, "pi_1", inv.StripePaymentIntentID)

	changed, err = inv.MarkPaid(first.Add(time.Hour), "pi_2")
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, first, *inv.PaidAt)
	assert.Equal(t, "pi_1", inv.StripePaymentIntentID)
}

func TestMarkPaidFillsMissingIntent(t *testing.T) {
	now := time.Now().UTC()
	inv := &Invoice{InvoiceNumber: "0001", Status: InvoiceStatusPending}
	_, err := inv.MarkPaid(now, "")
	require.NoError(t, err)

	changed, err := inv.MarkPaid(now.Add(time.Minute), "pi_late")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "pi_late", inv.StripePaymentIntentID)
	assert.Equal(t, now, *inv.PaidAt)
}

func TestMarkPaidRejectsCancelled(t *testing.T) {
	inv := &Invoice{InvoiceNumber: "0003", Status: InvoiceStatusCancelled}
	_, err := inv.MarkPaid(time.Now(), "pi_1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Nil(t, inv.PaidAt)
}

func TestCancel(t *testing.T) {
	inv := &Invoice{Status: InvoiceStatusPending}
	require.NoError(t, inv.Cancel(time.Now()))
	assert.Equal(t, InvoiceStatusCancelled, inv.Status)
	assert.NoError(t, inv.Cancel(time.Now()))

	paid := &Invoice{Status: InvoiceStatusPaid}
	assert.ErrorIs(t, paid.Cancel(time.Now()), ErrValidation)
}

func TestRecordPayment(t *testing.T) {
	paidAt := time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC)
	inv := &Invoice{InvoiceNumber: "0007", Amount: InitialFee, Currency: DefaultCurrency, PaidAt: &paidAt, StripeSessionID: "cs_1"}

	f := &TaxFiling{UserID: "u1", Year: 2024}
	f.RecordPayment(PaymentTypeInitial, inv, paidAt.Add(time.Hour))

	p := f.Payments[PaymentTypeInitial]
	require.NotNil(t, p)
	assert.Equal(t, InvoiceStatusPaid, p.Status)
	assert.Equal(t, "0007", p.InvoiceNumber)
	assert.Equal(t, paidAt, *p.PaidAt)
	assert.Equal(t, "cs_1", p.StripeSessionID)
}

func TestUserPermissionsValidate(t *testing.T) {
	ok := &UserPermissions{Role: RoleStaff, Modules: []string{ModuleCRM}}
	assert.NoError(t, ok.Validate())
	assert.True(t, ok.HasModule("CRM"))
	assert.False(t, ok.HasModule(ModuleUsers))

	assert.ErrorIs(t, (&UserPermissions{Role: "root"}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&UserPermissions{Role: RoleStaff, Modules: []string{"payroll"}}).Validate(), ErrValidation)
}
