// ABOUTME: Invoice model and its payment status state machine
// ABOUTME: Invoices start pending and end either paid or cancelled
package models

import (
	"fmt"
	"time"
)

// Invoice statuses.
const (
	InvoiceStatusPending   = "pending"
	InvoiceStatusPaid      = "paid"
	InvoiceStatusCancelled = "cancelled"
)

// Invoice types.
const (
	InvoiceTypeInitial = "initial"
	InvoiceTypeFinal   = "final"
)

// DefaultCurrency is used for every fixed-fee invoice.
const DefaultCurrency = "CAD"

// InitialFee is the fixed initial filing fee in cents.
const InitialFee int64 = 5000

type Invoice struct {
	InvoiceNumber         string     `json:"invoiceNumber"`
	UserID                string     `json:"userId"`
	UserName              string     `json:"userName"`
	UserEmail             string     `json:"userEmail"`
	TaxYear               int        `json:"taxYear"`
	Type                  string     `json:"type"`
	Amount                int64      `json:"amount"` // in cents
	Currency              string     `json:"currency"`
	Status                string     `json:"status"`
	DocumentCount         int        `json:"documentCount,omitempty"`
	Description           string     `json:"description,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
	PaidAt                *time.Time `json:"paidAt,omitempty"`
	StripeSessionID       string     `json:"stripeSessionId,omitempty"`
	StripePaymentIntentID string     `json:"stripePaymentIntentId,omitempty"`
}

// FormatInvoiceNumber zero-pads a counter value to four digits.
func FormatInvoiceNumber(n int64) string {
	return fmt.Sprintf("%04d", n)
}

// MarkPaid moves a pending invoice to paid. Re-applying to a paid invoice is
// a no-op that keeps the original paidAt; changed reports whether anything was
// written. A cancelled invoice cannot be paid.
func (inv *Invoice) MarkPaid(now time.Time, paymentIntentID string) (changed bool, err error) {
	switch inv.Status {
	case InvoiceStatusPaid:
		if paymentIntentID != "" && inv.StripePaymentIntentID == "" {
			inv.StripePaymentIntentID = paymentIntentID
			inv.UpdatedAt = now
			return true, nil
		}
		return false, nil
	case InvoiceStatusCancelled:
		return false, fmt.Errorf("%w: invoice %s is cancelled", ErrInvalidTransition, inv.InvoiceNumber)
	}

	paid := now
	inv.Status = InvoiceStatusPaid
	inv.PaidAt = &paid
	if paymentIntentID != "" {
		inv.StripePaymentIntentID = paymentIntentID
	}
	inv.UpdatedAt = now
	return true, nil
}

// Cancel moves a pending invoice to cancelled.
func (inv *Invoice) Cancel(now time.Time) error {
	switch inv.Status {
	case InvoiceStatusCancelled:
		return nil
	case InvoiceStatusPaid:
		return fmt.Errorf("%w: invoice %s is already paid", ErrInvalidTransition, inv.InvoiceNumber)
	}
	inv.Status = InvoiceStatusCancelled
	inv.UpdatedAt = now
	return nil
}

// IsPending reports whether the invoice is still awaiting payment.
func (inv *Invoice) IsPending() bool {
	return inv.Status == InvoiceStatusPending
}
