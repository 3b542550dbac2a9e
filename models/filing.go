// ABOUTME: Per-user per-year tax filing payment status record
// ABOUTME: Updated together with the invoice it was paid by
package models

import "time"

// Filing payment types.
const (
	PaymentTypeInitial = "initial"
	PaymentTypeFinal   = "final"
)

// FilingPayment is the payment state for one payment type of a filing.
type FilingPayment struct {
	Status          string     `json:"status"`
	Amount          int64      `json:"amount"` // in cents
	Currency        string     `json:"currency"`
	InvoiceNumber   string     `json:"invoiceNumber,omitempty"`
	StripeSessionID string     `json:"stripeSessionId,omitempty"`
	PaidAt          *time.Time `json:"paidAt,omitempty"`
}

type TaxFiling struct {
	UserID    string                    `json:"userId"`
	Year      int                       `json:"year"`
	Payments  map[string]*FilingPayment `json:"payments"`
	UpdatedAt time.Time                 `json:"updatedAt"`
}

// NewTaxFiling returns an empty filing record.
func NewTaxFiling(userID string, year int) *TaxFiling {
	return &TaxFiling{UserID: userID, Year: year, Payments: map[string]*FilingPayment{}}
}

// RecordPayment marks paymentType as paid by inv.
func (f *TaxFiling) RecordPayment(paymentType string, inv *Invoice, now time.Time) {
	if f.Payments == nil {
		f.Payments = map[string]*FilingPayment{}
	}
	paidAt := now
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	f.Payments[paymentType] = &FilingPayment{
		Status:          InvoiceStatusPaid,
		Amount:          inv.Amount,
		Currency:        inv.Currency,
		InvoiceNumber:   inv.InvoiceNumber,
		StripeSessionID: inv.StripeSessionID,
		PaidAt:          &paidAt,
	}
	f.UpdatedAt = now
}
