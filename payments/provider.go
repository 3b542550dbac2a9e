// ABOUTME: Payment provider abstraction for hosted checkout sessions
// ABOUTME: Also defines verified webhook events delivered by the provider
package payments

import (
	"context"
	"errors"
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Session payment statuses.
const (
	PaymentStatusPaid   = "paid"
	PaymentStatusUnpaid = "unpaid"
)

// Event types the reconciler acts on.
const (
	EventCheckoutCompleted      = "checkout.session.completed"
	EventCheckoutAsyncSucceeded = "checkout.session.async_payment_succeeded"
)

// Metadata keys attached to every checkout session.
const (
	MetaInvoiceNumber = "invoiceNumber"
	MetaUserID        = "userId"
	MetaTaxYear       = "taxYear"
	MetaPaymentType   = "paymentType"
)

// CheckoutRequest describes a single-line-item hosted checkout.
type CheckoutRequest struct {
	Description   string
	CustomerEmail string
	Amount        int64 // in cents
	Currency      string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the provider's view of a checkout.
type CheckoutSession struct {
	ID              string            `json:"id"`
	URL             string            `json:"url,omitempty"`
	PaymentStatus   string            `json:"paymentStatus"`
	PaymentIntentID string            `json:"paymentIntentId,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Paid reports whether the provider considers the session paid.
func (s *CheckoutSession) Paid() bool {
	return s != nil && s.PaymentStatus == PaymentStatusPaid
}

// Event is a verified webhook event. Session is set for checkout events.
type Event struct {
	ID      string
	Type    string
	Session *CheckoutSession
}

// Provider creates and looks up checkout sessions.
type Provider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error)
}

// WebhookVerifier authenticates and decodes webhook deliveries.
type WebhookVerifier interface {
	ParseEvent(payload []byte, signature string) (*Event, error)
}
