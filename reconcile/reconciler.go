// ABOUTME: Payment reconciliation from verified provider webhook events
// ABOUTME: Every outcome is logged and counted; nothing is returned to retry
package reconcile

import (
	"context"
	"errors"

	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/metrics"
	"github.com/harperreed/taxdesk/models"
	"github.com/harperreed/taxdesk/payments"
	"github.com/rs/zerolog"
)

// Outcome labels how an event was handled.
type Outcome string

const (
	OutcomePaid           Outcome = "paid"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeIgnored        Outcome = "ignored"
	OutcomeNoInvoice      Outcome = "missing_invoice_number"
	OutcomeUnknownInvoice Outcome = "unknown_invoice"
	OutcomeRejected       Outcome = "rejected"
	OutcomeAwaiting       Outcome = "awaiting_payment"
	OutcomeError          Outcome = "error"
)

// Payer records confirmed payments.
type Payer interface {
	MarkPaid(ctx context.Context, c billing.PaymentConfirmation) (*models.Invoice, bool, error)
}

// Reconciler applies checkout events to invoices.
type Reconciler struct {
	payer   Payer
	log     zerolog.Logger
	metrics *metrics.Metrics
}

// New creates a reconciler.
func New(payer Payer, log zerolog.Logger, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		payer:   payer,
		log:     log.With().Str("component", "reconcile").Logger(),
		metrics: m,
	}
}

// HandleEvent applies ev and reports what happened.
func (r *Reconciler) HandleEvent(ctx context.Context, ev *payments.Event) Outcome {
	outcome := r.handle(ctx, ev)
	r.metrics.WebhookEvent(ev.Type, string(outcome))
	return outcome
}

func (r *Reconciler) handle(ctx context.Context, ev *payments.Event) Outcome {
	log := r.log.With().Str("event_id", ev.ID).Str("event_type", ev.Type).Logger()

	switch ev.Type {
	case payments.EventCheckoutCompleted, payments.EventCheckoutAsyncSucceeded:
	default:
		log.Debug().Msg("ignoring event")
		return OutcomeIgnored
	}
	if ev.Session == nil {
		log.Warn().Msg("checkout event without session")
		return OutcomeNoInvoice
	}

	number := ev.Session.Metadata[payments.MetaInvoiceNumber]
	if number == "" {
		log.Warn().Str("session", ev.Session.ID).Msg("checkout session has no invoice number")
		return OutcomeNoInvoice
	}
	log = log.With().Str("invoice", number).Logger()

	// Delayed methods complete the session before funds arrive; the
	// async_payment_succeeded event settles those.
	if ev.Type == payments.EventCheckoutCompleted && !ev.Session.Paid() {
		log.Info().Str("session", ev.Session.ID).Str("payment_status", ev.Session.PaymentStatus).Msg("checkout completed, awaiting payment")
		return OutcomeAwaiting
	}

	inv, changed, err := r.payer.MarkPaid(ctx, billing.PaymentConfirmation{
		InvoiceNumber:   number,
		PaymentIntentID: ev.Session.PaymentIntentID,
		SessionID:       ev.Session.ID,
		Filing:          billing.FilingRefFromMetadata(ev.Session.Metadata),
		Source:          billing.SourceWebhook,
	})
	switch {
	case errors.Is(err, models.ErrNotFound):
		log.Warn().Msg("webhook names an unknown invoice")
		return OutcomeUnknownInvoice
	case errors.Is(err, models.ErrInvalidTransition):
		log.Warn().Err(err).Msg("webhook payment for an invoice that cannot be paid")
		return OutcomeRejected
	case err != nil:
		log.Error().Err(err).Msg("failed to reconcile payment")
		return OutcomeError
	case !changed:
		log.Info().Msg("invoice already paid")
		return OutcomeDuplicate
	}

	log.Info().Str("payment_intent", inv.StripePaymentIntentID).Msg("invoice reconciled")
	return OutcomePaid
}
