// ABOUTME: Invoice repository service: creation, lookup, payment, and checkout
// ABOUTME: Invoice and filing payment status change in one store transaction
package billing

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/metrics"
	"github.com/harperreed/taxdesk/models"
	"github.com/harperreed/taxdesk/payments"
	"github.com/rs/zerolog"
)

// Payment sources recorded on the invoices_paid metric.
const (
	SourceWebhook = "webhook"
	SourceVerify  = "verify"
	SourceAdmin   = "admin"
)

// Options holds billing settings.
type Options struct {
	Fee        int64 // in cents
	Currency   string
	SuccessURL string
	CancelURL  string
}

// Caller identifies who is asking; admins bypass ownership checks.
type Caller struct {
	UserID string
	Admin  bool
}

// CreateInvoiceRequest is the body of an initial invoice request. Amount is
// in major currency units (50 means $50.00); nil means the fixed fee.
type CreateInvoiceRequest struct {
	TaxYear       int      `json:"year"`
	DocumentCount int      `json:"documentCount,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
}

// CheckoutResult is an invoice with its hosted checkout.
type CheckoutResult struct {
	Invoice     *models.Invoice `json:"invoice"`
	SessionID   string          `json:"sessionId"`
	CheckoutURL string          `json:"checkoutUrl"`
}

// FilingRef names the filing payment an invoice settles.
type FilingRef struct {
	UserID      string
	TaxYear     int
	PaymentType string
}

// PaymentConfirmation describes a payment to record against an invoice.
type PaymentConfirmation struct {
	InvoiceNumber   string
	PaymentIntentID string
	SessionID       string
	Filing          *FilingRef
	Source          string
}

// VerifyRequest checks a payment by session id or, for admins, forces one by invoice number.
type VerifyRequest struct {
	SessionID     string `json:"sessionId,omitempty"`
	InvoiceNumber string `json:"invoiceNumber,omitempty"`
}

// VerifyResult reports the outcome of a verification.
type VerifyResult struct {
	Paid    bool            `json:"paid"`
	Invoice *models.Invoice `json:"invoice,omitempty"`
}

// Service implements invoice operations.
type Service struct {
	invoices *db.InvoiceRepository
	users    *db.UserRepository
	provider payments.Provider
	opts     Options
	log      zerolog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService creates a billing service.
func NewService(repos *db.Repositories, provider payments.Provider, opts Options, log zerolog.Logger, m *metrics.Metrics) *Service {
	if opts.Fee == 0 {
		opts.Fee = models.InitialFee
	}
	if opts.Currency == "" {
		opts.Currency = models.DefaultCurrency
	}
	return &Service{
		invoices: repos.Invoices,
		users:    repos.Users,
		provider: provider,
		opts:     opts,
		log:      log.With().Str("component", "billing").Logger(),
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// Fee returns the fixed initial fee in cents.
func (s *Service) Fee() int64 { return s.opts.Fee }

// CreateInitialInvoice records a pending invoice for the user and opens a
// checkout session for it. If the provider fails the invoice stays pending
// without a session and ErrUpstream is returned.
func (s *Service) CreateInitialInvoice(ctx context.Context, userID string, req CreateInvoiceRequest) (*CheckoutResult, error) {
	amount := s.opts.Fee
	if req.Amount != nil {
		amount = models.Cents(*req.Amount)
	}
	if amount != s.opts.Fee {
		return nil, models.Invalid("amount must be %v", models.MajorUnits(s.opts.Fee))
	}
	if req.TaxYear <= 0 {
		return nil, models.Invalid("year is required")
	}
	if req.DocumentCount < 0 {
		return nil, models.Invalid("document count cannot be negative")
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", userID, err)
	}

	now := s.now()
	inv, err := s.invoices.Create(ctx, func(number string) (*models.Invoice, error) {
		return &models.Invoice{
			InvoiceNumber: number,
			UserID:        user.ID,
			UserName:      user.Name,
			UserEmail:     user.Email,
			TaxYear:       req.TaxYear,
			Type:          models.InvoiceTypeInitial,
			Amount:        amount,
			Currency:      s.opts.Currency,
			Status:        models.InvoiceStatusPending,
			DocumentCount: req.DocumentCount,
			Description:   fmt.Sprintf("Initial tax filing fee - %d", req.TaxYear),
			CreatedAt:     now,
			UpdatedAt:     now,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	s.metrics.InvoiceCreated()
	s.log.Info().Str("invoice", inv.InvoiceNumber).Str("user_id", userID).Int("tax_year", req.TaxYear).Msg("invoice created")

	return s.openCheckout(ctx, inv)
}

// RetryCheckout opens a fresh checkout session for a pending invoice.
func (s *Service) RetryCheckout(ctx context.Context, number string, caller Caller) (*CheckoutResult, error) {
	inv, err := s.GetInvoice(ctx, number, caller)
	if err != nil {
		return nil, err
	}
	if !inv.IsPending() {
		return nil, models.Invalid("invoice %s is %s", number, inv.Status)
	}
	return s.openCheckout(ctx, inv)
}

func (s *Service) openCheckout(ctx context.Context, inv *models.Invoice) (*CheckoutResult, error) {
	sess, err := s.provider.CreateCheckoutSession(ctx, payments.CheckoutRequest{
		Description:   inv.Description,
		CustomerEmail: inv.UserEmail,
		Amount:        inv.Amount,
		Currency:      inv.Currency,
		SuccessURL:    s.opts.SuccessURL,
		CancelURL:     s.opts.CancelURL,
		Metadata: map[string]string{
			payments.MetaInvoiceNumber: inv.InvoiceNumber,
			payments.MetaUserID:        inv.UserID,
			payments.MetaTaxYear:       strconv.Itoa(inv.TaxYear),
			payments.MetaPaymentType:   inv.Type,
		},
	})
	if err != nil {
		s.log.Error().Err(err).Str("invoice", inv.InvoiceNumber).Msg("checkout session failed")
		return nil, fmt.Errorf("checkout for invoice %s: %w", inv.InvoiceNumber, models.ErrUpstream)
	}

	updated, err := s.invoices.Update(ctx, inv.InvoiceNumber, func(_ kv.Txn, stored *models.Invoice) (bool, error) {
		if !stored.IsPending() {
			return false, nil
		}
		stored.StripeSessionID = sess.ID
		stored.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record checkout session: %w", err)
	}

	return &CheckoutResult{Invoice: updated, SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// GetInvoice returns an invoice the caller owns. Admins may read any invoice.
func (s *Service) GetInvoice(ctx context.Context, number string, caller Caller) (*models.Invoice, error) {
	inv, err := s.invoices.Get(ctx, number)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", number, err)
	}
	if !caller.Admin && inv.UserID != caller.UserID {
		return nil, fmt.Errorf("invoice %s: %w", number, models.ErrForbidden)
	}
	return inv, nil
}

// ListForUser returns the user's invoices, newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]*models.Invoice, error) {
	return s.invoices.ListForUser(ctx, userID)
}

// ListAll returns every invoice, newest first.
func (s *Service) ListAll(ctx context.Context) ([]*models.Invoice, error) {
	return s.invoices.ListAll(ctx)
}

// MarkPaid records a payment. The invoice and its filing payment status are
// written in one transaction; repeating a confirmation changes nothing.
func (s *Service) MarkPaid(ctx context.Context, c PaymentConfirmation) (*models.Invoice, bool, error) {
	var changed bool
	inv, err := s.invoices.Update(ctx, c.InvoiceNumber, func(tx kv.Txn, inv *models.Invoice) (bool, error) {
		now := s.now()
		var err error
		changed, err = inv.MarkPaid(now, c.PaymentIntentID)
		if err != nil {
			return false, err
		}
		if c.SessionID != "" && inv.StripeSessionID != c.SessionID {
			inv.StripeSessionID = c.SessionID
			inv.UpdatedAt = now
			changed = true
		}
		if err := recordFilingPaymentTx(tx, inv, c.Filing, now); err != nil {
			return false, err
		}
		return changed, nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to mark invoice %s paid: %w", c.InvoiceNumber, err)
	}

	if changed {
		source := c.Source
		if source == "" {
			source = SourceAdmin
		}
		s.metrics.InvoicePaid(source)
		s.log.Info().Str("invoice", inv.InvoiceNumber).Str("source", source).Str("payment_intent", inv.StripePaymentIntentID).Msg("invoice paid")
	}
	return inv, changed, nil
}

func recordFilingPaymentTx(tx kv.Txn, inv *models.Invoice, ref *FilingRef, now time.Time) error {
	r := FilingRef{UserID: inv.UserID, TaxYear: inv.TaxYear, PaymentType: inv.Type}
	if ref != nil {
		if ref.UserID != "" {
			r.UserID = ref.UserID
		}
		if ref.TaxYear > 0 {
			r.TaxYear = ref.TaxYear
		}
		if ref.PaymentType != "" {
			r.PaymentType = ref.PaymentType
		}
	}
	if r.UserID == "" || r.TaxYear <= 0 || r.PaymentType == "" {
		return nil
	}

	filing, err := db.GetFilingTx(tx, r.UserID, r.TaxYear)
	if err != nil {
		return err
	}
	if p, ok := filing.Payments[r.PaymentType]; ok && p.Status == models.InvoiceStatusPaid && p.InvoiceNumber == inv.InvoiceNumber {
		return nil
	}
	filing.RecordPayment(r.PaymentType, inv, now)
	return db.PutFilingTx(tx, filing)
}

// Cancel cancels a pending invoice.
func (s *Service) Cancel(ctx context.Context, number string) (*models.Invoice, error) {
	inv, err := s.invoices.Update(ctx, number, func(_ kv.Txn, inv *models.Invoice) (bool, error) {
		wasPending := inv.IsPending()
		if err := inv.Cancel(s.now()); err != nil {
			return false, err
		}
		return wasPending, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel invoice %s: %w", number, err)
	}
	s.log.Info().Str("invoice", number).Msg("invoice cancelled")
	return inv, nil
}

// VerifyPayment confirms a payment. A session id is re-fetched from the
// provider and trusted only when paid and owned by the caller; a bare
// invoice number is an admin override with no provider check.
func (s *Service) VerifyPayment(ctx context.Context, caller Caller, req VerifyRequest) (*VerifyResult, error) {
	switch {
	case req.SessionID != "":
		return s.verifySession(ctx, caller, req.SessionID)
	case req.InvoiceNumber != "":
		if !caller.Admin {
			return nil, fmt.Errorf("%w: manual verification requires admin", models.ErrForbidden)
		}
		inv, _, err := s.MarkPaid(ctx, PaymentConfirmation{InvoiceNumber: req.InvoiceNumber, Source: SourceAdmin})
		if err != nil {
			return nil, err
		}
		s.log.Warn().Str("invoice", req.InvoiceNumber).Str("admin", caller.UserID).Msg("invoice marked paid by admin override")
		return &VerifyResult{Paid: true, Invoice: inv}, nil
	default:
		return nil, models.Invalid("sessionId or invoiceNumber is required")
	}
}

func (s *Service) verifySession(ctx context.Context, caller Caller, sessionID string) (*VerifyResult, error) {
	sess, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		s.log.Error().Err(err).Str("session", sessionID).Msg("checkout session lookup failed")
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrUpstream)
	}

	number := sess.Metadata[payments.MetaInvoiceNumber]
	if number == "" {
		return nil, models.Invalid("session %s is not linked to an invoice", sessionID)
	}
	if !caller.Admin && sess.Metadata[payments.MetaUserID] != caller.UserID {
		return nil, fmt.Errorf("session %s: %w", sessionID, models.ErrForbidden)
	}

	inv, err := s.GetInvoice(ctx, number, caller)
	if err != nil {
		return nil, err
	}
	if !sess.Paid() {
		return &VerifyResult{Paid: false, Invoice: inv}, nil
	}

	inv, _, err = s.MarkPaid(ctx, PaymentConfirmation{
		InvoiceNumber:   number,
		PaymentIntentID: sess.PaymentIntentID,
		SessionID:       sess.ID,
		Filing:          FilingRefFromMetadata(sess.Metadata),
		Source:          SourceVerify,
	})
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Paid: true, Invoice: inv}, nil
}

// FilingRefFromMetadata reads the filing reference stamped on a checkout
// session. Missing or malformed fields are left blank.
func FilingRefFromMetadata(meta map[string]string) *FilingRef {
	ref := &FilingRef{
		UserID:      strings.TrimSpace(meta[payments.MetaUserID]),
		PaymentType: strings.TrimSpace(meta[payments.MetaPaymentType]),
	}
	if year, err := strconv.Atoi(strings.TrimSpace(meta[payments.MetaTaxYear])); err == nil {
		ref.TaxYear = year
	}
	if ref.UserID == "" && ref.TaxYear == 0 && ref.PaymentType == "" {
		return nil
	}
	return ref
}

// IsUnknownInvoice reports whether err means the invoice does not exist.
func IsUnknownInvoice(err error) bool {
	return errors.Is(err, models.ErrNotFound)
}
