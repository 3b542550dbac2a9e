// ABOUTME: In-process payment provider for tests and local development
// ABOUTME: Sessions live in memory and are paid explicitly by the caller
package payments

import (
	"context"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
)

// Fake is a Provider that never leaves the process.
type Fake struct {
	mu       sync.Mutex
	sessions map[string]*CheckoutSession
	requests []CheckoutRequest

	// CreateErr, when set, fails every CreateCheckoutSession call.
	CreateErr error
}

// NewFake returns an empty fake provider.
func NewFake() *Fake {
	return &Fake{sessions: map[string]*CheckoutSession{}}
}

func (f *Fake) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.CreateErr != nil {
		return nil, f.CreateErr
	}

	id := "cs_test_" + ulid.Make().String()
	meta := make(map[string]string, len(req.Metadata))
	for k, v := range req.Metadata {
		meta[k] = v
	}
	sess := &CheckoutSession{
		ID:            id,
		URL:           "https://checkout.example.test/" + id,
		PaymentStatus: PaymentStatusUnpaid,
		Metadata:      meta,
	}
	f.sessions[id] = sess
	return copySession(sess), nil
}

func (f *Fake) GetCheckoutSession(ctx context.Context, id string) (*CheckoutSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout session: %s", id)
	}
	return copySession(sess), nil
}

// Pay marks a session paid with the given payment intent.
func (f *Fake) Pay(id, paymentIntentID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sess, ok := f.sessions[id]
	if !ok {
		return fmt.Errorf("no such checkout session: %s", id)
	}
	sess.PaymentStatus = PaymentStatusPaid
	sess.PaymentIntentID = paymentIntentID
	return nil
}

// Requests returns every checkout request received so far.
func (f *Fake) Requests() []CheckoutRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]CheckoutRequest(nil), f.requests...)
}

func copySession(s *CheckoutSession) *CheckoutSession {
	c := *s
	c.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	return &c
}
