// ABOUTME: Stripe webhook endpoint
// ABOUTME: Only a bad signature is refused; processing failures are acknowledged
package web

import (
	"errors"
	"io"
	"net/http"

	"github.com/harperreed/taxdesk/payments"
	"github.com/harperreed/taxdesk/reconcile"
	"github.com/rs/zerolog/hlog"
)

const maxWebhookBytes = 1 << 16

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read body"})
		return
	}

	ev, err := s.Webhooks.ParseEvent(payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, payments.ErrInvalidSignature):
		hlog.FromRequest(r).Warn().Err(err).Msg("rejected webhook")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid signature"})
		return
	case err != nil:
		hlog.FromRequest(r).Error().Err(err).Msg("failed to decode webhook event")
		writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": reconcile.OutcomeError})
		return
	}

	outcome := s.Reconciler.HandleEvent(r.Context(), ev)
	writeJSON(w, http.StatusOK, map[string]any{"received": true, "outcome": outcome})
}
