// ABOUTME: Invoice handlers for clients and the admin invoice module
// ABOUTME: Owners see their own invoices; admins may read and verify any
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/models"
)

func (s *Server) caller(r *http.Request) (billing.Caller, error) {
	admin, err := s.isAdmin(r)
	if err != nil {
		return billing.Caller{}, err
	}
	return billing.Caller{UserID: principal(r).UserID, Admin: admin}, nil
}

func (s *Server) handleCreateInitialInvoice(w http.ResponseWriter, r *http.Request) {
	var req billing.CreateInvoiceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := s.ensureUser(r.Context(), principal(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Billing.CreateInitialInvoice(r.Context(), user.ID, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleListMyInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.Billing.ListForUser(r.Context(), principal(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeInvoices(w, invoices)
}

func (s *Server) handleGetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.loadInvoice(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
}

// handleInvoiceDocument serves the printable HTML invoice.
func (s *Server) handleInvoiceDocument(w http.ResponseWriter, r *http.Request) {
	inv, ok := s.loadInvoice(w, r)
	if !ok {
		return
	}
	doc, err := billing.RenderInvoice(inv, s.Issuer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="invoice-`+inv.InvoiceNumber+`.html"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) loadInvoice(w http.ResponseWriter, r *http.Request) (*models.Invoice, bool) {
	c, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	inv, err := s.Billing.GetInvoice(r.Context(), chi.URLParam(r, "number"), c)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	return inv, true
}

// handleRetryCheckout opens a new checkout session. Only the owner may pay.
func (s *Server) handleRetryCheckout(w http.ResponseWriter, r *http.Request) {
	c := billing.Caller{UserID: principal(r).UserID}
	res, err := s.Billing.RetryCheckout(r.Context(), chi.URLParam(r, "number"), c)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleVerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req billing.VerifyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.caller(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.Billing.VerifyPayment(r.Context(), c, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListAllInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := s.Billing.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeInvoices(w, invoices)
}

func (s *Server) handleCancelInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := s.Billing.Cancel(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv})
}

func writeInvoices(w http.ResponseWriter, invoices []*models.Invoice) {
	if invoices == nil {
		invoices = []*models.Invoice{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}
