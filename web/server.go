// ABOUTME: HTTP server for the back office: CRM, invoices, webhooks, users
// ABOUTME: Routes live under a configurable base path; /metrics sits at the root
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/harperreed/taxdesk/auth"
	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/crm"
	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/metrics"
	"github.com/harperreed/taxdesk/models"
	"github.com/harperreed/taxdesk/payments"
	"github.com/harperreed/taxdesk/reconcile"
	"github.com/rs/zerolog"
)

// Deps are the services the server dispatches to.
type Deps struct {
	Repos      *db.Repositories
	CRM        *crm.Service
	Billing    *billing.Service
	Reconciler *reconcile.Reconciler
	Webhooks   payments.WebhookVerifier
	Tokens     auth.TokenVerifier
	Authz      *auth.Authorizer
	Metrics    *metrics.Metrics
	Issuer     billing.Issuer
	Log        zerolog.Logger
}

// Options holds HTTP settings.
type Options struct {
	BasePath        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// AllowedOrigins lists browser origins allowed to call the API.
	AllowedOrigins []string
}

type Server struct {
	Deps
	opts Options
	now  func() time.Time
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	deps.Log = deps.Log.With().Str("component", "web").Logger()
	return &Server{Deps: deps, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(s.accessLog()...)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Handle("/metrics", s.Metrics.Handler())

	api := chi.NewRouter()
	api.Use(middleware.Timeout(s.opts.RequestTimeout))
	api.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Stripe-Signature", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	api.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Signed by Stripe, not by a user.
	api.Post("/stripe/webhook", s.handleStripeWebhook)

	api.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/crm", func(r chi.Router) {
			r.Use(s.requireModule(models.ModuleCRM))
			r.Get("/leads", s.handleListLeads)
			r.Post("/leads", s.handleCreateLead)
			r.Get("/leads/{id}", s.handleGetLead)
			r.Put("/leads/{id}", s.handleUpdateLead)
			r.Delete("/leads/{id}", s.handleDeleteLead)
			r.Post("/leads/{id}/activities", s.handleAddActivity)
			r.Get("/stats", s.handleLeadStats)
		})

		r.Route("/payment", func(r chi.Router) {
			r.Post("/initial-invoice", s.handleCreateInitialInvoice)
			r.Get("/invoices", s.handleListMyInvoices)
			r.Get("/invoice/{number}", s.handleGetInvoice)
			r.Get("/invoice/{number}/pdf", s.handleInvoiceDocument)
			r.Post("/invoice/{number}/checkout", s.handleRetryCheckout)
			r.Post("/verify", s.handleVerifyPayment)
		})

		r.Route("/admin/invoices", func(r chi.Router) {
			r.Use(s.requireModule(models.ModuleInvoices))
			r.Get("/", s.handleListAllInvoices)
			r.Post("/{number}/cancel", s.handleCancelInvoice)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/me", s.handleMe)
			r.With(s.requireModule(models.ModuleUsers)).Get("/", s.handleListUsers)
			r.With(s.requireModule(models.ModuleUsers)).Get("/{id}", s.handleGetUser)
			r.With(s.requireAdmin).Put("/{id}/permissions", s.handlePutPermissions)
			r.With(s.requireAdmin).Delete("/{id}", s.handleDeleteUser)
		})
	})

	if s.opts.BasePath == "" {
		r.Mount("/", api)
	} else {
		r.Mount(s.opts.BasePath, api)
	}
	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Log.Info().Str("addr", addr).Str("base_path", s.opts.BasePath).Msg("starting http server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.Log.Info().Msg("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
