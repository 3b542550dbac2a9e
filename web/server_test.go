// ABOUTME: End-to-end HTTP tests over an in-memory store and fake provider
// ABOUTME: Tokens are signed with a test secret; webhooks with Stripe's test signer
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/taxdesk/auth"
	"github.com/harperreed/taxdesk/billing"
	"github.com/harperreed/taxdesk/config"
	"github.com/harperreed/taxdesk/crm"
	"github.com/harperreed/taxdesk/db"
	"github.com/harperreed/taxdesk/kv"
	"github.com/harperreed/taxdesk/metrics"
	"github.com/harperreed/taxdesk/models"
	"github.com/harperreed/taxdesk/payments"
	"github.com/harperreed/taxdesk/reconcile"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	testJWTSecret     = "test-jwt-secret"
	testWebhookSecret = "whsec_test_secret"
	bootstrapAdmin    = "boss@example.com"
)

type fixture struct {
	t       *testing.T
	handler http.Handler
	repos   *db.Repositories
	fake    *payments.Fake
	tokens  *auth.JWTVerifier
}

func newFixture(t *testing.T, origins ...string) *fixture {
	t.Helper()
	repos := db.New(kv.NewTestStore(t))
	m := metrics.New(nil)
	log := zerolog.Nop()
	fake := payments.NewFake()
	tokens := auth.NewJWTVerifier(testJWTSecret)

	bill := billing.NewService(repos, fake, billing.Options{
		SuccessURL: "https://app.example.test/success",
		CancelURL:  "https://app.example.test/cancel",
	}, log, m)

	srv := NewServer(Deps{
		Repos:      repos,
		CRM:        crm.NewService(repos.Leads, log, crm.WithMetrics(m)),
		Billing:    bill,
		Reconciler: reconcile.New(bill, log, m),
		Webhooks:   payments.NewStripeWebhook(testWebhookSecret),
		Tokens:     tokens,
		Authz:      auth.NewAuthorizer(repos.Users, []string{bootstrapAdmin}),
		Metrics:    m,
		Issuer:     billing.Issuer{Name: "Taxdesk"},
		Log:        log,
	}, Options{BasePath: config.DefaultBasePath, AllowedOrigins: origins})

	return &fixture{t: t, handler: srv.Handler(), repos: repos, fake: fake, tokens: tokens}
}

func (f *fixture) token(userID, email string) string {
	f.t.Helper()
	tok, err := f.tokens.Sign(userID, email, time.Hour)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, config.DefaultBasePath+path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) grant(userID, email, role string, modules ...string) {
	f.t.Helper()
	ctx := f.t.Context()
	require.NoError(f.t, f.repos.Users.Put(ctx, &models.User{ID: userID, Email: email, Name: email}))
	require.NoError(f.t, f.repos.Users.PutPermissions(ctx, &models.UserPermissions{UserID: userID, Role: role, Modules: modules}))
}

func (f *fixture) webhook(payload, secret string) *httptest.ResponseRecorder {
	f.t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload: []byte(payload),
		Secret:  secret,
	})
	req := httptest.NewRequest(http.MethodPost, config.DefaultBasePath+"/stripe/webhook", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func checkoutEvent(eventID, sessionID, invoice, userID string) string {
	return fmt.Sprintf(`{
  "id": %q,
  "object": "event",
  "type": "checkout.session.completed",
  "data": {
    "object": {
      "id": %q,
      "object": "checkout.session",
      "payment_status": "paid",
      "payment_intent": "pi_web_1",
      "metadata": {"invoiceNumber": %q, "userId": %q, "taxYear": "2024", "paymentType": "initial"}
    }
  }
}`, eventID, sessionID, invoice, userID)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	mrec := httptest.NewRecorder()
	f.handler.ServeHTTP(mrec, req)
	assert.Equal(t, http.StatusOK, mrec.Code)
	assert.Contains(t, mrec.Body.String(), "http_requests_total")
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	f := newFixture(t, "https://app.example.test")

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, config.DefaultBasePath+"/crm/leads", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", "authorization, content-type")
		rec := httptest.NewRecorder()
		f.handler.ServeHTTP(rec, req)
		return rec
	}

	rec := preflight("https://app.example.test")
	assert.Equal(t, "https://app.example.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)

	rec = preflight("https://evil.example.test")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, config.DefaultBasePath+"/health", nil)
	req.Header.Set("Origin", "https://evil.example.test")
	grec := httptest.NewRecorder()
	f.handler.ServeHTTP(grec, req)
	assert.Equal(t, http.StatusOK, grec.Code)
	assert.Empty(t, grec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSDefaultsToAnyOrigin(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, config.DefaultBasePath+"/health", nil)
	req.Header.Set("Origin", "https://anywhere.example.test")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthentication(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/crm/leads", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decode[map[string]string](t, rec)["error"])

	other := auth.NewJWTVerifier("some-other-secret")
	tok, err := other.Sign("u1", "a@example.com", time.Hour)
	require.NoError(t, err)
	rec = f.do(http.MethodGet, "/crm/leads", tok, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCRMRequiresModule(t *testing.T) {
	f := newFixture(t)

	client := f.token("client-1", "client@example.com")
	rec := f.do(http.MethodGet, "/crm/leads", client, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.grant("staff-1", "staff@example.com", models.RoleStaff, models.ModuleInvoices)
	rec = f.do(http.MethodGet, "/crm/leads", f.token("staff-1", "staff@example.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/crm/leads", f.token("boss", bootstrapAdmin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"leads":[]}`, rec.Body.String())
}

func TestLeadLifecycle(t *testing.T) {
	f := newFixture(t)
	f.grant("staff-1", "staff@example.com", models.RoleStaff, models.ModuleCRM)
	tok := f.token("staff-1", "staff@example.com")

	rec := f.do(http.MethodPost, "/crm/leads", tok, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/crm/leads", tok, map[string]any{"name": "Jane Doe", "contactMethod": models.ContactPhone, "estimatedValue": 499.99})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"estimatedValue":499.99`)
	lead := decode[map[string]*models.Lead](t, rec)["lead"]
	assert.Equal(t, int64(49999), lead.EstimatedValue)
	assert.Equal(t, models.LeadStatusNew, lead.Status)
	require.Len(t, lead.Activities, 1)
	assert.Equal(t, "staff@example.com", lead.Activities[0].Author)

	status := models.LeadStatusContacted
	rec = f.do(http.MethodPut, "/crm/leads/"+lead.ID, tok, models.LeadPatch{Status: &status})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	won := models.LeadStatusWon
	rec = f.do(http.MethodPut, "/crm/leads/"+lead.ID, tok, models.LeadPatch{Status: &won})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotNil(t, decode[map[string]*models.Lead](t, rec)["lead"].ClosedDate)

	rec = f.do(http.MethodPut, "/crm/leads/"+lead.ID, tok, models.LeadPatch{Status: &status})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/crm/leads/"+lead.ID+"/activities", tok, models.ActivityInput{Type: models.ActivityCall, Description: "Left voicemail"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	lead = decode[map[string]*models.Lead](t, rec)["lead"]
	assert.Len(t, lead.Activities, 4)

	rec = f.do(http.MethodGet, "/crm/stats", tok, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]models.LeadStats](t, rec)["stats"]
	assert.Equal(t, 1, stats.Total)

	rec = f.do(http.MethodDelete, "/crm/leads/"+lead.ID, tok, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(http.MethodGet, "/crm/leads/"+lead.ID, tok, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"not found"}`, rec.Body.String())
}

func TestInvoicePaymentFlow(t *testing.T) {
	f := newFixture(t)
	owner := f.token("client-1", "client@example.com")

	rec := f.do(http.MethodPost, "/payment/initial-invoice", owner, map[string]any{"year": 2024, "amount": 5000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodPost, "/payment/initial-invoice", owner, map[string]any{"year": 2024, "amount": 50})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[billing.CheckoutResult](t, rec)
	assert.Equal(t, "0001", res.Invoice.InvoiceNumber)
	assert.Equal(t, models.InitialFee, res.Invoice.Amount)
	assert.NotEmpty(t, res.CheckoutURL)

	rec = f.do(http.MethodGet, "/payment/invoice/0001", f.token("client-2", "other@example.com"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/payment/invoice/0001", f.token("boss", bootstrapAdmin), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodGet, "/payment/invoice/0001/pdf", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "0001")
	assert.Contains(t, rec.Body.String(), "PAYMENT PENDING")

	rec = f.webhook(checkoutEvent("evt_1", res.SessionID, "0001", "client-1"), "whsec_wrong")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.webhook(checkoutEvent("evt_1", res.SessionID, "0001", "client-1"), testWebhookSecret)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"outcome":"paid"}`, rec.Body.String())

	rec = f.webhook(checkoutEvent("evt_1", res.SessionID, "0001", "client-1"), testWebhookSecret)
	assert.JSONEq(t, `{"received":true,"outcome":"duplicate"}`, rec.Body.String())

	rec = f.webhook(checkoutEvent("evt_2", "cs_other", "9999", "client-1"), testWebhookSecret)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"received":true,"outcome":"unknown_invoice"}`, rec.Body.String())

	rec = f.do(http.MethodGet, "/payment/invoices", owner, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	invoices := decode[map[string][]*models.Invoice](t, rec)["invoices"]
	require.Len(t, invoices, 1)
	assert.Equal(t, models.InvoiceStatusPaid, invoices[0].Status)
	assert.Equal(t, "pi_web_1", invoices[0].StripePaymentIntentID)

	filing, err := f.repos.Filings.Get(t.Context(), "client-1", 2024)
	require.NoError(t, err)
	assert.Equal(t, models.InvoiceStatusPaid, filing.Payments[models.PaymentTypeInitial].Status)
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture(t)
	owner := f.token("client-1", "client@example.com")

	rec := f.do(http.MethodPost, "/payment/initial-invoice", owner, billing.CreateInvoiceRequest{TaxYear: 2023})
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[billing.CheckoutResult](t, rec)

	rec = f.do(http.MethodPost, "/payment/verify", owner, billing.VerifyRequest{SessionID: res.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[billing.VerifyResult](t, rec).Paid)

	require.NoError(t, f.fake.Pay(res.SessionID, "pi_verify"))
	rec = f.do(http.MethodPost, "/payment/verify", f.token("client-2", "other@example.com"), billing.VerifyRequest{SessionID: res.SessionID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPost, "/payment/verify", owner, billing.VerifyRequest{SessionID: res.SessionID})
	require.Equal(t, http.StatusOK, rec.Code)
	verified := decode[billing.VerifyResult](t, rec)
	assert.True(t, verified.Paid)
	assert.Equal(t, models.InvoiceStatusPaid, verified.Invoice.Status)

	rec = f.do(http.MethodPost, "/payment/verify", owner, billing.VerifyRequest{InvoiceNumber: "0001"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestProviderFailureIsNotLeaked(t *testing.T) {
	f := newFixture(t)
	f.fake.CreateErr = errors.New("stripe: secret key sk_live_abc rejected")

	rec := f.do(http.MethodPost, "/payment/initial-invoice", f.token("client-1", "client@example.com"), billing.CreateInvoiceRequest{TaxYear: 2024})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.NotContains(t, rec.Body.String(), "sk_live")

	f.fake.CreateErr = nil
	rec = f.do(http.MethodPost, "/payment/invoice/0001/checkout", f.token("client-1", "client@example.com"), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, decode[billing.CheckoutResult](t, rec).SessionID)
}

func TestAdminInvoices(t *testing.T) {
	f := newFixture(t)
	owner := f.token("client-1", "client@example.com")
	rec := f.do(http.MethodPost, "/payment/initial-invoice", owner, billing.CreateInvoiceRequest{TaxYear: 2024})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(http.MethodGet, "/admin/invoices", owner, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.grant("staff-1", "staff@example.com", models.RoleStaff, models.ModuleInvoices)
	staff := f.token("staff-1", "staff@example.com")
	rec = f.do(http.MethodGet, "/admin/invoices", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[map[string][]*models.Invoice](t, rec)["invoices"], 1)

	rec = f.do(http.MethodPost, "/admin/invoices/0001/cancel", staff, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	inv := decode[map[string]*models.Invoice](t, rec)["invoice"]
	assert.Equal(t, models.InvoiceStatusCancelled, inv.Status)
}

func TestUsers(t *testing.T) {
	f := newFixture(t)
	client := f.token("client-1", "client@example.com")
	admin := f.token("boss", bootstrapAdmin)

	rec := f.do(http.MethodGet, "/users/me", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		User   models.User `json:"user"`
		Access auth.Access `json:"access"`
	}](t, rec)
	assert.Equal(t, "client@example.com", me.User.Email)
	assert.Equal(t, models.RoleClient, me.Access.Role)
	assert.False(t, me.Access.IsAdmin)

	rec = f.do(http.MethodGet, "/users", client, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	perms := permissionsRequest{Role: "Staff", Modules: []string{"CRM"}}
	rec = f.do(http.MethodPut, "/users/client-1/permissions", client, perms)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodPut, "/users/client-1/permissions", admin, perms)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(http.MethodGet, "/crm/leads", client, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodPut, "/users/client-1/permissions", admin, permissionsRequest{Role: "root"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodGet, "/users/client-1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := decode[map[string]userView](t, rec)["user"]
	assert.Equal(t, models.RoleStaff, user.Role)
	assert.Equal(t, []string{models.ModuleCRM}, user.Modules)

	rec = f.do(http.MethodDelete, "/users/boss", admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(http.MethodDelete, "/users/client-1", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	_, err := f.repos.Users.GetPermissions(t.Context(), "client-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
