// ABOUTME: Prometheus collectors for the service on a dedicated registry
// ABOUTME: Methods are safe on a nil *Metrics so tests can skip wiring them
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taxdesk"

// Metrics holds every collector the service records.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	leadsCreated    *prometheus.CounterVec
	leadTransitions *prometheus.CounterVec
	invoicesCreated prometheus.Counter
	invoicesPaid    *prometheus.CounterVec
	webhookEvents   *prometheus.CounterVec
	filingsRepaired *prometheus.CounterVec
}

// New registers the collectors on reg. A nil reg gets a fresh registry with
// the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method, and status code.",
		}, []string{"route", "method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		leadsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crm",
			Name:      "leads_created_total",
			Help:      "Leads created by contact method.",
		}, []string{"contact_method"}),
		leadTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "crm",
			Name:      "lead_transitions_total",
			Help:      "Lead status transitions.",
		}, []string{"from", "to"}),
		invoicesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "invoices_created_total",
			Help:      "Invoices created.",
		}),
		invoicesPaid: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "billing",
			Name:      "invoices_paid_total",
			Help:      "Invoices marked paid by source (webhook, verify, admin).",
		}, []string{"source"}),
		webhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Payment provider webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		filingsRepaired: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repair",
			Name:      "filings_total",
			Help:      "Tax filings touched by the repair tool by result (fixed, dropped).",
		}, []string{"result"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) LeadCreated(contactMethod string) {
	if m == nil {
		return
	}
	m.leadsCreated.WithLabelValues(contactMethod).Inc()
}

func (m *Metrics) LeadTransition(from, to string) {
	if m == nil {
		return
	}
	m.leadTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) InvoiceCreated() {
	if m == nil {
		return
	}
	m.invoicesCreated.Inc()
}

func (m *Metrics) InvoicePaid(source string) {
	if m == nil {
		return
	}
	m.invoicesPaid.WithLabelValues(source).Inc()
}

func (m *Metrics) WebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) FilingsRepaired(fixed, dropped int) {
	if m == nil {
		return
	}
	m.filingsRepaired.WithLabelValues("fixed").Add(float64(fixed))
	m.filingsRepaired.WithLabelValues("dropped").Add(float64(dropped))
}
