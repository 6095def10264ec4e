// Package metrics owns the Prometheus collectors. A nil *Metrics is valid
// and records nothing, so components can run without instrumentation.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pricewatch"

// Fallback reasons reported by the total resolver.
const (
	ReasonNoEndpoint = "no_endpoint"
	ReasonTimeout    = "timeout"
	ReasonNetwork    = "network"
	ReasonStatus     = "status"
	ReasonDecode     = "decode"
	ReasonNoTotal    = "no_total"
)

type Metrics struct {
	registry         *prometheus.Registry
	invoicesRecorded *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	resolveDuration  prometheus.Histogram
	ledgerResets     prometheus.Counter
	httpRequests     *prometheus.CounterVec
}

// New registers every collector on a fresh registry, along with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		invoicesRecorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_recorded_total",
			Help:      "Invoices recorded, by total source.",
		}, []string{"source"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_fallbacks_total",
			Help:      "Placeholder totals used, by reason.",
		}, []string{"reason"}),
		resolveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolver_duration_seconds",
			Help:      "Duration of remote analysis calls.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		ledgerResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_resets_total",
			Help:      "Corrupt persisted ledgers discarded on load.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests served, by method and status.",
		}, []string{"method", "status"}),
	}
	reg.MustRegister(
		m.invoicesRecorded,
		m.fallbacks,
		m.resolveDuration,
		m.ledgerResets,
		m.httpRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) InvoiceRecorded(source string) {
	if m == nil {
		return
	}
	m.invoicesRecorded.WithLabelValues(source).Inc()
}

func (m *Metrics) ResolverFallback(reason string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveResolve(d time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.Observe(d.Seconds())
}

func (m *Metrics) LedgerReset() {
	if m == nil {
		return
	}
	m.ledgerResets.Inc()
}

func (m *Metrics) HTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
