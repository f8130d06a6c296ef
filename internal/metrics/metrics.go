// Package metrics defines the Prometheus collectors of the console.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paytrack"

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	apiRequests  *prometheus.CounterVec
	apiDuration  *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	payments     *prometheus.CounterVec
	messages     *prometheus.CounterVec
	logins       *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// A nil reg creates unregistered collectors.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		apiRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Requests sent to the remote API.",
		}, []string{"code", "method"}),
		apiDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Latency of requests sent to the remote API.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"code", "method"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served by the web console.",
		}, []string{"code", "method"}),
		payments: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_marked_total",
			Help:      "Mark paid/unpaid actions by resulting outcome.",
		}, []string{"status", "outcome"}),
		messages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Per-recipient message deliveries by outcome.",
		}, []string{"outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Admin login attempts by outcome.",
		}, []string{"outcome"}),
	}
}

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Outcome maps an error to its label value.
func Outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// InstrumentTransport wraps rt so every API round trip is counted and timed.
func (m *Metrics) InstrumentTransport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	if m == nil {
		return rt
	}
	return promhttp.InstrumentRoundTripperCounter(m.apiRequests,
		promhttp.InstrumentRoundTripperDuration(m.apiDuration, rt))
}

// InstrumentHandler counts requests served by h.
func (m *Metrics) InstrumentHandler(h http.Handler) http.Handler {
	if m == nil {
		return h
	}
	return promhttp.InstrumentHandlerCounter(m.httpRequests, h)
}

// PaymentMarked records a mark paid/unpaid action.
func (m *Metrics) PaymentMarked(status string, err error) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(status, Outcome(err)).Inc()
}

// MessageSent records one broadcast delivery.
func (m *Metrics) MessageSent(err error) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(Outcome(err)).Inc()
}

// Login records a login attempt.
func (m *Metrics) Login(err error) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(Outcome(err)).Inc()
}
