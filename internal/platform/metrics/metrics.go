package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricPrefix = "pagseguro_"

// Recorder holds the reconciliation metrics. A nil *Recorder is valid and records nothing.
type Recorder struct {
	reconciliations *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	invoices        prometheus.Counter
	failures        *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

// New registers the reconciliation metrics on reg.
// When reg is nil a private registry is used.
func New(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	r := &Recorder{
		reconciliations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliations_total",
				Help: "Total reconciliations by outcome",
			},
			[]string{"outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "reconciliation_duration_seconds",
				Help:    "Reconciliation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		),
		invoices: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "invoices_created_total",
				Help: "Total invoices registered from notifications",
			},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "reconciliation_failures_total",
				Help: "Total failed reconciliations by failure kind",
			},
			[]string{"kind"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "notifications_received_total",
				Help: "Total notifications received by delivery mode",
			},
			[]string{"mode"},
		),
		gatherer: reg,
	}

	reg.MustRegister(r.reconciliations, r.duration, r.invoices, r.failures, r.notifications)
	return r
}

// ObserveReconciliation counts a finished reconciliation.
// Unrecognized remote statuses are counted under their own outcome.
func (r *Recorder) ObserveReconciliation(outcome string, unrecognized bool, started time.Time) {
	if r == nil {
		return
	}
	if unrecognized {
		outcome = "UNRECOGNIZED"
	}
	r.reconciliations.WithLabelValues(outcome).Inc()
	r.duration.WithLabelValues("success").Observe(time.Since(started).Seconds())
}

// ObserveFailure counts a failed reconciliation by kind
func (r *Recorder) ObserveFailure(kind string, started time.Time) {
	if r == nil {
		return
	}
	r.failures.WithLabelValues(kind).Inc()
	r.duration.WithLabelValues("error").Observe(time.Since(started).Seconds())
}

func (r *Recorder) InvoiceCreated() {
	if r == nil {
		return
	}
	r.invoices.Inc()
}

func (r *Recorder) NotificationReceived(mode string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(mode).Inc()
}

// Handler exposes the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
