// Package metrics exports ledger counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements credits.Observer on a private registry.
type Recorder struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	credits       *prometheus.CounterVec
	schedulerRuns *prometheus.CounterVec
}

var _ credits.Observer = (*Recorder)(nil)

// NewRecorder registers the ledger metrics plus the Go and process collectors.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditledger",
			Name:      "operations_total",
			Help:      "Ledger operations by name and outcome.",
		}, []string{"op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "creditledger",
			Name:      "operation_duration_seconds",
			Help:      "Ledger operation latency.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"op"}),
		credits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditledger",
			Name:      "credits_total",
			Help:      "Credits moved by event type.",
		}, []string{"type"}),
		schedulerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditledger",
			Name:      "scheduler_accounts_total",
			Help:      "Accounts touched by scheduled runs by job and result.",
		}, []string{"job", "result"}),
	}
	registry.MustRegister(
		r.operations,
		r.latency,
		r.credits,
		r.schedulerRuns,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// ObserveOperation counts an operation outcome and its latency.
func (r *Recorder) ObserveOperation(op, outcome string, elapsed time.Duration) {
	r.operations.WithLabelValues(op, outcome).Inc()
	r.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// ObserveCredits adds the absolute amount moved by a committed event.
func (r *Recorder) ObserveCredits(eventType models.CreditEventType, amount int64) {
	if amount < 0 {
		amount = -amount
	}
	r.credits.WithLabelValues(string(eventType)).Add(float64(amount))
}

// ObserveReset records a batch reset summary.
func (r *Recorder) ObserveReset(summary credits.ResetSummary) {
	r.schedulerRuns.WithLabelValues("reset", "reset").Add(float64(summary.Reset))
	r.schedulerRuns.WithLabelValues("reset", "failed").Add(float64(summary.Failed))
}

// ObserveBonus records a daily bonus summary.
func (r *Recorder) ObserveBonus(summary credits.BonusSummary) {
	r.schedulerRuns.WithLabelValues("bonus", "granted").Add(float64(summary.Granted))
	r.schedulerRuns.WithLabelValues("bonus", "replayed").Add(float64(summary.Replayed))
	r.schedulerRuns.WithLabelValues("bonus", "failed").Add(float64(summary.Failed))
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
