// ABOUTME: Prometheus collectors for command dispatch, results, and agent connections.
// ABOUTME: A nil *Metrics is valid and records nothing, so components can run without it.

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the gateway's collectors around a single registry.
type Metrics struct {
	registry *prometheus.Registry

	CommandsSubmitted *prometheus.CounterVec
	ResultsRecorded   *prometheus.CounterVec
	Deliveries        *prometheus.CounterVec
	DecodeErrors      prometheus.Counter
	AgentsConnected   prometheus.Gauge
	LedgerSize        prometheus.GaugeFunc
}

// New creates the collectors and registers them on a fresh registry.
// ledgerSize may be nil.
func New(ledgerSize func() float64) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		CommandsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellcast_commands_submitted_total",
				Help: "Pending commands broadcast to agents, by source.",
			},
			[]string{"source"}, // api, generator
		),
		ResultsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellcast_results_recorded_total",
				Help: "Terminal results written to the ledger, by status.",
			},
			[]string{"status"},
		),
		Deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shellcast_deliveries_total",
				Help: "Per-agent broadcast deliveries, by outcome.",
			},
			[]string{"outcome"}, // sent, dropped
		),
		DecodeErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "shellcast_decode_errors_total",
				Help: "Agent messages discarded because they could not be decoded.",
			},
		),
		AgentsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "shellcast_agents_connected",
				Help: "Agent sessions currently registered for delivery.",
			},
		),
	}

	m.registry.MustRegister(
		m.CommandsSubmitted,
		m.ResultsRecorded,
		m.Deliveries,
		m.DecodeErrors,
		m.AgentsConnected,
	)

	if ledgerSize != nil {
		m.LedgerSize = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "shellcast_ledger_commands",
				Help: "Distinct commands held in the ledger.",
			},
			ledgerSize,
		)
		m.registry.MustRegister(m.LedgerSize)
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Submitted(source string) {
	if m == nil {
		return
	}
	m.CommandsSubmitted.WithLabelValues(source).Inc()
}

func (m *Metrics) Recorded(status string) {
	if m == nil {
		return
	}
	m.ResultsRecorded.WithLabelValues(status).Inc()
}

func (m *Metrics) Delivered() {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues("sent").Inc()
}

func (m *Metrics) Dropped() {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues("dropped").Inc()
}

func (m *Metrics) DecodeFailed() {
	if m == nil {
		return
	}
	m.DecodeErrors.Inc()
}

func (m *Metrics) AgentConnected() {
	if m == nil {
		return
	}
	m.AgentsConnected.Inc()
}

func (m *Metrics) AgentDisconnected() {
	if m == nil {
		return
	}
	m.AgentsConnected.Dec()
}
