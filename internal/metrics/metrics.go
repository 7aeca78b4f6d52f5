package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "nimchat"

// Turn outcomes.
const (
	OutcomeOK                = "ok"
	OutcomeUpstreamError     = "upstream_error"
	OutcomeMissingCredential = "missing_credential"
	OutcomeInvalid           = "invalid"
)

// Metrics holds the application collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry        *prometheus.Registry
	turns           *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	resets          prometheus.Counter
	settingsChanges prometheus.Counter
}

// New creates the collectors. activeSessions is sampled on every scrape.
func New(activeSessions func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_turns_total",
			Help:      "Submitted chat messages by outcome.",
		}, []string{"outcome"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of completion calls to the inference endpoint.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64},
		}, []string{"model"}),
		resets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_resets_total",
			Help:      "Explicit conversation resets.",
		}),
		settingsChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settings_changes_total",
			Help:      "Applied sampling control changes.",
		}),
	}

	reg.MustRegister(
		m.turns,
		m.upstreamLatency,
		m.resets,
		m.settingsChanges,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if activeSessions != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Live chat sessions.",
		}, activeSessions))
	}
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveTurn records the outcome of one submitted message.
func (m *Metrics) ObserveTurn(outcome string) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
}

// ObserveUpstream records the latency of one completion call.
func (m *Metrics) ObserveUpstream(model string, d time.Duration) {
	if m == nil {
		return
	}
	m.upstreamLatency.WithLabelValues(model).Observe(d.Seconds())
}

// IncReset counts a conversation reset.
func (m *Metrics) IncReset() {
	if m == nil {
		return
	}
	m.resets.Inc()
}

// IncSettingsChange counts an applied settings change.
func (m *Metrics) IncSettingsChange() {
	if m == nil {
		return
	}
	m.settingsChanges.Inc()
}
