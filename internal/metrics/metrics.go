// ABOUTME: Prometheus collectors for probe outcomes, probe latency, relays and registrations
// ABOUTME: Uses a private registry; nil *Metrics is a no-op recorder

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/agentlink-gateway/internal/probe"
)

const namespace = "agentlink"

// Probe purposes used as the "purpose" label.
const (
	PurposeHealth       = "health"
	PurposeRegistration = "registration"
	PurposeSearch       = "search"
	PurposeChat         = "chat"
)

// Metrics groups every collector the gateway exports.
type Metrics struct {
	registry *prometheus.Registry

	probes        *prometheus.CounterVec
	probeLatency  *prometheus.HistogramVec
	relays        *prometheus.CounterVec
	registrations *prometheus.CounterVec
	duplicates    prometheus.Counter
}

// New creates and registers all collectors, including the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Agent endpoint probes by purpose and outcome kind.",
		}, []string{"purpose", "outcome"}),
		probeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "probe_latency_seconds",
			Help:      "Latency of probes that received an HTTP response.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		}, []string{"purpose"}),
		relays: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relays_total",
			Help:      "Chat relays by result.",
		}, []string{"result"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Agent registration attempts by result.",
		}, []string{"result"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_duplicates_total",
			Help:      "Chat submissions suppressed as duplicates.",
		}),
	}

	m.registry.MustRegister(
		m.probes,
		m.probeLatency,
		m.relays,
		m.registrations,
		m.duplicates,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveProbe records one probe outcome.
func (m *Metrics) ObserveProbe(purpose string, out probe.Outcome) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(purpose, string(out.Kind)).Inc()
	if out.Kind == probe.KindOnline || out.Kind == probe.KindErrorStatus {
		m.probeLatency.WithLabelValues(purpose).Observe(out.Latency.Seconds())
	}
}

// ObserveRelay records the result of one relay ("ok", "remote_error", ...).
func (m *Metrics) ObserveRelay(result string) {
	if m == nil {
		return
	}
	m.relays.WithLabelValues(result).Inc()
}

// ObserveRegistration records the result of one registration attempt.
func (m *Metrics) ObserveRegistration(result string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(result).Inc()
}

// ObserveDuplicate counts a suppressed duplicate chat submission.
func (m *Metrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
