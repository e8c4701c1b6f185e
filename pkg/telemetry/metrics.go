// Package telemetry exposes sync counters as Prometheus metrics.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"alerthub/pkg/faults"
)

const namespace = "alerthub"

// Metrics owns a private registry so several sessions (and tests) never collide.
type Metrics struct {
	registry *prometheus.Registry

	pushConnected prometheus.Gauge
	pushAttempts  prometheus.Counter
	pushEvents    *prometheus.CounterVec
	syncs         *prometheus.CounterVec
	cacheEvents   prometheus.Gauge
	faults        *prometheus.CounterVec
	commands      *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		pushConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "push", Name: "connected",
			Help: "1 while the push channel is open.",
		}),
		pushAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "push", Name: "attempts_total",
			Help: "Push channel connection attempts.",
		}),
		pushEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "push", Name: "events_total",
			Help: "Pushed events by outcome (added, duplicate).",
		}, []string{"outcome"}),
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "snapshot", Name: "syncs_total",
			Help: "Snapshot cycles by result (ok, error).",
		}, []string{"result"}),
		cacheEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "events",
			Help: "Events currently resident in the bounded cache.",
		}),
		faults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "faults_total",
			Help: "Reported faults by kind and component.",
		}, []string{"kind", "component"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "command", Name: "events_created_total",
			Help: "Events created through the dispatcher by kind (single, batch).",
		}, []string{"kind"}),
	}
	m.registry.MustRegister(
		m.pushConnected, m.pushAttempts, m.pushEvents,
		m.syncs, m.cacheEvents, m.faults, m.commands,
	)
	for _, k := range faults.Kinds {
		m.faults.WithLabelValues(string(k), "")
	}
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Report implements faults.Reporter.
func (m *Metrics) Report(f faults.Fault) {
	m.faults.WithLabelValues(string(f.Kind), f.Component).Inc()
}

// PushAttempt counts one dial.
func (m *Metrics) PushAttempt() { m.pushAttempts.Inc() }

// PushConnected records whether the push channel is open.
func (m *Metrics) PushConnected(open bool) {
	if open {
		m.pushConnected.Set(1)
		return
	}
	m.pushConnected.Set(0)
}

// PushEvent counts an actionable push frame.
func (m *Metrics) PushEvent(added bool) {
	if added {
		m.pushEvents.WithLabelValues("added").Inc()
		return
	}
	m.pushEvents.WithLabelValues("duplicate").Inc()
}

// Sync counts one snapshot cycle.
func (m *Metrics) Sync(err error) {
	if err != nil {
		m.syncs.WithLabelValues("error").Inc()
		return
	}
	m.syncs.WithLabelValues("ok").Inc()
}

// CacheSize records the resident event count.
func (m *Metrics) CacheSize(n int) { m.cacheEvents.Set(float64(n)) }

// Created counts events created by the dispatcher.
func (m *Metrics) Created(kind string, n int) {
	if n > 0 {
		m.commands.WithLabelValues(kind).Add(float64(n))
	}
}
