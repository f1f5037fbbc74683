// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Courtside Contributors

package session

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Binding results for the bindings counter.
const (
	BindOK      = "ok"
	BindPartial = "partial"
	BindFailed  = "failed"
	BindStale   = "stale"
	// BindRestored counts realtime subscriptions set up again for a user
	// who stayed bound.
	BindRestored = "restored"
)

// Metrics are the coordinator's Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	transitions *prometheus.CounterVec
	bindings    *prometheus.CounterVec
	unbinds     prometheus.Counter
	bound       prometheus.Gauge
	routed      *prometheus.CounterVec
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_session_transitions_total",
			Help: "Session state changes by resulting phase",
		}, []string{"state"}),
		bindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_session_bindings_total",
			Help: "User service bindings by result",
		}, []string{"result"}),
		unbinds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "courtside_session_unbinds_total",
			Help: "User service bindings released",
		}),
		bound: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "courtside_session_bound",
			Help: "Whether at least one user service is bound (0 or 1)",
		}),
		routed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "courtside_session_routed_events_total",
			Help: "Realtime events turned into local notifications, by kind",
		}, []string{"kind"}),
	}
}

// Register registers the collectors with reg.
// Panics if registration fails (following prometheus convention).
func (m *Metrics) Register(reg prometheus.Registerer) {
	reg.MustRegister(m.transitions, m.bindings, m.unbinds, m.bound, m.routed)
}

func (m *Metrics) recordTransition(p Phase) {
	if m != nil {
		m.transitions.WithLabelValues(p.String()).Inc()
	}
}

func (m *Metrics) recordBind(result string) {
	if m == nil {
		return
	}
	m.bindings.WithLabelValues(result).Inc()
	switch result {
	case BindOK, BindPartial, BindRestored:
		m.bound.Set(1)
	case BindFailed:
		m.bound.Set(0)
	}
}

func (m *Metrics) recordUnbind() {
	if m != nil {
		m.unbinds.Inc()
		m.bound.Set(0)
	}
}

func (m *Metrics) recordRouted(kind string) {
	if m != nil {
		m.routed.WithLabelValues(kind).Inc()
	}
}
