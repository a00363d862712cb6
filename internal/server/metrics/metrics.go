// Package metrics exposes Prometheus counters for the session lifecycle.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "utask_auth"

type Metrics struct {
	SessionsIssued       *prometheus.CounterVec
	RefreshRejected      *prometheus.CounterVec
	ConfirmationsIssued  *prometheus.CounterVec
	SweepRuns            *prometheus.CounterVec
	SweepDeleted         *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		SessionsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_issued_total",
			Help:      "Access/refresh pairs issued, by how they were obtained.",
		}, []string{"via"}),
		RefreshRejected: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rejected_total",
			Help:      "Refresh attempts that did not yield a new session.",
		}, []string{"reason"}),
		ConfirmationsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confirmation_tokens_issued_total",
			Help:      "Confirmation tokens issued, by purpose.",
		}, []string{"purpose"}),
		SweepRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_runs_total",
			Help:      "Retention sweeper passes, by outcome.",
		}, []string{"outcome"}),
		SweepDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_deleted_total",
			Help:      "Expired tokens removed by the sweeper.",
		}, []string{"kind"}),
		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be delivered.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) SessionIssued(via string) {
	if m == nil {
		return
	}
	m.SessionsIssued.WithLabelValues(via).Inc()
}

func (m *Metrics) RefreshRejectedFor(reason string) {
	if m == nil {
		return
	}
	m.RefreshRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) ConfirmationIssued(purpose string) {
	if m == nil {
		return
	}
	m.ConfirmationsIssued.WithLabelValues(purpose).Inc()
}

func (m *Metrics) SweepFinished(ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.SweepRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Swept(kind string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.SweepDeleted.WithLabelValues(kind).Add(float64(n))
}

func (m *Metrics) NotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.NotificationFailures.WithLabelValues(kind).Inc()
}
