package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "taskmanager"

// Metrics holds the auth counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tokenVerifications *prometheus.CounterVec
	accessDecisions    *prometheus.CounterVec
	logins             *prometheus.CounterVec
	resetEvents        *prometheus.CounterVec
}

func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		tokenVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "token_verifications_total",
			Help:      "Token verifications by result",
		}, []string{"result"}),
		accessDecisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "access_decisions_total",
			Help:      "Access gate decisions by outcome",
		}, []string{"outcome"}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		resetEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "password_reset",
			Name:      "events_total",
			Help:      "Password reset operations by step and outcome",
		}, []string{"step", "outcome"}),
	}
}

func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.tokenVerifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveAccess(outcome string) {
	if m == nil {
		return
	}
	m.accessDecisions.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveReset(step string, outcome string) {
	if m == nil {
		return
	}
	m.resetEvents.WithLabelValues(step, outcome).Inc()
}

func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
