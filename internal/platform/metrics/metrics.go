// Package metrics holds the Prometheus instruments for the OCPI core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles every counter the core emits.
type Metrics struct {
	Mutations            *prometheus.CounterVec
	Handshakes           *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	Requests             *prometheus.CounterVec
}

// New registers the metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the metrics on reg; tests pass a fresh registry so
// parallel constructions never collide.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpi_store_mutations_total",
			Help: "Store mutation attempts by store and outcome.",
		}, []string{"store", "outcome"}),
		Handshakes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpi_credential_handshakes_total",
			Help: "Credential handshake operations by operation and result.",
		}, []string{"operation", "result"}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpi_notification_failures_total",
			Help: "Notification subscriber panics recovered, by event kind.",
		}, []string{"event"}),
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ocpi_http_requests_total",
			Help: "HTTP requests by route and status class.",
		}, []string{"route", "status"}),
	}
}

// CountMutation records one store mutation attempt.
func (m *Metrics) CountMutation(store, outcome string) {
	m.Mutations.WithLabelValues(store, outcome).Inc()
}

// CountHandshake records one handshake operation.
func (m *Metrics) CountHandshake(operation, result string) {
	m.Handshakes.WithLabelValues(operation, result).Inc()
}

// CountRequest records one served HTTP request.
func (m *Metrics) CountRequest(route, status string) {
	m.Requests.WithLabelValues(route, status).Inc()
}

// CountNotificationFailure records one recovered subscriber panic.
func (m *Metrics) CountNotificationFailure(event string) {
	m.NotificationFailures.WithLabelValues(event).Inc()
}
