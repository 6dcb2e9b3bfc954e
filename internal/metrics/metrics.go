package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors, registered via Register.
var (
	regOK atomic.Bool

	serviceStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatehouse",
			Subsystem: "service",
			Name:      "starts_total",
			Help:      "Number of successful service starts.",
		}, []string{"name"},
	)
	serviceRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatehouse",
			Subsystem: "service",
			Name:      "restarts_total",
			Help:      "Number of automatic restarts after unexpected exits.",
		}, []string{"name"},
	)
	serviceStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatehouse",
			Subsystem: "service",
			Name:      "stops_total",
			Help:      "Number of stops (graceful or forced).",
		}, []string{"name"},
	)
	serviceFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatehouse",
			Subsystem: "service",
			Name:      "failures_total",
			Help:      "Number of services entering permanent failure.",
		}, []string{"name"},
	)
	stateTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatehouse",
			Subsystem: "service",
			Name:      "state_transitions_total",
			Help:      "State machine transitions per service.",
		}, []string{"name", "from", "to"},
	)
	proxyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatehouse",
			Subsystem: "router",
			Name:      "requests_total",
			Help:      "Requests dispatched per route.",
		}, []string{"route"},
	)
	proxyUpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gatehouse",
			Subsystem: "router",
			Name:      "upstream_errors_total",
			Help:      "Upstream connection or timeout errors per route.",
		}, []string{"route"},
	)
)

// Register registers all collectors with r. Safe to call multiple times,
// including against more than one registry; re-registration of the same
// collector is tolerated.
func Register(r prometheus.Registerer) error {
	cs := []prometheus.Collector{
		serviceStarts, serviceRestarts, serviceStops, serviceFailures,
		stateTransitions, proxyRequests, proxyUpstreamErrors,
	}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// RegisterDefault registers against the default registry.
func RegisterDefault() error { return Register(prometheus.DefaultRegisterer) }

// Handler serves Prometheus metrics for the default gatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Lightweight helpers; no-ops until Register succeeds.

func IncStart(name string) {
	if regOK.Load() {
		serviceStarts.WithLabelValues(name).Inc()
	}
}

func IncRestart(name string) {
	if regOK.Load() {
		serviceRestarts.WithLabelValues(name).Inc()
	}
}

func IncStop(name string) {
	if regOK.Load() {
		serviceStops.WithLabelValues(name).Inc()
	}
}

func IncFailure(name string) {
	if regOK.Load() {
		serviceFailures.WithLabelValues(name).Inc()
	}
}

func RecordStateTransition(name, from, to string) {
	if regOK.Load() {
		stateTransitions.WithLabelValues(name, from, to).Inc()
	}
}

func IncProxyRequest(route string) {
	if regOK.Load() {
		proxyRequests.WithLabelValues(route).Inc()
	}
}

func IncUpstreamError(route string) {
	if regOK.Load() {
		proxyUpstreamErrors.WithLabelValues(route).Inc()
	}
}
