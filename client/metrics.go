package client

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "flowcraft_client"

// Request outcomes.
const (
	outcomeOK             = "ok"
	outcomeServerError    = "server_error"
	outcomeNetworkError   = "network_error"
	outcomeSessionExpired = "session_expired"
	outcomeOther          = "error"
)

// Refresh outcomes.
const (
	refreshSuccess = "success"
	refreshFailure = "failure"
)

type metrics struct {
	requests       *prometheus.CounterVec
	refreshes      *prometheus.CounterVec
	sessionExpired prometheus.Counter
}

// newMetrics builds the collectors and registers them with reg when it is
// non-nil. Collectors already registered by another client are reused.
func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "requests_total",
			Help:      "Authenticated requests by method and final outcome.",
		}, []string{"method", "outcome"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "refresh_total",
			Help:      "Token refresh attempts by outcome.",
		}, []string{"outcome"}),
		sessionExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_expired_total",
			Help:      "Sessions cleared because a 401 could not be recovered.",
		}),
	}
	if reg == nil {
		return m
	}
	m.requests = register(reg, m.requests)
	m.refreshes = register(reg, m.refreshes)
	m.sessionExpired = register(reg, m.sessionExpired)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) observeRequest(method string, err error) {
	m.requests.WithLabelValues(method, requestOutcome(err)).Inc()
}

func (m *metrics) observeRefresh(err error) {
	if err != nil {
		m.refreshes.WithLabelValues(refreshFailure).Inc()
		return
	}
	m.refreshes.WithLabelValues(refreshSuccess).Inc()
}

func requestOutcome(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case errors.Is(err, ErrSessionExpired):
		return outcomeSessionExpired
	case errors.Is(err, ErrNetwork):
		return outcomeNetworkError
	case errors.Is(err, ErrServer):
		return outcomeServerError
	default:
		return outcomeOther
	}
}
