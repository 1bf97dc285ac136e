// Package status exposes the agent's local health and metrics endpoints.
package status

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/lurekit/lurekit/internal/domain/session"
)

// Metrics holds the Prometheus metrics for the session agent.
// Pass to components that need to record metrics.
type Metrics struct {
	RefreshTotal         *prometheus.CounterVec
	RefreshDuration      prometheus.Histogram
	SessionAuthenticated prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RefreshTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "lurekit",
				Name:      "refresh_total",
				Help:      "Total number of token refresh attempts",
			},
			[]string{"result"}, // result=success/failure
		),
		RefreshDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "lurekit",
				Name:      "refresh_duration_seconds",
				Help:      "Token refresh round-trip duration in seconds",
				Buckets:   prometheus.DefBuckets, // 5ms to 10s
			},
		),
		SessionAuthenticated: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "lurekit",
				Name:      "session_authenticated",
				Help:      "1 while the agent holds an authenticated session, else 0",
			},
		),
	}
}

// ObserveRefresh records a refresh attempt. Matches the
// service.RefreshObserver signature.
func (m *Metrics) ObserveRefresh(result string, elapsed time.Duration) {
	m.RefreshTotal.WithLabelValues(result).Inc()
	m.RefreshDuration.Observe(elapsed.Seconds())
}

// TrackSession mirrors the authentication state into the gauge. Matches
// the session.Subscriber signature.
func (m *Metrics) TrackSession(s session.Session) {
	if s.Authenticated() {
		m.SessionAuthenticated.Set(1)
	} else {
		m.SessionAuthenticated.Set(0)
	}
}
