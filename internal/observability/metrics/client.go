package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ClientMetrics holds every collector plagctl exposes.
type ClientMetrics struct {
	registry *prometheus.Registry
	service  string

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	checkRunsTotal  *prometheus.CounterVec
	checkDuration   *prometheus.HistogramVec
	feedEventsTotal *prometheus.CounterVec
	breakerOpen     *prometheus.GaugeVec
}

func NewClientMetrics(service string) *ClientMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plagctl",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total backend HTTP requests by outcome.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plagctl",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Backend HTTP request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "plagctl",
			Subsystem: "backend",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight backend requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	checkRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plagctl",
			Subsystem: "check",
			Name:      "runs_total",
			Help:      "Total finished check runs by scope and status.",
		},
		[]string{"service", "scope", "status"},
	)
	checkDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "plagctl",
			Subsystem: "check",
			Name:      "duration_seconds",
			Help:      "Check run duration from start to terminal state.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"service", "scope", "status"},
	)
	feedEventsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "plagctl",
			Subsystem: "feed",
			Name:      "events_total",
			Help:      "Progress feed events by kind.",
		},
		[]string{"service", "kind"},
	)

	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "plagctl",
			Subsystem: "backend",
			Name:      "circuit_open",
			Help:      "1 while the breaker of a backend operation is not closed.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		checkRunsTotal,
		checkDuration,
		feedEventsTotal,
		breakerOpen,
	)

	return &ClientMetrics{
		registry:        registry,
		service:         service,
		requestTotal:    requestTotal,
		requestDuration: requestDuration,
		requestInFlight: requestInFlight,
		checkRunsTotal:  checkRunsTotal,
		checkDuration:   checkDuration,
		feedEventsTotal: feedEventsTotal,
		breakerOpen:     breakerOpen,
	}
}

func (m *ClientMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *ClientMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ClientMetrics) RecordFeedEvent(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	m.feedEventsTotal.WithLabelValues(m.service, kind).Inc()
}

func (m *ClientMetrics) RecordCheckRun(scope, status string, seconds float64) {
	if status == "" {
		status = "unknown"
	}
	m.checkRunsTotal.WithLabelValues(m.service, scope, status).Inc()
	if seconds >= 0 {
		m.checkDuration.WithLabelValues(m.service, scope, status).Observe(seconds)
	}
}

// RecordBreakerState matches resilience.BreakerObserver.
func (m *ClientMetrics) RecordBreakerState(operation, _, to string) {
	value := 0.0
	if to != "closed" {
		value = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(value)
}

// Serve exposes the registry on addr until ctx is done.
func (m *ClientMetrics) Serve(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics_listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics_server_failed", "addr", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
}
