package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Predict outcomes.
const (
	OutcomeSuccess         = "success"
	OutcomeEmptyResult     = "empty_result"
	OutcomeMalformedResult = "malformed_result"
	OutcomeRemoteError     = "remote_error"
	OutcomeTimeout         = "timeout"
	OutcomeCircuitOpen     = "circuit_open"
	OutcomeCanceled        = "canceled"
)

// Metrics holds all server metrics on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	PredictRequestsTotal *prometheus.CounterVec
	PredictDuration      prometheus.Histogram
	BreakerState         *prometheus.GaugeVec
}

// New creates a Metrics instance with every collector registered.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "video_relay"
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "route"},
		),

		PredictRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "predict",
				Name:      "requests_total",
				Help:      "Total number of prediction calls by outcome",
			},
			[]string{"outcome"},
		),
		PredictDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "predict",
				Name:      "duration_seconds",
				Help:      "Prediction call duration in seconds",
				Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
		),
		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "predict",
				Name:      "breaker_open",
				Help:      "Circuit breaker state (1=open or half-open, 0=closed)",
			},
			[]string{"breaker"},
		),
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObservePredict records one prediction call.
func (m *Metrics) ObservePredict(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.PredictRequestsTotal.WithLabelValues(outcome).Inc()
	m.PredictDuration.Observe(elapsed.Seconds())
}

// SetBreakerState records a breaker transition.
func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}
	v := 0.0
	if state != "closed" {
		v = 1
	}
	m.BreakerState.WithLabelValues(name).Set(v)
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
