// Package metrics holds the prometheus instrumentation of conversions and
// of the HTTP API. A nil *Metrics records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	isaerr "github.com/nishad/isakit/internal/errors"
)

// Metrics contains the isakit collectors.
type Metrics struct {
	registry *prometheus.Registry

	Conversions        *prometheus.CounterVec   // by direction and status
	ConversionDuration *prometheus.HistogramVec // by direction
	Errors             *prometheus.CounterVec   // by error kind
	HTTPRequests       *prometheus.CounterVec   // by route, method and code
	HTTPDuration       *prometheus.HistogramVec // by route
	CatalogSize        prometheus.Gauge
}

// New creates the collectors and registers them with a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isakit",
			Subsystem: "conversion",
			Name:      "total",
			Help:      "Total number of conversions",
		}, []string{"direction", "status"}), // status: ok, error

		ConversionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "isakit",
			Subsystem: "conversion",
			Name:      "duration_seconds",
			Help:      "Conversion duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"direction"}),

		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isakit",
			Subsystem: "conversion",
			Name:      "errors_total",
			Help:      "Conversion failures by error kind",
		}, []string{"kind"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "isakit",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		}, []string{"route", "method", "code"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "isakit",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		CatalogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "isakit",
			Subsystem: "catalog",
			Name:      "investigations",
			Help:      "Number of catalogued investigations",
		}),
	}
	m.registry.MustRegister(
		m.Conversions, m.ConversionDuration, m.Errors,
		m.HTTPRequests, m.HTTPDuration, m.CatalogSize,
	)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the collectors in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveConversion records one conversion that started at start.
func (m *Metrics) ObserveConversion(direction string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		m.Errors.WithLabelValues(isaerr.GetKind(err).String()).Inc()
	}
	m.Conversions.WithLabelValues(direction, status).Inc()
	m.ConversionDuration.WithLabelValues(direction).Observe(time.Since(start).Seconds())
}

// SetCatalogSize records the number of catalogued investigations.
func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.CatalogSize.Set(float64(n))
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware counts requests by their mux route template.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}
