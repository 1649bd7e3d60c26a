package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "caminata_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})

	economyOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "caminata_economy_operations_total",
		Help: "Economy operations by name and outcome.",
	}, []string{"operation", "outcome"})
)

// recordOperation counts one economy operation result
func recordOperation(operation string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	economyOperations.WithLabelValues(operation, outcome).Inc()
}

// statusRecorder captures the response status for metrics
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// metricsMiddleware times every request
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		httpRequestDuration.WithLabelValues(
			routeLabel(r),
			r.Method,
			strconv.Itoa(recorder.status),
		).Observe(time.Since(start).Seconds())
	})
}

// routeLabel returns the matched route pattern so URL parameters do not
// explode the label cardinality. Resolved after the handler runs, when chi
// has filled in the full pattern.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
