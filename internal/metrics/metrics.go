// ABOUTME: Prometheus metrics for authentication decisions and HTTP traffic
// ABOUTME: Implements auth.DecisionRecorder and serves the scrape endpoint

package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/2389/ecomap-gateway/internal/auth"
)

// Metrics holds all Prometheus collectors for the gateway
type Metrics struct {
	AuthDecisionsTotal  *prometheus.CounterVec
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// Every outcome the authentication middleware can report.
var authOutcomes = []string{
	auth.OutcomePublic,
	auth.OutcomeAnonymous,
	auth.OutcomeMalformed,
	auth.OutcomeInvalidSignature,
	auth.OutcomeExpired,
	auth.OutcomeUnknownPrincipal,
	auth.OutcomeResolverError,
	auth.OutcomeAlreadyAuthenticated,
	auth.OutcomeAuthenticated,
}

// Ensure Metrics implements auth.DecisionRecorder.
var _ auth.DecisionRecorder = (*Metrics)(nil)

// New creates and registers all metrics on registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AuthDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecomap_auth_decisions_total",
				Help: "Authentication middleware decisions by outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ecomap_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ecomap_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		registry: registry,
	}

	registry.MustRegister(
		m.AuthDecisionsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	// Zero-valued series so dashboards see every outcome from the start.
	for _, outcome := range authOutcomes {
		m.AuthDecisionsTotal.WithLabelValues(outcome)
	}

	return m
}

// RecordDecision counts one authentication outcome.
func (m *Metrics) RecordDecision(outcome string) {
	m.AuthDecisionsTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the scrape endpoint for the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// statusRecorder wraps http.ResponseWriter to capture the status code
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Instrument wraps router so every request it serves is counted, including
// those answered by its NotFound and MethodNotAllowed handlers. The route
// label is the matched path template, so path parameters do not explode
// cardinality.
func (m *Metrics) Instrument(router *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		route := routeLabel(router, r)
		router.ServeHTTP(rw, r)

		m.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
		m.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// routeLabel returns the path template of the route r matches, or
// "unmatched" for unknown paths and method mismatches.
func routeLabel(router *mux.Router, r *http.Request) string {
	var match mux.RouteMatch
	if router.Match(r, &match) && match.Route != nil {
		if tmpl, err := match.Route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
