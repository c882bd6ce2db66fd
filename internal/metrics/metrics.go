// Package metrics provides Prometheus instrumentation for the bullion engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PriceComputations counts pricing engine calls, partitioned by outcome
	// ("priced" or "incomplete" for the zero sentinel).
	PriceComputations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullion_price_computations_total",
		Help: "Total price computations by outcome",
	}, []string{"outcome"})

	// QuoteTicks counts accepted market quote ticks.
	QuoteTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bullion_quote_ticks_total",
		Help: "Market quote ticks accepted",
	})

	// StaleQuotes counts superseded quote responses that were discarded.
	StaleQuotes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bullion_stale_quotes_total",
		Help: "Quote responses discarded as stale",
	})

	// LedgerApplies counts optimistic balance adjustments by balance type.
	LedgerApplies = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullion_ledger_applies_total",
		Help: "Optimistic ledger applies",
	}, []string{"balance_type"})

	// LedgerCommits counts server-confirmed adjustments by balance type.
	LedgerCommits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullion_ledger_commits_total",
		Help: "Committed ledger adjustments",
	}, []string{"balance_type"})

	// LedgerRollbacks counts failed adjustments rolled back by balance type.
	LedgerRollbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullion_ledger_rollbacks_total",
		Help: "Rolled-back ledger adjustments",
	}, []string{"balance_type"})

	// LedgerBusyRejections counts applies rejected because another
	// adjustment was already in flight.
	LedgerBusyRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bullion_ledger_busy_rejections_total",
		Help: "Applies rejected while an adjustment was in flight",
	})

	// WebSocketClients tracks connected rate-stream clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "bullion_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bullion_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bullion_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
