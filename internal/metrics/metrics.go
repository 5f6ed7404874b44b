// Package metrics provides Prometheus instrumentation for the catalog
// engine.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradeEntriesTotal counts basket entries added, by side and variant.
	TradeEntriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpv_trade_entries_total",
		Help: "Total basket entries added to the trade calculator",
	}, []string{"side", "variant"})

	// ComparisonsTotal counts trade comparisons by outcome status.
	ComparisonsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpv_trade_comparisons_total",
		Help: "Trade comparisons performed, by outcome",
	}, []string{"status"})

	// CatalogFetchesTotal counts upstream catalog fetches by result.
	CatalogFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpv_catalog_fetches_total",
		Help: "Upstream catalog fetches",
	}, []string{"result"}) // "hit", "miss", "error"

	// CatalogItems tracks the size of the last catalog snapshot.
	CatalogItems = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rpv_catalog_items",
		Help: "Items in the current catalog snapshot",
	})

	// AdminLoginsTotal counts credential checks by result.
	AdminLoginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpv_admin_logins_total",
		Help: "Admin login attempts",
	}, []string{"result"}) // "ok", "denied"

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rpv_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rpv_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rpv_http_request_duration_seconds",
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

		// Use the chi route pattern for the path label so entry IDs do
		// not blow up cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
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
