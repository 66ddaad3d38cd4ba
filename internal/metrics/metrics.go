// Package metrics provides Prometheus instrumentation for the curve host.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TradesTotal counts executed trades, partitioned by side.
	TradesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curve_trades_total",
		Help: "Total number of trades executed",
	}, []string{"side"})

	// TradeLatency tracks trade execution latency, including persistence.
	TradeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "curve_trade_latency_seconds",
		Help:    "Trade execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"side"})

	// ActiveCurves tracks curves still trading on the bonding curve.
	ActiveCurves = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curve_active_curves",
		Help: "Number of curves in the bonding phase",
	})

	// ThresholdCrossings counts curves that crossed their volume threshold.
	ThresholdCrossings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "curve_threshold_crossings_total",
		Help: "Curves that reached their volume threshold",
	})

	// CurveVolume tracks cumulative curve-side reserve volume per curve,
	// in whole reserve units.
	CurveVolume = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curve_reserve_volume_total",
		Help: "Cumulative reserve volume moved through the curve",
	}, []string{"curve_id", "side"})

	// FeesCollected tracks fees charged per curve, in whole reserve units.
	FeesCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curve_fees_collected_total",
		Help: "Cumulative trading fees charged",
	}, []string{"curve_id"})

	// LimitRejections counts trades rejected by trade limits or slippage
	// bounds, partitioned by reason.
	LimitRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curve_limit_rejections_total",
		Help: "Trades rejected by trade limits or slippage bounds",
	}, []string{"reason"})

	// QuoteErrors counts pricing failures by error class.
	QuoteErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curve_quote_errors_total",
		Help: "Pricing failures by error class",
	}, []string{"class"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "curve_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "curve_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "curve_http_request_duration_seconds",
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
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Label by route pattern, not raw path, to bound cardinality.
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

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
