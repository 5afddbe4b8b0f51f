package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics keeps label cardinality bounded: endpoint is the chi route
// pattern, never the raw path.
type httpMetrics struct {
	requestLatency     *prometheus.HistogramVec
	requestTotal       *prometheus.CounterVec
	connectionRejected *prometheus.CounterVec
	battlesActive      prometheus.GaugeFunc
	wsConnections      prometheus.Gauge
}

func newHTTPMetrics(reg prometheus.Registerer, manager *BattleManager) *httpMetrics {
	factory := promauto.With(reg)
	return &httpMetrics{
		requestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tbc_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		requestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbc_http_requests_total",
			Help: "Total HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		connectionRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tbc_connection_rejected_total",
			Help: "Requests and websocket upgrades refused",
		}, []string{"reason"}),
		battlesActive: factory.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "tbc_battles_active",
			Help: "Battles currently held by the manager",
		}, func() float64 { return float64(manager.Count()) }),
		wsConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tbc_websocket_connections_active",
			Help: "Currently connected websocket clients",
		}),
	}
}

func (m *httpMetrics) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		m.requestLatency.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
		m.requestTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(status)).Inc()
	})
}
