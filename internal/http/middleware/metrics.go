package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// httpMetrics groups the HTTP collectors. Labels use the registered route
// (c.FullPath) so raw participant ids never become label values; unmatched
// requests share the "unmatched" path label.
type httpMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	size     *prometheus.HistogramVec
	inflight prometheus.Gauge
	upgrades *prometheus.CounterVec
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	m := &httpMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "path", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method", "path"}),
		size: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size by method and route.",
			Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B..4MiB
		}, []string{"method", "path"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "HTTP requests currently being served, websockets excluded.",
		}),
		upgrades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_websocket_upgrades_total",
			Help: "Websocket upgrade requests by route and final status.",
		}, []string{"path", "status"}),
	}
	reg.MustRegister(m.requests, m.latency, m.size, m.inflight, m.upgrades)
	return m
}

var (
	defaultHTTPMetrics = newHTTPMetrics(prometheus.DefaultRegisterer)

	rateLimited = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_rate_limited_total",
		Help: "Requests refused by the rate limiter, by key kind (user or ip).",
	}, []string{"kind"})
)

func init() {
	prometheus.MustRegister(rateLimited)
}

// Metrics records request count, latency, response size and concurrency on
// the default Prometheus registry. Websocket feeds live for minutes, so they
// only count in http_websocket_upgrades_total once the connection ends.
func Metrics() gin.HandlerFunc { return defaultHTTPMetrics.handler() }

func (m *httpMetrics) handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if IsWebsocketUpgrade(c.Request) {
			c.Next()
			m.upgrades.WithLabelValues(routeLabel(c), strconv.Itoa(c.Writer.Status())).Inc()
			return
		}

		m.inflight.Inc()
		defer m.inflight.Dec()
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		path, method := routeLabel(c), c.Request.Method
		m.requests.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(method, path).Observe(elapsed.Seconds())
		if n := c.Writer.Size(); n >= 0 {
			m.size.WithLabelValues(method, path).Observe(float64(n))
		}
	}
}

func routeLabel(c *gin.Context) string {
	if p := c.FullPath(); p != "" {
		return p
	}
	return "unmatched"
}

// IsWebsocketUpgrade reports whether r asks to switch to the websocket protocol.
func IsWebsocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket") &&
		strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade")
}
