package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// 私信处理结果，对应 MessagesTotal 的 outcome 标签。
const (
	OutcomeDelivered    = "delivered"
	OutcomeOffline      = "offline"
	OutcomeUnauthorized = "unauthorized"
	OutcomeFailed       = "failed"
	OutcomeThrottled    = "throttled"
	OutcomeInvalid      = "invalid"
	OutcomeDropped      = "dropped"
)

var (
	WsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alumninet_ws_connections",
		Help: "Current number of open websocket channels",
	})
	PresenceOnline = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "alumninet_presence_online",
		Help: "Number of endpoints currently registered as online",
	})
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alumninet_messages_total",
		Help: "Private messages processed by the relay, by outcome",
	}, []string{"outcome"})
	HandshakeRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alumninet_handshake_rejections_total",
		Help: "Websocket handshakes rejected before upgrade, by reason",
	}, []string{"reason"})
	HttpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HttpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
)

func init() {
	prometheus.MustRegister(WsConnections, PresenceOnline, MessagesTotal, HandshakeRejections, HttpRequestsTotal, HttpRequestDuration)
}

// GinMiddleware 统计基础请求指标，供 Prometheus 拉取。
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		HttpRequestsTotal.With(labels).Inc()
		HttpRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}
