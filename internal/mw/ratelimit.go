package mw

import (
	"net"
	"net/http"
	"time"

	"alumninet/internal/throttle"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimit 返回一个基于 IP+路由的令牌桶限速中间件，返回的 Local 需在停服时 Stop。
func RateLimit(r rate.Limit, burst int) (gin.HandlerFunc, *throttle.Local) {
	rl := throttle.NewLocal(r, burst, 2*time.Minute)
	return RateLimitWith(rl), rl
}

// RateLimitWith 使用给定的限流器，key 为 IP|路由。
func RateLimitWith(lim throttle.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := clientIP(c.Request.RemoteAddr)
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		if ok, _ := lim.Allow(c.Request.Context(), ip+"|"+path); !ok {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}

func clientIP(remote string) string {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return remote
	}
	return host
}
