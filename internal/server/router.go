package server

import (
	"net/http"

	"alumninet/internal/auth"
	"alumninet/internal/config"
	"alumninet/internal/metrics"
	"alumninet/internal/mw"
	"alumninet/internal/service"
	"alumninet/internal/throttle"
	"alumninet/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps 是路由需要的全部组件，由 main 负责创建与关闭。
type Deps struct {
	Users    *service.UserService
	Graph    *service.Graph
	Messages *service.MessageStore
	Verifier *auth.Verifier
	Registry *ws.Registry
	Relay    *ws.Relay

	// HTTPLimiter 为空时不限速。
	HTTPLimiter throttle.Limiter
}

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env))
	if d.HTTPLimiter != nil {
		r.Use(mw.RateLimitWith(d.HTTPLimiter))
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := NewHandler(d.Users, d.Graph, d.Messages, d.Registry, cfg.HistoryLimit)

	api := r.Group("/api/v1")
	api.POST("/auth/students/register", h.RegisterStudent)
	api.POST("/auth/alumni/register", h.RegisterAlumnus)
	api.POST("/auth/login", h.Login)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(d.Verifier))
	authed.GET("/me", h.Me)
	authed.GET("/connections", h.Connections)
	authed.GET("/invitations", h.Invitations)
	authed.POST("/invitations", h.Invite)
	authed.POST("/invitations/:studentID/respond", h.Respond)
	authed.GET("/messages/:role/:id", h.History)

	r.GET("/ws", ws.Serve(d.Verifier, d.Relay, cfg))
	return r
}
