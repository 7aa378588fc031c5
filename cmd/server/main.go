package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alumninet/internal/auth"
	"alumninet/internal/config"
	"alumninet/internal/db"
	clog "alumninet/internal/log"
	"alumninet/internal/server"
	"alumninet/internal/service"
	"alumninet/internal/throttle"
	"alumninet/internal/ws"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库、组装各组件并启动 HTTP 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	gdb, err := db.Connect(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	users := service.NewUserService(gdb, cfg)
	graph := service.NewGraph(gdb)
	messages := service.NewMessageStore(gdb)
	verifier := auth.NewVerifier(cfg.JWTSecret, users, cfg.HandshakeTimeout)

	msgLimiter, closeLimiter := messageLimiter(cfg)
	defer closeLimiter()
	httpLimiter := throttle.NewLocal(rate.Every(time.Second/20), 40, 2*time.Minute)
	defer httpLimiter.Stop()

	registry := ws.NewRegistry()
	relay := ws.NewRelay(graph, messages, registry, msgLimiter)

	r := server.SetupRouter(cfg, server.Deps{
		Users:       users,
		Graph:       graph,
		Messages:    messages,
		Verifier:    verifier,
		Registry:    registry,
		Relay:       relay,
		HTTPLimiter: httpLimiter,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("db", cfg.DBDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// 被劫持的 websocket 连接不受 Shutdown 管理，需要主动关闭
	relay.Close()
	registry.Close()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	if sqlDB, err := gdb.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

// messageLimiter 配置了 REDIS_ADDR 时使用 Redis 计数，否则退回进程内令牌桶。
func messageLimiter(cfg config.Config) (throttle.Limiter, func()) {
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis unreachable, message throttle fails open until it recovers")
		}
		lim := throttle.NewRedis(client, "alumninet:rl:msg:", cfg.MessageRateLimit, cfg.MessageRateWindow)
		return lim, func() { _ = client.Close() }
	}
	lim := throttle.PerWindow(cfg.MessageRateLimit, cfg.MessageRateWindow)
	return lim, lim.Stop
}
