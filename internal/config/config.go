package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                  string
	Env                   string
	DBDriver              string
	DatabaseDSN           string
	JWTSecret             string
	AccessTokenTTLMinutes int
	HandshakeTimeout      time.Duration
	WSPingInterval        time.Duration
	WSReadTimeout         time.Duration
	WSSendBuffer          int
	MessageRateLimit      int
	MessageRateWindow     time.Duration
	RedisAddr             string
	HistoryLimit          int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

// getenvInt 解析正整数，非法值回退到默认值。
func getenvInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getenvDuration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(os.Getenv(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load 读取环境变量（若存在 .env 则先加载），缺省值适用于本地开发。
func Load() Config {
	_ = godotenv.Load()
	return Config{
		Port:                  getenv("APP_PORT", "8080"),
		Env:                   getenv("APP_ENV", "dev"),
		DBDriver:              getenv("DB_DRIVER", "postgres"),
		DatabaseDSN:           getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=alumninet port=5432 sslmode=disable TimeZone=UTC"),
		JWTSecret:             getenv("JWT_SECRET", defaultJWTSecret),
		AccessTokenTTLMinutes: getenvInt("ACCESS_TOKEN_TTL_MINUTES", 7*24*60),
		HandshakeTimeout:      getenvDuration("HANDSHAKE_TIMEOUT", 5*time.Second),
		WSPingInterval:        getenvDuration("WS_PING_INTERVAL", 30*time.Second),
		WSReadTimeout:         getenvDuration("WS_READ_TIMEOUT", 60*time.Second),
		WSSendBuffer:          getenvInt("WS_SEND_BUFFER", 256),
		MessageRateLimit:      getenvInt("MESSAGE_RATE_LIMIT", 20),
		MessageRateWindow:     getenvDuration("MESSAGE_RATE_WINDOW", 10*time.Second),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		HistoryLimit:          getenvInt("HISTORY_LIMIT", 200),
	}
}

// Validate 在启动前拒绝明显错误的配置。
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("config: APP_PORT is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("config: DATABASE_DSN is required")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return errors.New("config: DB_DRIVER must be postgres or sqlite")
	}
	if cfg.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("config: default JWT_SECRET is only allowed in dev")
	}
	if cfg.WSPingInterval <= 0 || cfg.WSReadTimeout <= 0 || cfg.HandshakeTimeout <= 0 {
		return errors.New("config: timeouts must be positive")
	}
	if cfg.WSPingInterval >= cfg.WSReadTimeout {
		return errors.New("config: WS_PING_INTERVAL must be shorter than WS_READ_TIMEOUT")
	}
	return nil
}
