package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis 使用 INCR + EXPIRE 的固定窗口计数，多个进程共享同一份计数。
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) *Redis {
	return &Redis{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow 在 Redis 故障时放行并返回错误。
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	k := r.prefix + key
	count, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		log.Warn().Err(err).Str("key", k).Msg("throttle incr failed, failing open")
		return true, err
	}
	if count == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			log.Warn().Err(err).Str("key", k).Msg("throttle expire failed, failing open")
			// 没有 TTL 的 key 会永久存在，删掉以免永久封禁
			r.client.Del(ctx, k)
			return true, err
		}
	}
	return int(count) <= r.limit, nil
}

// Remaining 返回当前窗口剩余次数；key 不存在时为完整额度。
func (r *Redis) Remaining(ctx context.Context, key string) (int, error) {
	count, err := r.client.Get(ctx, r.prefix+key).Int()
	if err == redis.Nil {
		return r.limit, nil
	}
	if err != nil {
		return r.limit, err
	}
	if rem := r.limit - count; rem > 0 {
		return rem, nil
	}
	return 0, nil
}
