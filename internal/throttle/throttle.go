// Package throttle 提供按 key 计数的限流器，用于 HTTP 中间件与私信发送频率控制。
package throttle

import "context"

// Limiter 判断 key 在当前窗口内是否仍可通过。
// 后端故障时实现应放行（返回 true 与错误），避免限流器拖垮正常流量。
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Nop 总是放行。
type Nop struct{}

func (Nop) Allow(context.Context, string) (bool, error) { return true, nil }
