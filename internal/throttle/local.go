package throttle

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type keyLimiter struct {
	lim *rate.Limiter
	ts  time.Time
}

// Local 是进程内的令牌桶限流器，每个 key 一个 rate.Limiter，闲置超过 ttl 的 key 会被回收。
type Local struct {
	mu   sync.Mutex
	m    map[string]*keyLimiter
	r    rate.Limit
	b    int
	ttl  time.Duration
	stop chan struct{}
	once sync.Once
}

// NewLocal 创建限流器并启动后台回收 goroutine，调用方负责 Stop。
func NewLocal(r rate.Limit, burst int, ttl time.Duration) *Local {
	l := &Local{m: make(map[string]*keyLimiter), r: r, b: burst, ttl: ttl, stop: make(chan struct{})}
	go l.gc()
	return l
}

// PerWindow 允许每个 key 在 window 内最多 n 次，令牌匀速补充。
func PerWindow(n int, window time.Duration) *Local {
	if n <= 0 {
		n = 1
	}
	ttl := 2 * window
	if ttl < time.Minute {
		ttl = time.Minute
	}
	return NewLocal(rate.Every(window/time.Duration(n)), n, ttl)
}

func (l *Local) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.m[key]
	if ok {
		kl.ts = time.Now()
		return kl.lim
	}
	lim := rate.NewLimiter(l.r, l.b)
	l.m[key] = &keyLimiter{lim: lim, ts: time.Now()}
	return lim
}

func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	return l.get(key).Allow(), nil
}

// Len 返回当前跟踪的 key 数量。
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

func (l *Local) gc() {
	interval := l.ttl / 2
	if interval <= 0 || interval > 30*time.Second {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.sweep(time.Now())
		}
	}
}

func (l *Local) sweep(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.m {
		if now.Sub(v.ts) > l.ttl {
			delete(l.m, k)
		}
	}
}

// Stop 停止回收 goroutine，用于优雅停服；可重复调用。
func (l *Local) Stop() {
	l.once.Do(func() { close(l.stop) })
}
