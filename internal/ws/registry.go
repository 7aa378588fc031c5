package ws

import (
	"sync"

	"alumninet/internal/metrics"
	"alumninet/internal/models"
)

// Presence 是中继引擎依赖的在线表；单进程实现为 Registry，多实例部署时可替换。
type Presence interface {
	Register(ep models.Endpoint, c *Client) (displaced *Client)
	Release(ep models.Endpoint, c *Client) bool
	Lookup(ep models.Endpoint) (*Client, bool)
}

// Registry 记录每个用户当前的连接句柄，同一用户后来者覆盖先来者。
type Registry struct {
	mu      sync.RWMutex
	clients map[models.Endpoint]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[models.Endpoint]*Client)}
}

// Register 无条件覆盖 ep 的旧句柄，返回被替换的句柄（若有）。
func (r *Registry) Register(ep models.Endpoint, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.clients[ep]
	r.clients[ep] = c
	metrics.PresenceOnline.Set(float64(len(r.clients)))
	if old == c {
		return nil
	}
	return old
}

// Unregister 移除 ep；不存在时为空操作。
func (r *Registry) Unregister(ep models.Endpoint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, ep)
	metrics.PresenceOnline.Set(float64(len(r.clients)))
}

// Release 仅当 ep 当前仍指向 c 时才移除，被替换的旧连接关闭时不会误删新连接。
func (r *Registry) Release(ep models.Endpoint, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.clients[ep]; !ok || cur != c {
		return false
	}
	delete(r.clients, ep)
	metrics.PresenceOnline.Set(float64(len(r.clients)))
	return true
}

func (r *Registry) Lookup(ep models.Endpoint) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[ep]
	return c, ok
}

func (r *Registry) Online(ep models.Endpoint) bool {
	_, ok := r.Lookup(ep)
	return ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// Close 在停服时关闭所有在线连接并清空注册表。
func (r *Registry) Close() {
	r.mu.Lock()
	clients := r.clients
	r.clients = make(map[models.Endpoint]*Client)
	metrics.PresenceOnline.Set(0)
	r.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}
