package ws

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"alumninet/internal/auth"
	"alumninet/internal/config"
	"alumninet/internal/metrics"
	"alumninet/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 << 10
)

// State 是单个连接的生命周期状态。
type State int32

const (
	StateConnecting State = iota
	StateAuthenticated
	StateActive
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateActive:
		return "active"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Client 是一条已通过身份校验的实时连接。
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	identity auth.Identity
	state    atomic.Int32

	mu     sync.Mutex
	closed bool
}

func newClient(conn *websocket.Conn, id auth.Identity, buffer int) *Client {
	if buffer <= 0 {
		buffer = 256
	}
	c := &Client{conn: conn, send: make(chan []byte, buffer), identity: id}
	c.setState(StateAuthenticated)
	return c
}

func (c *Client) Identity() auth.Identity { return c.identity }

func (c *Client) Endpoint() models.Endpoint { return c.identity.Endpoint }

func (c *Client) State() State { return State(c.state.Load()) }

func (c *Client) setState(s State) { c.state.Store(int32(s)) }

// Send 非阻塞写入发送缓冲；连接已关闭或缓冲已满时返回 false。
func (c *Client) Send(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

// Close 关闭发送缓冲，写协程随后发送关闭帧并断开连接；可重复调用。
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Serve 完成握手：校验 token 失败时返回 401 与原因，连接不会升级。
func Serve(v *auth.Verifier, relay *Relay, cfg config.Config) gin.HandlerFunc {
	upgrader := websocket.Upgrader{
		HandshakeTimeout: cfg.HandshakeTimeout,
		CheckOrigin:      func(r *http.Request) bool { return true },
	}
	return func(c *gin.Context) {
		id, err := v.Verify(c.Request.Context(), auth.TokenFromRequest(c.Request))
		if err != nil {
			reason := auth.Reason(err)
			metrics.HandshakeRejections.WithLabelValues(reason).Inc()
			log.Warn().Err(err).Str("reason", reason).Str("remote", c.ClientIP()).Msg("ws handshake rejected")
			c.JSON(http.StatusUnauthorized, gin.H{"error": reason})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Debug().Err(err).Str("user_id", id.ID).Msg("ws upgrade")
			return
		}
		client := newClient(conn, id, cfg.WSSendBuffer)
		relay.Attach(client)

		go client.writePump(cfg.WSPingInterval)
		client.readPump(relay, cfg.WSReadTimeout)
	}
}

func (c *Client) readPump(relay *Relay, readTimeout time.Duration) {
	defer func() {
		relay.Detach(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user_id", c.Endpoint().ID).Msg("ws read")
			}
			return
		}
		// 已开始处理的消息不随连接关闭而取消
		relay.Dispatch(context.Background(), c, data)
	}
}

func (c *Client) writePump(pingInterval time.Duration) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
