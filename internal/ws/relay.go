package ws

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"alumninet/internal/metrics"
	"alumninet/internal/models"
	"alumninet/internal/service"
	"alumninet/internal/throttle"

	"github.com/rs/zerolog/log"
)

// Authorizer 判断两端是否互为连接。
type Authorizer interface {
	IsConnected(ctx context.Context, a, b models.Endpoint) (bool, error)
}

// MessageLog 持久化消息并返回带 id 与时间戳的记录。
type MessageLog interface {
	Append(ctx context.Context, in *models.Message) (*models.Message, error)
}

// Relay 对每条私信依次做限流、授权、持久化，最后投递给在线的收件人并回显给发送者。
type Relay struct {
	graph    Authorizer
	store    MessageLog
	presence Presence
	limiter  throttle.Limiter

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func NewRelay(graph Authorizer, store MessageLog, presence Presence, limiter throttle.Limiter) *Relay {
	if limiter == nil {
		limiter = throttle.Nop{}
	}
	return &Relay{
		graph:    graph,
		store:    store,
		presence: presence,
		limiter:  limiter,
		clients:  make(map[*Client]struct{}),
	}
}

// Attach 登记在线状态并进入 Active，之后才开始读取消息。
func (r *Relay) Attach(c *Client) {
	r.mu.Lock()
	r.clients[c] = struct{}{}
	r.mu.Unlock()

	if displaced := r.presence.Register(c.Endpoint(), c); displaced != nil {
		log.Debug().Str("user_id", c.Endpoint().ID).Str("role", string(c.Endpoint().Role)).Msg("presence replaced by newer channel")
	}
	c.setState(StateActive)
	metrics.WsConnections.Inc()
	log.Info().Str("user_id", c.Endpoint().ID).Str("role", string(c.Endpoint().Role)).Msg("ws connected")
}

// Detach 进入 Closed 并释放在线状态，可重复调用。
func (r *Relay) Detach(c *Client) {
	if State(c.state.Swap(int32(StateClosed))) == StateClosed {
		return
	}
	r.mu.Lock()
	delete(r.clients, c)
	r.mu.Unlock()

	r.presence.Release(c.Endpoint(), c)
	c.Close()
	metrics.WsConnections.Dec()
	log.Info().Str("user_id", c.Endpoint().ID).Str("role", string(c.Endpoint().Role)).Msg("ws disconnected")
}

// Close 在停服时关闭所有连接，包括已被替换的旧连接。
func (r *Relay) Close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		clients = append(clients, c)
	}
	r.mu.Unlock()
	for _, c := range clients {
		c.Close()
	}
}

// Dispatch 处理一帧入站数据；格式错误与未知事件只记录日志，不影响连接。
func (r *Relay) Dispatch(ctx context.Context, c *Client, frame []byte) {
	if c.State() != StateActive {
		return
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		log.Debug().Err(err).Str("user_id", c.Endpoint().ID).Msg("malformed frame")
		return
	}
	switch env.Event {
	case EventPrivateMessage:
		var in PrivateMessage
		if err := json.Unmarshal(env.Data, &in); err != nil {
			metrics.MessagesTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
			log.Debug().Err(err).Str("user_id", c.Endpoint().ID).Msg("malformed private_message")
			return
		}
		r.HandlePrivateMessage(ctx, c, in)
	default:
		log.Debug().Str("event", env.Event).Str("user_id", c.Endpoint().ID).Msg("unknown event")
	}
}

// HandlePrivateMessage 先持久化再投递：存储失败时不投递也不回显。
func (r *Relay) HandlePrivateMessage(ctx context.Context, c *Client, in PrivateMessage) {
	from := c.Endpoint()
	to := recipient(in)
	logger := log.With().Str("user_id", from.ID).Str("role", string(from.Role)).Str("to", to.String()).Logger()

	if strings.TrimSpace(in.Content) == "" || to.ID == "" {
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeInvalid).Inc()
		logger.Debug().Msg("private_message missing content or recipient")
		return
	}

	if ok, err := r.limiter.Allow(ctx, from.String()); err != nil {
		logger.Warn().Err(err).Msg("throttle unavailable")
	} else if !ok {
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeThrottled).Inc()
		r.push(c, EventRateLimited, ErrorPayload{Message: msgRateLimited})
		return
	}

	connected, err := r.graph.IsConnected(ctx, from, to)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error().Err(err).Msg("connection check failed")
		return
	}
	if !connected {
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeUnauthorized).Inc()
		logger.Debug().Err(&service.AuthorizationError{From: from, To: to}).Msg("private_message rejected")
		r.push(c, EventAuthError, ErrorPayload{Message: msgNotConnected})
		return
	}

	msg, err := r.store.Append(ctx, &models.Message{
		Content:  in.Content,
		FromID:   from.ID,
		FromRole: from.Role,
		ToID:     to.ID,
		ToRole:   to.Role,
	})
	if err != nil {
		outcome := metrics.OutcomeFailed
		if errors.Is(err, service.ErrEmptyContent) {
			outcome = metrics.OutcomeInvalid
		}
		metrics.MessagesTotal.WithLabelValues(outcome).Inc()
		logger.Error().Err(err).Msg("append message")
		return
	}

	out, err := encode(EventNewMessage, msg)
	if err != nil {
		logger.Error().Err(err).Msg("encode new_message")
		return
	}
	outcome := metrics.OutcomeOffline
	if peer, ok := r.presence.Lookup(to); ok {
		if peer.Send(out) {
			outcome = metrics.OutcomeDelivered
		} else {
			logger.Warn().Msg("recipient buffer full, live delivery dropped")
		}
	}
	metrics.MessagesTotal.WithLabelValues(outcome).Inc()

	if !c.Send(out) {
		metrics.MessagesTotal.WithLabelValues(metrics.OutcomeDropped).Inc()
		logger.Warn().Msg("sender buffer full, echo dropped")
	}
}

func (r *Relay) push(c *Client, event string, data interface{}) {
	b, err := encode(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode")
		return
	}
	if !c.Send(b) {
		log.Warn().Str("event", event).Str("user_id", c.Endpoint().ID).Msg("send buffer full, event dropped")
	}
}

// recipient 把 to/toModel 解析成 Endpoint；未知角色保留原值，授权检查必然失败。
func recipient(in PrivateMessage) models.Endpoint {
	id := strings.TrimSpace(in.To)
	role, err := models.ParseRole(in.ToModel)
	if err != nil {
		return models.Endpoint{Role: models.Role(in.ToModel), ID: id}
	}
	return models.Endpoint{Role: role, ID: id}
}
