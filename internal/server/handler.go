package server

import (
	"errors"
	"net/http"
	"strings"

	"alumninet/internal/auth"
	"alumninet/internal/models"
	"alumninet/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Presence 只用于在连接列表上标注在线状态。
type Presence interface {
	Online(ep models.Endpoint) bool
}

// Handler 聚合所有 HTTP handler，依赖注入 service 层。
type Handler struct {
	users        *service.UserService
	graph        *service.Graph
	messages     *service.MessageStore
	presence     Presence
	historyLimit int
}

func NewHandler(users *service.UserService, graph *service.Graph, messages *service.MessageStore, presence Presence, historyLimit int) *Handler {
	return &Handler{users: users, graph: graph, messages: messages, presence: presence, historyLimit: historyLimit}
}

func validCredentials(email, password string) bool {
	email = strings.TrimSpace(email)
	if email == "" || !strings.Contains(email, "@") || len(email) > 254 {
		return false
	}
	return len(password) >= 4 && len(password) <= 128
}

// writeError 把 service 层错误映射为 HTTP 状态码，未知错误记录日志后返回 500。
func writeError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, service.ErrEmailTaken):
		c.JSON(http.StatusConflict, gin.H{"error": "email taken"})
	case errors.Is(err, service.ErrAlreadyConnected):
		c.JSON(http.StatusConflict, gin.H{"error": "already connected"})
	case errors.Is(err, service.ErrInvalidAction):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid action"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
	default:
		log.Error().Err(err).Str("op", op).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": op + " failed"})
	}
}

// RegisterStudent 处理学生注册。
func (h *Handler) RegisterStudent(c *gin.Context) {
	var req service.StudentInput
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.FullName) == "" || !validCredentials(req.Email, req.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	st, err := h.users.RegisterStudent(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "register")
		return
	}
	c.JSON(http.StatusOK, st)
}

// RegisterAlumnus 处理校友注册。
func (h *Handler) RegisterAlumnus(c *gin.Context) {
	var req service.AlumnusInput
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" || !validCredentials(req.Email, req.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	al, err := h.users.RegisterAlumnus(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "register")
		return
	}
	c.JSON(http.StatusOK, al)
}

// Login 校验凭证并签发 token；role 可省略。
func (h *Handler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	var role models.Role
	if req.Role != "" {
		r, err := models.ParseRole(req.Role)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
			return
		}
		role = r
	}
	res, err := h.users.Login(c.Request.Context(), req.Email, req.Password, role)
	if err != nil {
		writeError(c, err, "login")
		return
	}
	ep := res.Account.Endpoint()
	c.JSON(http.StatusOK, gin.H{
		"access_token": res.AccessToken,
		"user":         gin.H{"id": ep.ID, "role": ep.Role, "name": res.Account.DisplayName(), "email": res.Account.ContactEmail()},
	})
}

// Me 返回当前登录身份。
func (h *Handler) Me(c *gin.Context) {
	id, _ := auth.GetIdentity(c)
	c.JSON(http.StatusOK, id)
}

type peerDTO struct {
	ID     string      `json:"id"`
	Role   models.Role `json:"role"`
	Name   string      `json:"name"`
	Online bool        `json:"online"`
}

func (h *Handler) peers(c *gin.Context, eps []models.Endpoint) []peerDTO {
	out := make([]peerDTO, 0, len(eps))
	for _, ep := range eps {
		p := peerDTO{ID: ep.ID, Role: ep.Role}
		if acct, err := h.users.Get(c.Request.Context(), ep); err == nil {
			p.Name = acct.DisplayName()
		}
		if h.presence != nil {
			p.Online = h.presence.Online(ep)
		}
		out = append(out, p)
	}
	return out
}

// Connections 返回已互相连接的对端及其在线状态，用于初始化聊天视图。
func (h *Handler) Connections(c *gin.Context) {
	id, _ := auth.GetIdentity(c)
	eps, err := h.graph.Connections(c.Request.Context(), id.Endpoint)
	if err != nil {
		writeError(c, err, "list connections")
		return
	}
	c.JSON(http.StatusOK, gin.H{"connections": h.peers(c, eps)})
}

// Invitations 对校友返回收到的邀请，对学生返回已发出的请求。
func (h *Handler) Invitations(c *gin.Context) {
	id, _ := auth.GetIdentity(c)
	eps, err := h.graph.Pending(c.Request.Context(), id.Endpoint)
	if err != nil {
		writeError(c, err, "list invitations")
		return
	}
	c.JSON(http.StatusOK, gin.H{"invitations": h.peers(c, eps)})
}

// Invite 学生向校友发送连接请求。
func (h *Handler) Invite(c *gin.Context) {
	id, _ := auth.GetIdentity(c)
	if id.Role != models.RoleStudent {
		c.JSON(http.StatusForbidden, gin.H{"error": "only students can send requests"})
		return
	}
	var req struct {
		AlumnusID string `json:"alumnus_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.AlumnusID) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if err := h.graph.Invite(c.Request.Context(), id.ID, strings.TrimSpace(req.AlumnusID)); err != nil {
		writeError(c, err, "invite")
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": models.LinkPending})
}

// Respond 校友接受或拒绝学生的请求，重复提交结果相同。
func (h *Handler) Respond(c *gin.Context) {
	id, _ := auth.GetIdentity(c)
	if id.Role != models.RoleAlumnus {
		c.JSON(http.StatusForbidden, gin.H{"error": "only alumni can respond to invitations"})
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	action, err := service.ParseAction(req.Action)
	if err != nil {
		writeError(c, err, "respond")
		return
	}
	studentID := c.Param("studentID")
	if err := h.graph.RespondToInvitation(c.Request.Context(), id.ID, studentID, action); err != nil {
		writeError(c, err, "respond")
		return
	}
	state, err := h.graph.State(c.Request.Context(), studentID, id.ID)
	if err != nil {
		writeError(c, err, "respond")
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": state})
}

// History 返回当前用户与对端之间最近的消息，按时间升序。
func (h *Handler) History(c *gin.Context) {
	id, _ := auth.GetIdentity(c)
	role, err := models.ParseRole(c.Param("role"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid role"})
		return
	}
	peer := models.Endpoint{Role: role, ID: c.Param("id")}
	msgs, err := h.messages.Recent(c.Request.Context(), id.Endpoint, peer, h.historyLimit)
	if err != nil {
		writeError(c, err, "list messages")
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}
