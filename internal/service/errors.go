package service

import (
	"errors"
	"fmt"

	"alumninet/internal/models"
)

// 业务层通用错误，handler 可根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrNotFound           = errors.New("not found")
	ErrEmailTaken         = errors.New("email taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAlreadyConnected   = errors.New("already connected")
	ErrInvalidAction      = errors.New("invalid action")
	ErrEmptyContent       = errors.New("empty message content")
)

// AuthorizationError 表示发送方与目标之间没有互相连接。
type AuthorizationError struct {
	From models.Endpoint
	To   models.Endpoint
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s is not connected to %s", e.From, e.To)
}

// PersistenceError 包装存储层失败，消息随之丢弃。
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return "persist " + e.Op + ": " + e.Err.Error() }

func (e *PersistenceError) Unwrap() error { return e.Err }
