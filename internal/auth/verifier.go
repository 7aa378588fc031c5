package auth

import (
	"context"
	"errors"
	"time"

	"alumninet/internal/models"
)

const (
	ReasonMissingToken  = "missing token"
	ReasonInvalidToken  = "invalid or expired token"
	ReasonInvalidRole   = "invalid role"
	ReasonUserNotFound  = "user not found"
	ReasonLookupFailure = "identity lookup failed"
)

// AuthError 终止一次连接尝试，不会重试。
type AuthError struct {
	Reason string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "auth: " + e.Reason + ": " + e.Err.Error()
	}
	return "auth: " + e.Reason
}

func (e *AuthError) Unwrap() error { return e.Err }

// Reason 返回可直接展示给客户端的原因字符串。
func Reason(err error) string {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return "unauthorized"
}

// Identity 是握手成功后附着在通道上的用户身份，不含任何密码字段。
type Identity struct {
	models.Endpoint
	Email string `json:"email"`
	Name  string `json:"name"`
}

// AccountFinder 按角色在对应的用户集合中查找；找不到时返回 nil Account。
type AccountFinder interface {
	LookupAccount(ctx context.Context, email string, role models.Role) (models.Account, error)
}

type Verifier struct {
	secret  string
	finder  AccountFinder
	timeout time.Duration
}

func NewVerifier(secret string, finder AccountFinder, timeout time.Duration) *Verifier {
	return &Verifier{secret: secret, finder: finder, timeout: timeout}
}

// Verify 校验签名与有效期，按角色分派一次，之后系统内只使用带标签的 Endpoint。
func (v *Verifier) Verify(ctx context.Context, raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, &AuthError{Reason: ReasonMissingToken}
	}
	claims, err := ParseAccessToken(raw, v.secret)
	if err != nil {
		return Identity{}, &AuthError{Reason: ReasonInvalidToken, Err: err}
	}
	role, err := models.ParseRole(claims.Role)
	if err != nil {
		return Identity{}, &AuthError{Reason: ReasonInvalidRole, Err: err}
	}

	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	acct, err := v.finder.LookupAccount(ctx, claims.Email, role)
	if err != nil {
		return Identity{}, &AuthError{Reason: ReasonLookupFailure, Err: err}
	}
	if acct == nil {
		return Identity{}, &AuthError{Reason: ReasonUserNotFound}
	}
	return Identity{Endpoint: acct.Endpoint(), Email: acct.ContactEmail(), Name: acct.DisplayName()}, nil
}
