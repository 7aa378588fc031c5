package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"alumninet/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims 与原门户签发的 token 保持一致：{email, role}，sub 为用户 id。
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

func VerifyPassword(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

func GenerateAccessToken(acct models.Account, secret string, ttlMinutes int) (string, error) {
	now := time.Now()
	ep := acct.Endpoint()
	claims := Claims{
		Email: acct.ContactEmail(),
		Role:  string(ep.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ep.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(ttlMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func ParseAccessToken(tokenStr, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// TokenFromRequest 依次从 Authorization 头、token cookie、token 查询参数中取凭证。
// 浏览器无法在 websocket 握手上设置自定义头，因此保留后两种方式。
func TokenFromRequest(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	if ck, err := r.Cookie("token"); err == nil && ck.Value != "" {
		return ck.Value
	}
	return r.URL.Query().Get("token")
}

const identityKey = "identity"

// AuthMiddleware 为 REST 接口复用握手时的身份校验。
func AuthMiddleware(v *Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := v.Verify(c.Request.Context(), TokenFromRequest(c.Request))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": Reason(err)})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func GetIdentity(c *gin.Context) (Identity, bool) {
	if v, ok := c.Get(identityKey); ok {
		if id, ok2 := v.(Identity); ok2 {
			return id, true
		}
	}
	return Identity{}, false
}
