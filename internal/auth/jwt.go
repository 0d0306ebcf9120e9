package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/yourorg/chat-backend/internal/errs"
)

// Identity is what a verified bearer credential resolves to. Credential
// issuance and password handling live outside this service; the chat core
// only consumes verify/issue.
type Identity struct {
	ID    string
	Email string
}

type Verifier interface {
	Verify(token string) (Identity, error)
}

type Issuer interface {
	Issue(id Identity, ttl time.Duration) (string, error)
}

type HMAC struct {
	secret []byte
}

func NewHMAC(secret string) *HMAC {
	return &HMAC{secret: []byte(secret)}
}

func (h *HMAC) Verify(tokenStr string) (Identity, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return h.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: invalid token", errs.ErrUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("%w: invalid claims", errs.ErrUnauthorized)
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	if sub == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", errs.ErrUnauthorized)
	}
	return Identity{ID: sub, Email: email}, nil
}

func (h *HMAC) Issue(id Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   id.ID,
		"email": id.Email,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	})
	return token.SignedString(h.secret)
}
