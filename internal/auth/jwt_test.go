package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/yourorg/chat-backend/internal/errs"
)

func TestHMACRoundTrip(t *testing.T) {
	req := require.New(t)
	h := NewHMAC("test-secret")

	token, err := h.Issue(Identity{ID: "64f0c3a1b2c3d4e5f6a7b8c9", Email: "alice@example.com"}, time.Hour)
	req.NoError(err)

	id, err := h.Verify(token)
	req.NoError(err)
	req.Equal("64f0c3a1b2c3d4e5f6a7b8c9", id.ID)
	req.Equal("alice@example.com", id.Email)
}

func TestHMACVerifyRejects(t *testing.T) {
	h := NewHMAC("test-secret")

	t.Run("garbage token", func(t *testing.T) {
		_, err := h.Verify("not.a.token")
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewHMAC("other-secret")
		token, err := other.Issue(Identity{ID: "abc"}, time.Hour)
		require.NoError(t, err)
		_, err = h.Verify(token)
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := h.Issue(Identity{ID: "abc"}, -time.Minute)
		require.NoError(t, err)
		_, err = h.Verify(token)
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("missing subject", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"email": "alice@example.com",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})
		token, err := raw.SignedString([]byte("test-secret"))
		require.NoError(t, err)
		_, err = h.Verify(token)
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})

	t.Run("wrong signing method", func(t *testing.T) {
		raw := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "abc"})
		token, err := raw.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = h.Verify(token)
		require.ErrorIs(t, err, errs.ErrUnauthorized)
	})
}
