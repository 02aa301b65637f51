package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockfolio/portfolio-tracker/internal/config"
)

func newTokenService(secret string) *Service {
	return &Service{
		cfg: config.AuthConfig{
			JWTSecret:       secret,
			AccessTokenTTL:  time.Hour,
			RefreshTokenTTL: 24 * time.Hour,
		},
		log: zerolog.Nop(),
	}
}

func TestAccessTokens(t *testing.T) {
	svc := newTokenService("test-secret")

	t.Run("signed token verifies back to the user id", func(t *testing.T) {
		token, err := svc.signToken(42, time.Hour)
		require.NoError(t, err)

		userID, err := svc.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, 42, userID)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		token, err := svc.signToken(42, -time.Minute)
		require.NoError(t, err)

		_, err = svc.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token signed with a different secret is rejected", func(t *testing.T) {
		other := newTokenService("other-secret")
		token, err := other.signToken(42, time.Hour)
		require.NoError(t, err)

		_, err = svc.VerifyAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		_, err := svc.VerifyAccessToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("token without a user id claim is rejected", func(t *testing.T) {
		claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = svc.VerifyAccessToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token is rejected", func(t *testing.T) {
		claims := jwt.MapClaims{
			"user_id": 42,
			"exp":     time.Now().Add(time.Hour).Unix(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodNone, claims)
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.VerifyAccessToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
