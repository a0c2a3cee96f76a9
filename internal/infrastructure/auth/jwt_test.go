package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/bff/internal/infrastructure/config"
)

func newTestTokenService() *TokenService {
	return NewTokenService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		AccessTokenExpiration: 15 * time.Minute,
		Issuer:                "test-issuer",
	})
}

func TestTokenService_IssueAndValidate(t *testing.T) {
	svc := newTestTokenService()

	token, expiresAt, err := svc.Issue("session-1", "jane@acme.com", "ACME SA")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "session-1", claims.SessionID)
	assert.Equal(t, "jane@acme.com", claims.User)
	assert.Equal(t, "jane@acme.com", claims.Subject)
	assert.Equal(t, "ACME SA", claims.Company)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
}

func TestTokenService_IssueRequiresSessionAndUser(t *testing.T) {
	svc := newTestTokenService()

	_, _, err := svc.Issue("", "jane", "ACME")
	assert.ErrorIs(t, err, ErrMissingSession)

	_, _, err = svc.Issue("s", "", "ACME")
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestTokenService_Validate(t *testing.T) {
	svc := newTestTokenService()
	valid, _, err := svc.Issue("session-1", "jane", "ACME")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		past := newTestTokenService()
		past.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, _, err := past.Issue("session-1", "jane", "ACME")
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		future := newTestTokenService()
		future.now = func() time.Time { return time.Now().Add(time.Hour) }
		token, _, err := future.Issue("session-1", "jane", "ACME")
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewTokenService(config.JWTConfig{Secret: "another-secret-key-at-least-32-chars", Issuer: "test-issuer"})
		_, err := other.Validate(valid)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := NewTokenService(config.JWTConfig{Secret: "test-secret-key-at-least-32-chars", Issuer: "someone-else"})
		_, err := other.Validate(valid)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("alg none is rejected", func(t *testing.T) {
		claims := &Claims{SessionID: "s", User: "jane"}
		token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := svc.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing session id", func(t *testing.T) {
		claims := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				Audience:  jwt.ClaimStrings{"test-issuer"},
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			},
			User: "jane",
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
		require.NoError(t, err)

		_, err = svc.Validate(token)
		assert.ErrorIs(t, err, ErrMissingSession)
	})
}

func TestNewTokenService_RandomSecretWhenEmpty(t *testing.T) {
	a := NewTokenService(config.JWTConfig{})
	b := NewTokenService(config.JWTConfig{})

	token, _, err := a.Issue("s", "jane", "")
	require.NoError(t, err)

	_, err = a.Validate(token)
	require.NoError(t, err)
	_, err = b.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
	assert.Equal(t, 12*time.Hour, a.Expiration())
}
