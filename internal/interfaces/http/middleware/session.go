package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/auth"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
	"github.com/erp/bff/internal/interfaces/http/dto"
)

// Session context keys
const (
	SessionKey    = "bff_session"
	ClaimsKey     = "bff_claims"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
)

// TokenValidator validates BFF tokens
type TokenValidator interface {
	Validate(token string) (*auth.Claims, error)
}

// SessionResolver loads the session behind validated claims
type SessionResolver interface {
	Resolve(ctx context.Context, claims *auth.Claims) (*identity.Session, error)
}

// SessionAuthConfig configures SessionAuth
type SessionAuthConfig struct {
	Tokens   TokenValidator
	Sessions SessionResolver
	// SkipPaths are served without a session
	SkipPaths []string
	// SkipPathPrefixes are served without a session
	SkipPathPrefixes []string
}

// SessionAuth requires a Bearer token referencing a live session. The session
// is stored in the gin context and the request logger gains user and company.
func SessionAuth(cfg SessionAuthConfig) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if _, ok := skip[path]; ok || c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}
		for _, prefix := range cfg.SkipPathPrefixes {
			if strings.HasPrefix(path, prefix) {
				c.Next()
				return
			}
		}

		header := c.GetHeader(AuthHeaderKey)
		token, found := strings.CutPrefix(header, BearerPrefix)
		if !found || strings.TrimSpace(token) == "" {
			unauthorized(c, dto.ErrCodeUnauthorized, "Authentication required", nil)
			return
		}

		claims, err := cfg.Tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				unauthorized(c, dto.ErrCodeTokenExpired, "Token has expired", err)
			} else {
				unauthorized(c, dto.ErrCodeTokenInvalid, "Invalid token", err)
			}
			return
		}

		ctx := c.Request.Context()
		session, err := cfg.Sessions.Resolve(ctx, claims)
		if err != nil {
			if errors.Is(err, shared.ErrUnauthorized) {
				unauthorized(c, dto.ErrCodeUnauthorized, "Session expired", err)
				return
			}
			logger.L(ctx).Error("Session lookup failed", zap.Error(err))
			abort(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
			return
		}

		ctx = logger.WithSession(ctx, session.User, session.Company)
		c.Request = c.Request.WithContext(ctx)
		c.Set(logger.GinLoggerKey, logger.FromContext(ctx))
		c.Set(ClaimsKey, claims)
		c.Set(SessionKey, session)

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.String(SpanAttrUser, session.User),
				attribute.String(telemetry.SpanAttrCompany, session.Company),
			)
		}

		c.Next()
	}
}

func unauthorized(c *gin.Context, code, message string, err error) {
	if err != nil {
		logger.L(c.Request.Context()).Debug("Authentication failed",
			zap.String("code", code),
			zap.Error(err))
	}
	abort(c, http.StatusUnauthorized, code, message)
}

// GetSession returns the session stored by SessionAuth, or nil
func GetSession(c *gin.Context) *identity.Session {
	if v, ok := c.Get(SessionKey); ok {
		if s, ok := v.(*identity.Session); ok {
			return s
		}
	}
	return nil
}

// GetClaims returns the token claims stored by SessionAuth, or nil
func GetClaims(c *gin.Context) *auth.Claims {
	if v, ok := c.Get(ClaimsKey); ok {
		if claims, ok := v.(*auth.Claims); ok {
			return claims
		}
	}
	return nil
}
