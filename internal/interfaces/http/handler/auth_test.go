package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	appidentity "github.com/erp/bff/internal/application/identity"
	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/interfaces/http/dto"
)

// MockAuthService is a mock implementation of AuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, input appidentity.LoginInput) (*appidentity.TokenResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appidentity.TokenResult), args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, session *identity.Session) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockAuthService) Me(session *identity.Session) appidentity.Profile {
	args := m.Called(session)
	return args.Get(0).(appidentity.Profile)
}

func (m *MockAuthService) SwitchCompany(ctx context.Context, session *identity.Session, company string) (*appidentity.TokenResult, error) {
	args := m.Called(ctx, session, company)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appidentity.TokenResult), args.Error(1)
}

func (m *MockAuthService) Refresh(ctx context.Context, session *identity.Session) (*appidentity.TokenResult, error) {
	args := m.Called(ctx, session)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appidentity.TokenResult), args.Error(1)
}

func authRouter(svc AuthService, session *identity.Session) *gin.Engine {
	h := NewAuthHandler(svc)
	r := newTestRouter(session)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/me", h.Me)
	r.POST("/auth/switch-company", h.SwitchCompany)
	r.POST("/auth/refresh", h.Refresh)
	return r
}

func tokenResult(company string) *appidentity.TokenResult {
	expires := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &appidentity.TokenResult{
		Token:     "signed.jwt.token",
		ExpiresAt: expires,
		Profile: appidentity.Profile{
			User:      "ana@example.com",
			FullName:  "Ana Gómez",
			Company:   company,
			Companies: []string{"Acme SA", "Beta SA"},
			ExpiresAt: expires,
		},
	}
}

func TestAuthHandler_Login(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, appidentity.LoginInput{User: "ana@example.com", Password: "secret"}).
			Return(tokenResult("Acme SA"), nil)

		w := doRequest(authRouter(svc, nil), http.MethodPost, "/auth/login",
			LoginRequest{User: "ana@example.com", Password: "secret"})

		require.Equal(t, http.StatusOK, w.Code)
		var got TokenResponse
		decodeData(t, w, &got)
		assert.Equal(t, "signed.jwt.token", got.AccessToken)
		assert.Equal(t, "Bearer", got.TokenType)
		assert.Equal(t, "Acme SA", got.User.Company)
		assert.Equal(t, []string{"Acme SA", "Beta SA"}, got.User.Companies)
		svc.AssertExpectations(t)
	})

	t.Run("missing password", func(t *testing.T) {
		svc := new(MockAuthService)
		w := doRequest(authRouter(svc, nil), http.MethodPost, "/auth/login",
			map[string]string{"user": "ana@example.com"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		info := decodeError(t, w)
		assert.Equal(t, dto.ErrCodeValidation, info.Code)
		require.Len(t, info.Details, 1)
		assert.Equal(t, "password", info.Details[0].Field)
		svc.AssertNotCalled(t, "Login", mock.Anything, mock.Anything)
	})

	t.Run("bad credentials", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, mock.Anything).
			Return(nil, shared.Errorf(shared.ErrUnauthorized, "Invalid login credentials"))

		w := doRequest(authRouter(svc, nil), http.MethodPost, "/auth/login",
			LoginRequest{User: "ana@example.com", Password: "wrong"})

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, dto.ErrCodeUnauthorized, decodeError(t, w).Code)
	})

	t.Run("user without company", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("Login", mock.Anything, mock.Anything).Return(nil, identity.ErrNoCompany)

		w := doRequest(authRouter(svc, nil), http.MethodPost, "/auth/login",
			LoginRequest{User: "ana@example.com", Password: "secret"})

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestAuthHandler_Logout(t *testing.T) {
	session := testSession()
	svc := new(MockAuthService)
	svc.On("Logout", mock.Anything, session).Return(nil)

	w := doRequest(authRouter(svc, session), http.MethodPost, "/auth/logout", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got LogoutResponse
	decodeData(t, w, &got)
	assert.Equal(t, "Logged out", got.Message)
	svc.AssertExpectations(t)
}

func TestAuthHandler_Me(t *testing.T) {
	session := testSession()
	svc := new(MockAuthService)
	svc.On("Me", session).Return(tokenResult("Acme SA").Profile)

	w := doRequest(authRouter(svc, session), http.MethodGet, "/auth/me", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got appidentity.Profile
	decodeData(t, w, &got)
	assert.Equal(t, "Ana Gómez", got.FullName)

	t.Run("without session", func(t *testing.T) {
		w := doRequest(authRouter(new(MockAuthService), nil), http.MethodGet, "/auth/me", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAuthHandler_SwitchCompany(t *testing.T) {
	session := testSession()

	t.Run("allowed company", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("SwitchCompany", mock.Anything, session, "Beta SA").Return(tokenResult("Beta SA"), nil)

		w := doRequest(authRouter(svc, session), http.MethodPost, "/auth/switch-company",
			SwitchCompanyRequest{Company: "Beta SA"})

		require.Equal(t, http.StatusOK, w.Code)
		var got TokenResponse
		decodeData(t, w, &got)
		assert.Equal(t, "Beta SA", got.User.Company)
	})

	t.Run("foreign company", func(t *testing.T) {
		svc := new(MockAuthService)
		svc.On("SwitchCompany", mock.Anything, session, "Other SA").
			Return(nil, shared.Errorf(shared.ErrForbidden, "company not allowed"))

		w := doRequest(authRouter(svc, session), http.MethodPost, "/auth/switch-company",
			SwitchCompanyRequest{Company: "Other SA"})

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, dto.ErrCodeForbidden, decodeError(t, w).Code)
	})

	t.Run("empty company", func(t *testing.T) {
		w := doRequest(authRouter(new(MockAuthService), session), http.MethodPost, "/auth/switch-company",
			map[string]string{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthHandler_Refresh(t *testing.T) {
	session := testSession()
	svc := new(MockAuthService)
	svc.On("Refresh", mock.Anything, session).Return(tokenResult("Acme SA"), nil)

	w := doRequest(authRouter(svc, session), http.MethodPost, "/auth/refresh", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got TokenResponse
	decodeData(t, w, &got)
	assert.Equal(t, "signed.jwt.token", got.AccessToken)
	assert.True(t, got.ExpiresAt.Equal(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)))
}
