package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appidentity "github.com/erp/bff/internal/application/identity"
	"github.com/erp/bff/internal/domain/identity"
)

// AuthService is the session lifecycle used by AuthHandler
type AuthService interface {
	Login(ctx context.Context, input appidentity.LoginInput) (*appidentity.TokenResult, error)
	Logout(ctx context.Context, session *identity.Session) error
	Me(session *identity.Session) appidentity.Profile
	SwitchCompany(ctx context.Context, session *identity.Session, company string) (*appidentity.TokenResult, error)
	Refresh(ctx context.Context, session *identity.Session) (*appidentity.TokenResult, error)
}

// AuthHandler handles login, logout and session requests
type AuthHandler struct {
	BaseHandler
	authService AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// Login godoc
// @Summary      Log in with ERPNext credentials
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "ERPNext credentials"
// @Success      200 {object} dto.Response{data=TokenResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), appidentity.LoginInput{
		User:     req.User,
		Password: req.Password,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tokenResponse(result))
}

// Logout godoc
// @Summary      Close the session and the ERPNext login behind it
// @Tags         auth
// @Produce      json
// @Success      200 {object} dto.Response{data=LogoutResponse}
// @Security     BearerAuth
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	if err := h.authService.Logout(c.Request.Context(), session); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, LogoutResponse{Message: "Logged out"})
}

// Me returns the session owner and the companies they may switch to
func (h *AuthHandler) Me(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	h.Success(c, h.authService.Me(session))
}

// SwitchCompany godoc
// @Summary      Change the active company
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SwitchCompanyRequest true "Company"
// @Success      200 {object} dto.Response{data=TokenResponse}
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /auth/switch-company [post]
func (h *AuthHandler) SwitchCompany(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	var req SwitchCompanyRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.authService.SwitchCompany(c.Request.Context(), session, req.Company)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tokenResponse(result))
}

// Refresh slides the session expiry and returns a new token
func (h *AuthHandler) Refresh(c *gin.Context) {
	session, ok := h.Session(c)
	if !ok {
		return
	}
	result, err := h.authService.Refresh(c.Request.Context(), session)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, tokenResponse(result))
}
