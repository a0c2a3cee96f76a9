package handler

import (
	"time"

	appidentity "github.com/erp/bff/internal/application/identity"
)

// LoginRequest holds the ERPNext credentials
type LoginRequest struct {
	User     string `json:"user" binding:"required,max=140"`
	Password string `json:"password" binding:"required,max=256"`
}

// SwitchCompanyRequest selects the active company
type SwitchCompanyRequest struct {
	Company string `json:"company" binding:"required"`
}

// TokenResponse is a BFF token and the profile of its session
type TokenResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	ExpiresAt   time.Time           `json:"expires_at"`
	User        appidentity.Profile `json:"user"`
}

// LogoutResponse confirms a logout
type LogoutResponse struct {
	Message string `json:"message"`
}

func tokenResponse(r *appidentity.TokenResult) TokenResponse {
	return TokenResponse{
		AccessToken: r.Token,
		TokenType:   "Bearer",
		ExpiresAt:   r.ExpiresAt,
		User:        r.Profile,
	}
}
