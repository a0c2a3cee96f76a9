package identity

import "time"

// LoginInput holds the ERPNext credentials typed into the SPA
type LoginInput struct {
	User     string
	Password string
}

// TokenResult is a freshly issued BFF token and the session behind it
type TokenResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   Profile
}

// Profile describes the logged-in user for the SPA
type Profile struct {
	User      string    `json:"user"`
	FullName  string    `json:"full_name"`
	Company   string    `json:"company"`
	Companies []string  `json:"companies"`
	ExpiresAt time.Time `json:"session_expires_at"`
}
