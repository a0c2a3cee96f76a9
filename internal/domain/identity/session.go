package identity

import (
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/erp/bff/internal/domain/shared"
)

// Session is a logged-in SPA user. It owns the upstream ERPNext cookie and
// the company the user is currently working in.
type Session struct {
	ID          string    `json:"id"`
	User        string    `json:"user"`
	FullName    string    `json:"full_name"`
	UpstreamSID string    `json:"upstream_sid"`
	Company     string    `json:"company"`
	Companies   []string  `json:"companies"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// ErrNoCompany is returned when a user may not access any company
var ErrNoCompany = shared.NewDomainError("FORBIDDEN", "User has no company assigned")

// NewSession opens a session; the active company is the first allowed one in name order
func NewSession(user, fullName, upstreamSID string, companies []string, ttl time.Duration, now time.Time) (*Session, error) {
	if user == "" || upstreamSID == "" {
		return nil, shared.Errorf(shared.ErrInvalidInput, "session needs a user and an upstream session")
	}
	allowed := normalizeCompanies(companies)
	if len(allowed) == 0 {
		return nil, ErrNoCompany
	}
	return &Session{
		ID:          uuid.NewString(),
		User:        user,
		FullName:    fullName,
		UpstreamSID: upstreamSID,
		Company:     allowed[0],
		Companies:   allowed,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}, nil
}

func normalizeCompanies(companies []string) []string {
	out := make([]string, 0, len(companies))
	for _, c := range companies {
		if c != "" {
			out = append(out, c)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// CanAccess reports whether company is in the allowed list
func (s *Session) CanAccess(company string) bool {
	_, found := slices.BinarySearch(s.Companies, company)
	return found
}

// SwitchCompany changes the active company
func (s *Session) SwitchCompany(company string) error {
	if !s.CanAccess(company) {
		return shared.Errorf(shared.ErrForbidden, "company %q is not allowed for %s", company, s.User)
	}
	s.Company = company
	return nil
}

// IsExpired reports whether the session is past its expiry
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Extend slides the expiry to now+ttl
func (s *Session) Extend(ttl time.Duration, now time.Time) {
	s.ExpiresAt = now.Add(ttl)
}

// TTL is the remaining lifetime
func (s *Session) TTL(now time.Time) time.Duration {
	return s.ExpiresAt.Sub(now)
}
