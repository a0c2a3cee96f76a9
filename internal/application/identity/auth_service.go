// Package identity logs users into ERPNext and manages BFF sessions.
package identity

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/auth"
	"github.com/erp/bff/internal/infrastructure/erpnext"
	"github.com/erp/bff/internal/infrastructure/logger"
	"github.com/erp/bff/internal/infrastructure/telemetry"
)

const (
	// companyListLimit bounds the company lookups done at login
	companyListLimit = 500
	guestUser        = "Guest"
)

// Upstream is the part of the ERPNext client used for authentication
type Upstream interface {
	Login(ctx context.Context, user, password string) (*erpnext.LoginResult, error)
	Logout(ctx context.Context, sid string) error
	LoggedUser(ctx context.Context, sid string) (string, error)
	GetList(ctx context.Context, sid, doctype string, q erpnext.ListQuery) ([]erpnext.Document, error)
}

// AuthServiceConfig contains configuration for the auth service
type AuthServiceConfig struct {
	SessionTTL time.Duration
}

// AuthService handles authentication operations
type AuthService struct {
	upstream Upstream
	sessions identity.SessionRepository
	tokens   *auth.TokenService
	metrics  *telemetry.BusinessMetrics
	config   AuthServiceConfig
	now      func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(
	upstream Upstream,
	sessions identity.SessionRepository,
	tokens *auth.TokenService,
	metrics *telemetry.BusinessMetrics,
	config AuthServiceConfig,
) *AuthService {
	if config.SessionTTL <= 0 {
		config.SessionTTL = 12 * time.Hour
	}
	return &AuthService{
		upstream: upstream,
		sessions: sessions,
		tokens:   tokens,
		metrics:  metrics,
		config:   config,
		now:      time.Now,
	}
}

// Login authenticates against ERPNext, opens a session and returns a token
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*TokenResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "login")
	defer span.End()
	log := logger.L(ctx).With(zap.String("user", input.User))

	if input.User == "" || input.Password == "" {
		s.metrics.RecordLogin("failure")
		return nil, shared.Errorf(shared.ErrInvalidInput, "user and password are required")
	}

	upstream, err := s.upstream.Login(ctx, input.User, input.Password)
	if err != nil {
		s.metrics.RecordLogin("failure")
		if errors.Is(err, erpnext.ErrUnauthorized) {
			log.Warn("Invalid credentials")
			return nil, shared.Wrap(shared.ErrUnauthorized, "Invalid username or password", err)
		}
		log.Error("Upstream login failed", zap.Error(err))
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}

	// The login name may be a username or mobile number; permissions are keyed by user id.
	userID, err := s.upstream.LoggedUser(ctx, upstream.SessionID)
	if err == nil && (userID == "" || userID == guestUser) {
		err = shared.Errorf(shared.ErrUpstreamUnavailable, "upstream session has no user")
	}
	if err != nil {
		s.metrics.RecordLogin("failure")
		s.closeUpstream(ctx, upstream.SessionID)
		log.Error("Failed to resolve logged user", zap.Error(err))
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}
	if userID != input.User {
		log = log.With(zap.String("user_id", userID))
	}

	companies, err := s.allowedCompanies(ctx, upstream.SessionID, userID)
	if err != nil {
		s.metrics.RecordLogin("failure")
		s.closeUpstream(ctx, upstream.SessionID)
		log.Error("Failed to load allowed companies", zap.Error(err))
		return nil, telemetry.RecordError(span, erpnext.AsDomainError(err))
	}

	session, err := identity.NewSession(userID, upstream.FullName, upstream.SessionID, companies, s.config.SessionTTL, s.now())
	if err != nil {
		s.metrics.RecordLogin("failure")
		s.closeUpstream(ctx, upstream.SessionID)
		log.Warn("Login rejected", zap.Error(err))
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.metrics.RecordLogin("failure")
		s.closeUpstream(ctx, upstream.SessionID)
		log.Error("Failed to store session", zap.Error(err))
		return nil, telemetry.RecordError(span, err)
	}

	result, err := s.issue(session)
	if err != nil {
		s.metrics.RecordLogin("failure")
		return nil, telemetry.RecordError(span, err)
	}

	s.metrics.RecordLogin("success")
	log.Info("User logged in",
		zap.String("company", session.Company),
		zap.Int("companies", len(session.Companies)))
	return result, nil
}

// allowedCompanies reads the user's Company permissions; without any the
// user may access every company.
func (s *AuthService) allowedCompanies(ctx context.Context, sid, user string) ([]string, error) {
	perms, err := s.upstream.GetList(ctx, sid, "User Permission", erpnext.ListQuery{
		Fields: []string{"for_value"},
		Filters: []erpnext.Filter{
			erpnext.Eq("user", user),
			erpnext.Eq("allow", "Company"),
		},
		PageLength: companyListLimit,
	})
	if err != nil {
		return nil, err
	}
	companies := make([]string, 0, len(perms))
	for _, p := range perms {
		if v := p.String("for_value"); v != "" {
			companies = append(companies, v)
		}
	}
	if len(companies) > 0 {
		return companies, nil
	}

	docs, err := s.upstream.GetList(ctx, sid, "Company", erpnext.ListQuery{
		Fields:     []string{"name"},
		OrderBy:    "name asc",
		PageLength: companyListLimit,
	})
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		companies = append(companies, d.Name())
	}
	return companies, nil
}

func (s *AuthService) closeUpstream(ctx context.Context, sid string) {
	if err := s.upstream.Logout(ctx, sid); err != nil {
		logger.L(ctx).Warn("Upstream logout failed", zap.Error(err))
	}
}

func (s *AuthService) issue(session *identity.Session) (*TokenResult, error) {
	token, expiresAt, err := s.tokens.Issue(session.ID, session.User, session.Company)
	if err != nil {
		return nil, err
	}
	// The token never outlives its session.
	if expiresAt.After(session.ExpiresAt) {
		expiresAt = session.ExpiresAt
	}
	return &TokenResult{Token: token, ExpiresAt: expiresAt, Profile: s.Me(session)}, nil
}

// Logout ends the upstream session and deletes the BFF one. Upstream
// failures are logged only; the BFF session is removed regardless.
func (s *AuthService) Logout(ctx context.Context, session *identity.Session) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "logout")
	defer span.End()

	s.closeUpstream(ctx, session.UpstreamSID)
	if err := s.sessions.Delete(ctx, session.ID); err != nil {
		return telemetry.RecordError(span, err)
	}
	logger.L(ctx).Info("User logged out", zap.String("user", session.User))
	return nil
}

// Me describes the session owner
func (s *AuthService) Me(session *identity.Session) Profile {
	return Profile{
		User:      session.User,
		FullName:  session.FullName,
		Company:   session.Company,
		Companies: append([]string(nil), session.Companies...),
		ExpiresAt: session.ExpiresAt,
	}
}

// SwitchCompany changes the active company and returns a token for it
func (s *AuthService) SwitchCompany(ctx context.Context, session *identity.Session, company string) (*TokenResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "switch_company", telemetry.SpanAttrCompany, company)
	defer span.End()

	previous := session.Company
	if err := session.SwitchCompany(company); err != nil {
		return nil, err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		session.Company = previous
		return nil, telemetry.RecordError(span, err)
	}
	logger.L(ctx).Info("Company switched",
		zap.String("user", session.User),
		zap.String("from", previous),
		zap.String("to", company))
	return s.issue(session)
}

// Resolve loads the session referenced by validated token claims
func (s *AuthService) Resolve(ctx context.Context, claims *auth.Claims) (*identity.Session, error) {
	session, err := s.sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.Errorf(shared.ErrUnauthorized, "session expired")
		}
		return nil, err
	}
	if session.IsExpired(s.now()) {
		return nil, shared.Errorf(shared.ErrUnauthorized, "session expired")
	}
	if session.User != claims.User || session.Company != claims.Company {
		return nil, shared.Errorf(shared.ErrUnauthorized, "token does not match the session")
	}
	return session, nil
}

// Refresh slides the session expiry and issues a new token
func (s *AuthService) Refresh(ctx context.Context, session *identity.Session) (*TokenResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "refresh")
	defer span.End()

	session.Extend(s.config.SessionTTL, s.now())
	if err := s.sessions.Save(ctx, session); err != nil {
		return nil, telemetry.RecordError(span, err)
	}
	return s.issue(session)
}
