package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/bff/internal/domain/identity"
	"github.com/erp/bff/internal/domain/shared"
	"github.com/erp/bff/internal/infrastructure/cache"
)

// DefaultSessionKeyPrefix namespaces session keys in the shared store
const DefaultSessionKeyPrefix = "bff:session:"

// CacheSessionRepository implements identity.SessionRepository on a cache.Store
type CacheSessionRepository struct {
	store  cache.Store
	prefix string
	now    func() time.Time
}

// NewCacheSessionRepository creates a new CacheSessionRepository
func NewCacheSessionRepository(store cache.Store, prefix string) *CacheSessionRepository {
	if prefix == "" {
		prefix = DefaultSessionKeyPrefix
	}
	return &CacheSessionRepository{store: store, prefix: prefix, now: time.Now}
}

func (r *CacheSessionRepository) key(id string) string {
	return r.prefix + id
}

// Save stores a session until it expires
func (r *CacheSessionRepository) Save(ctx context.Context, s *identity.Session) error {
	if s == nil || s.ID == "" {
		return shared.Errorf(shared.ErrInvalidInput, "session id is required")
	}
	ttl := s.TTL(r.now())
	if ttl <= 0 {
		return shared.Errorf(shared.ErrInvalidState, "session %s already expired", s.ID)
	}
	if err := r.store.Set(ctx, r.key(s.ID), s, ttl); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// FindByID loads a session
func (r *CacheSessionRepository) FindByID(ctx context.Context, id string) (*identity.Session, error) {
	if id == "" {
		return nil, shared.ErrNotFound
	}
	var s identity.Session
	found, err := r.store.Get(ctx, r.key(id), &s)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found || s.IsExpired(r.now()) {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

// Delete removes a session
func (r *CacheSessionRepository) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	if err := r.store.Delete(ctx, r.key(id)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

var _ identity.SessionRepository = (*CacheSessionRepository)(nil)
