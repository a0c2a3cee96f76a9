package cache

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/erp/bff/internal/infrastructure/config"
)

// FactoryOption configures NewStore
type FactoryOption func(*factory)

type factory struct {
	logger                *zap.Logger
	allowInMemoryFallback bool
	janitorInterval       time.Duration
}

// WithLogger sets the logger used to report the chosen backend
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// memory. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *factory) {
		f.allowInMemoryFallback = allow
	}
}

// NewStore returns a RedisStore when Redis is enabled and reachable, else a MemoryStore
func NewStore(ctx context.Context, cfg config.RedisConfig, opts ...FactoryOption) (Store, error) {
	f := &factory{
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		janitorInterval:       time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}

	if !cfg.Enabled {
		f.logger.Info("redis disabled, using in-memory store")
		return NewMemoryStore(f.janitorInterval), nil
	}

	store, err := NewRedisStore(ctx, RedisConfig{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err == nil {
		f.logger.Info("using Redis store", zap.String("addr", cfg.Addr()))
		return store, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory store. "+
		"Sessions will not be shared between replicas.",
		zap.Error(err),
	)
	return NewMemoryStore(f.janitorInterval), nil
}
