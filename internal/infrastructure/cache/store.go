// Package cache provides the key/value store backing sessions and cached
// company profiles. Values are stored as JSON.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyKey is returned for operations on ""
var ErrEmptyKey = errors.New("cache: empty key")

// Store is a TTL key/value store
type Store interface {
	// Get decodes the value at key into dest and reports whether it existed
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value for ttl; ttl <= 0 keeps it until deleted
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// Delete removes key; missing keys are not an error
	Delete(ctx context.Context, key string) error
	Close() error
}
