// Package lock provides short-lived mutual exclusion across BFF replicas.
package lock

import (
	"context"
	"errors"
	"time"
)

// ErrNotObtained is returned when the key is held elsewhere
var ErrNotObtained = errors.New("lock: not obtained")

// Locker obtains named locks
type Locker interface {
	// Obtain acquires key for ttl, retrying briefly while it is held
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// Lock is a held lock
type Lock interface {
	Release(ctx context.Context) error
}

// Guard runs fn while holding key
func Guard(ctx context.Context, l Locker, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	held, err := l.Obtain(ctx, key, ttl)
	if err != nil {
		return err
	}
	// Release on a fresh context so a cancelled request still frees the key.
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = held.Release(releaseCtx)
	}()
	return fn(ctx)
}
