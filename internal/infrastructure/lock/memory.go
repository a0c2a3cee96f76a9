package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLocker is a process-local Locker
type MemoryLocker struct {
	mu       sync.Mutex
	held     map[string]memoryHold
	interval time.Duration
	attempts int
}

type memoryHold struct {
	token     string
	expiresAt time.Time
}

// NewMemoryLocker creates an in-process locker
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		held:     make(map[string]memoryHold),
		interval: retryInterval,
		attempts: retryAttempts,
	}
}

// Obtain implements Locker
func (l *MemoryLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	token := uuid.NewString()
	for attempt := 0; ; attempt++ {
		if l.tryObtain(key, token, ttl) {
			return &memoryLock{locker: l, key: key, token: token}, nil
		}
		if attempt >= l.attempts {
			return nil, ErrNotObtained
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

func (l *MemoryLocker) tryObtain(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if h, ok := l.held[key]; ok && now.Before(h.expiresAt) {
		return false
	}
	l.held[key] = memoryHold{token: token, expiresAt: now.Add(ttl)}
	return true
}

func (l *MemoryLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.held[key]; ok && h.token == token {
		delete(l.held, key)
	}
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  string
}

func (l *memoryLock) Release(context.Context) error {
	l.locker.release(l.key, l.token)
	return nil
}

var _ Locker = (*MemoryLocker)(nil)
