// Package issuelock serializes pass issuance per (project, user, period) to
// close the check-then-act window between the quota check and the pass write.
package issuelock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"gatepass/pkg/platform/sentinel"
)

type hold struct {
	token  string
	expiry time.Time
}

// MemoryLock is the single-process implementation. Multi-instance
// deployments use RedisLock.
type MemoryLock struct {
	mu   sync.Mutex
	held map[string]hold
}

func NewMemoryLock() *MemoryLock {
	return &MemoryLock{held: make(map[string]hold)}
}

// Acquire takes the key for at most ttl. Returns sentinel.ErrConflict while
// another holder owns it. Each hold carries its own token, so a stale release
// from an expired holder cannot free a successor's lock.
func (l *MemoryLock) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expiry) {
		return nil, sentinel.ErrConflict
	}
	token := uuid.NewString()
	l.held[key] = hold{token: token, expiry: now.Add(ttl)}

	release := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
	}
	return release, nil
}
