package lock

import (
	"context"
	"sync"
	"time"
)

// Memory is a single-process lease store. Suitable for tests and one-node
// deployments only; multi-instance setups need the redis or postgres backend.
type Memory struct {
	mu     sync.Mutex
	leases map[string]time.Time
	now    func() time.Time
}

func NewMemory() *Memory {
	return &Memory{leases: make(map[string]time.Time), now: time.Now}
}

func (m *Memory) TryAcquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if exp, ok := m.leases[key]; ok && exp.After(now) {
		return false, nil
	}
	m.leases[key] = now.Add(ttl)

	// Opportunistic sweep so long-lived processes do not accumulate
	// expired keys.
	if len(m.leases) > 1024 {
		for k, exp := range m.leases {
			if !exp.After(now) {
				delete(m.leases, k)
			}
		}
	}
	return true, nil
}
