// Package lock provides the idempotency lease used to serialize checkout
// creation and settlement per order. A lease is granted only while no
// unexpired lease exists for the key; granting re-arms the TTL.
package lock

import (
	"context"
	"time"
)

type Store interface {
	// TryAcquire atomically grants a lease on key for ttl. It returns false
	// when a live lease is already held, which callers treat as "work
	// already in flight", never as an error.
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}
