package lock

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres backs leases with a conditional upsert on the shared database.
// The single INSERT ... ON CONFLICT statement is the atomic check-and-set;
// the update arm fires only when the existing lease has expired.
type Postgres struct {
	pool *pgxpool.Pool

	mu       sync.Mutex
	acquires int
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// purgeEvery bounds the table to roughly this many dead rows between sweeps.
const purgeEvery = 256

func (p *Postgres) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	res, err := p.pool.Exec(ctx, `
		INSERT INTO idempotency_leases (key, expires_at)
		VALUES ($1, now() + $2)
		ON CONFLICT (key) DO UPDATE
		SET expires_at = now() + $2
		WHERE idempotency_leases.expires_at <= now()
	`, key, ttl)
	if err != nil {
		return false, err
	}
	p.maybePurge(ctx)
	return res.RowsAffected() > 0, nil
}

// maybePurge drops expired rows every purgeEvery acquisitions so the table
// does not grow without bound. Best effort; a failed purge never affects
// the acquisition that triggered it.
func (p *Postgres) maybePurge(ctx context.Context) {
	if !p.purgeDue() {
		return
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM idempotency_leases WHERE expires_at <= now()`); err != nil {
		log.Printf("lease purge failed: %v", err)
	}
}

func (p *Postgres) purgeDue() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.acquires++
	if p.acquires < purgeEvery {
		return false
	}
	p.acquires = 0
	return true
}
