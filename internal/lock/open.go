package lock

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Open selects the lease backend from config. The postgres backend rides
// the existing pool; redis needs its own connection.
func Open(backend, redisURL string, pool *pgxpool.Pool) (Store, error) {
	switch backend {
	case "redis":
		return NewRedis(redisURL)
	case "postgres":
		return NewPostgres(pool), nil
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown lock backend %q", backend)
	}
}
