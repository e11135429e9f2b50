package lock

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs leases with SET NX PX, the conditional write every instance
// of the service shares.
type Redis struct {
	client *redis.Client
}

func NewRedis(url string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &Redis{client: redis.NewClient(opts)}, nil
}

func (r *Redis) TryAcquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return r.client.SetNX(ctx, "lease:"+key, "1", ttl).Result()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
