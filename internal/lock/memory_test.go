package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGrantAndDeny(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ok, err := m.TryAcquire(ctx, "settle:TX-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.TryAcquire(ctx, "settle:TX-1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "live lease must not be re-granted")

	ok, err = m.TryAcquire(ctx, "settle:TX-2", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok, "different keys are independent")
}

func TestMemoryExpiryRearmsTTL(t *testing.T) {
	m := NewMemory()
	now := time.Now()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := m.TryAcquire(ctx, "k", time.Minute)
	require.True(t, ok)

	now = now.Add(30 * time.Second)
	ok, _ = m.TryAcquire(ctx, "k", time.Minute)
	assert.False(t, ok)

	now = now.Add(31 * time.Second)
	ok, _ = m.TryAcquire(ctx, "k", time.Minute)
	assert.True(t, ok, "expired lease is acquirable")

	// Re-acquisition armed a fresh TTL.
	now = now.Add(59 * time.Second)
	ok, _ = m.TryAcquire(ctx, "k", time.Minute)
	assert.False(t, ok)
}

func TestMemoryConcurrentSingleWinner(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	granted := make(chan bool, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := m.TryAcquire(ctx, "contested", time.Minute)
			require.NoError(t, err)
			granted <- ok
		}()
	}
	wg.Wait()
	close(granted)

	wins := 0
	for ok := range granted {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins, "exactly one goroutine may win the lease")
}
