package bulk

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/internal/users"
)

// blockingResolver counts lookups and holds them until released
type blockingResolver struct {
	calls   atomic.Int32
	release chan struct{}
}

func (r *blockingResolver) Resolve(_ context.Context, id string) (users.User, bool) {
	r.calls.Add(1)
	<-r.release
	return users.User{ID: id}, id != "mallory"
}

func TestOwnerCache_ConcurrentMissesShareLookup(t *testing.T) {
	resolver := &blockingResolver{release: make(chan struct{})}
	c := newOwnerCache(resolver, time.Minute)

	var wg sync.WaitGroup
	results := make([]bool, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = c.resolve(context.Background(), "alice")
		}(i)
	}

	require.Eventually(t, func() bool { return resolver.calls.Load() == 1 }, time.Second, time.Millisecond)
	close(resolver.release)
	wg.Wait()

	assert.Equal(t, int32(1), resolver.calls.Load())
	for _, found := range results {
		assert.True(t, found)
	}
}

func TestOwnerCache_RemembersMisses(t *testing.T) {
	resolver := &blockingResolver{release: make(chan struct{})}
	close(resolver.release)
	c := newOwnerCache(resolver, time.Minute)

	for i := 0; i < 3; i++ {
		_, found := c.resolve(context.Background(), "mallory")
		assert.False(t, found)
	}
	assert.Equal(t, int32(1), resolver.calls.Load())
}
