package bulk

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/sirosfoundation/go-smp/internal/users"
)

// ownerCache memoises owner lookups for the duration of an import,
// including misses. Concurrent misses for one ID share a single lookup.
type ownerCache struct {
	resolver users.Resolver
	cache    *cache.Cache
	group    singleflight.Group
}

type ownerLookup struct {
	user  users.User
	found bool
}

func newOwnerCache(resolver users.Resolver, ttl time.Duration) *ownerCache {
	return &ownerCache{
		resolver: resolver,
		cache:    cache.New(ttl, 2*ttl),
	}
}

func (c *ownerCache) resolve(ctx context.Context, id string) (users.User, bool) {
	if v, ok := c.cache.Get(id); ok {
		l := v.(ownerLookup)
		return l.user, l.found
	}
	v, _, _ := c.group.Do(id, func() (any, error) {
		if v, ok := c.cache.Get(id); ok {
			return v, nil
		}
		u, found := c.resolver.Resolve(ctx, id)
		l := ownerLookup{user: u, found: found}
		c.cache.SetDefault(id, l)
		return l, nil
	})
	l := v.(ownerLookup)
	return l.user, l.found
}

// acceptAll resolves every non-empty ID; used when no user directory is
// configured
type acceptAll struct{}

func (acceptAll) Resolve(_ context.Context, id string) (users.User, bool) {
	if id == "" {
		return users.User{}, false
	}
	return users.User{ID: id}, true
}
