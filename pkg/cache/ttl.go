package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// TTLCache is an unbounded expiring cache backed by go-cache. Expired items
// are purged by a background janitor.
type TTLCache struct {
	c *gocache.Cache
}

// NewTTLCache creates a TTLCache whose entries live for ttl and are purged
// every cleanup interval.
func NewTTLCache(ttl, cleanup time.Duration) *TTLCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &TTLCache{c: gocache.New(ttl, cleanup)}
}

func (t *TTLCache) Get(key string) (string, bool) {
	v, ok := t.c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func (t *TTLCache) Set(key, value string) {
	t.c.Set(key, value, gocache.DefaultExpiration)
}

func (t *TTLCache) Invalidate(key string) {
	t.c.Delete(key)
}

func (t *TTLCache) Len() int {
	return t.c.ItemCount()
}
