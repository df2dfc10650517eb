package cache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/vidstash/api/internal/model"
)

const (
	// DefaultTTL is how long a resolved entry stays servable
	DefaultTTL = 5 * time.Minute
	// DefaultAwaitTimeout bounds LookupAwait when no explicit bound is given
	DefaultAwaitTimeout = 10 * time.Second
)

// Resolver fetches metadata for a resource from the external metadata
// service. A nil result with a nil error is treated as a failure.
type Resolver func(ctx context.Context, resourceID string) (*model.ResourceMetadata, error)

// entry is one cached resource. While fetching is true the entry holds
// single-flight ownership: no second resolver may be started for the
// same resource. ready is closed exactly once, when the fetch resolves
// either way.
type entry struct {
	data      *model.ResourceMetadata
	fetching  bool
	ready     chan struct{}
	timestamp time.Time
}

// MetadataCache maps resource ids to metadata with a fixed TTL and
// deduplicates concurrent lookups. There is no size cap; entries
// self-expire via TTL only.
type MetadataCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration

	now func() time.Time // overridable in tests
}

func NewMetadataCache(ttl time.Duration) *MetadataCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MetadataCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Lookup returns cached metadata if present, ready and not expired.
// Expired entries are evicted as a side effect. Never blocks.
func (c *MetadataCache) Lookup(resourceID string) *model.ResourceMetadata {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookupLocked(resourceID)
}

func (c *MetadataCache) lookupLocked(resourceID string) *model.ResourceMetadata {
	e, ok := c.entries[resourceID]
	if !ok || e.fetching {
		return nil
	}
	if c.now().Sub(e.timestamp) >= c.ttl {
		delete(c.entries, resourceID)
		return nil
	}
	return e.data
}

// LookupAwait behaves like Lookup, but if a fetch for the resource is in
// flight it waits for that fetch to resolve, up to maxWait. Callers
// coalesce onto the one in-flight fetch instead of issuing their own.
// Returns nil if the fetch fails, the entry is absent, or the bound
// elapses.
func (c *MetadataCache) LookupAwait(ctx context.Context, resourceID string, maxWait time.Duration) *model.ResourceMetadata {
	if maxWait <= 0 {
		maxWait = DefaultAwaitTimeout
	}

	c.mu.Lock()
	if data := c.lookupLocked(resourceID); data != nil {
		c.mu.Unlock()
		return data
	}
	e, ok := c.entries[resourceID]
	if !ok || !e.fetching {
		c.mu.Unlock()
		return nil
	}
	ready := e.ready
	c.mu.Unlock()

	timer := time.NewTimer(maxWait)
	defer timer.Stop()

	select {
	case <-ready:
		return c.Lookup(resourceID)
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Prefetch warms the cache for a resource. It is a no-op when an entry
// is already fetching or still fresh. Otherwise it claims single-flight
// ownership and runs the resolver asynchronously; on any failure the
// entry is deleted outright so the next caller re-attempts.
func (c *MetadataCache) Prefetch(ctx context.Context, resourceID string, resolve Resolver) {
	c.mu.Lock()
	if e, ok := c.entries[resourceID]; ok {
		if e.fetching || c.now().Sub(e.timestamp) < c.ttl {
			c.mu.Unlock()
			return
		}
		delete(c.entries, resourceID)
	}
	e := &entry{fetching: true, ready: make(chan struct{})}
	c.entries[resourceID] = e
	c.mu.Unlock()

	go func() {
		data, err := resolve(ctx, resourceID)

		c.mu.Lock()
		// The claim may have been evicted by Clear while we were out
		if cur, ok := c.entries[resourceID]; ok && cur == e {
			if err != nil || data == nil {
				delete(c.entries, resourceID)
			} else {
				e.data = data
				e.fetching = false
				e.timestamp = c.now()
			}
		}
		c.mu.Unlock()

		if err != nil {
			log.Printf("Metadata prefetch failed for %s: %v", resourceID, err)
		}
		close(e.ready)
	}()
}

// Clear drops every entry. In-flight fetches resolve into nothing.
func (c *MetadataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
}

// Len reports the number of entries, fetching ones included
func (c *MetadataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
