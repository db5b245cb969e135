// Package cache holds search results briefly so repeated queries do not
// burn upstream API quota.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/eyal1999/DealHunt-fullstack-project-sub001/internal/marketplace"
)

// DefaultTTL is how long a result set stays valid unless overridden per call.
const DefaultTTL = 300 * time.Second

type entry struct {
	products  []marketplace.Product
	cachedAt  time.Time
	expiresAt time.Time
}

// Stats is a point-in-time snapshot of cache occupancy.
type Stats struct {
	Total       int `json:"total_entries"`
	Valid       int `json:"valid_entries"`
	Expired     int `json:"expired_entries"`
	ApproxBytes int `json:"approx_size_bytes"`
}

// ResultCache is a mutex-guarded TTL cache keyed by normalized query.
// Expiry is lazy: expired entries read as misses and are removed on that
// read or in bulk via ClearExpired. The lock is held for map operations
// only, never across I/O.
type ResultCache struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	now        func() time.Time
}

func New(defaultTTL time.Duration) *ResultCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &ResultCache{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Key normalizes a query ("Laptop " and "laptop" share one slot) and hashes
// it to a fixed-length fingerprint.
func Key(query string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(query))))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached products for query, or ok=false on miss or expiry.
// The returned slice is a copy; callers may sort or truncate it without
// corrupting the cached payload.
func (c *ResultCache) Get(query string) ([]marketplace.Product, bool) {
	k := Key(query)
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, k)
		return nil, false
	}
	out := make([]marketplace.Product, len(e.products))
	copy(out, e.products)
	return out, true
}

// Set stores products under query with the default TTL.
func (c *ResultCache) Set(query string, products []marketplace.Product) {
	c.SetTTL(query, products, c.defaultTTL)
}

// SetTTL stores products under query with an explicit TTL.
func (c *ResultCache) SetTTL(query string, products []marketplace.Product, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	k := Key(query)
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[k] = entry{
		products:  products,
		cachedAt:  now,
		expiresAt: now.Add(ttl),
	}
}

// ClearExpired removes every expired entry and reports how many were swept.
func (c *ResultCache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// ClearAll drops every entry.
func (c *ResultCache) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

// Stats reports occupancy. ApproxBytes is a JSON-size estimate, not a
// precise heap measurement.
func (c *ResultCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	s := Stats{Total: len(c.entries)}
	for _, e := range c.entries {
		if now.After(e.expiresAt) {
			s.Expired++
			continue
		}
		s.Valid++
		if b, err := json.Marshal(e.products); err == nil {
			s.ApproxBytes += len(b)
		}
	}
	return s
}
