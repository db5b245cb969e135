// Package failure tracks consecutive upstream failures per paginated query
// so a broken page stops being retried after a bounded number of attempts.
//
// Upstream pagination occasionally returns transient empty or error pages;
// without a cap a "page until empty" loop can spin forever against a page
// that never recovers. The tracker is a per-(query, page, filters) circuit
// breaker: once the streak reaches the threshold, callers skip the upstream
// call entirely until the failure window expires.
package failure

import (
	"crypto/md5"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultThreshold is the consecutive-failure count that opens the circuit.
	DefaultThreshold = 3
	// DefaultTTL is how long a failure streak is remembered.
	DefaultTTL = 1800 * time.Second
)

type record struct {
	count          int
	firstFailureAt time.Time
	lastFailureAt  time.Time
	expiresAt      time.Time
}

// Tracker counts consecutive failures per (query, page, filters) key.
// A success deletes the key outright; an expired record reads as absent and
// the next failure starts a fresh streak at 1.
type Tracker struct {
	mu        sync.Mutex
	records   map[string]record
	threshold int
	ttl       time.Duration
	now       func() time.Time
}

func New(threshold int, ttl time.Duration) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		records:   make(map[string]record),
		threshold: threshold,
		ttl:       ttl,
		now:       time.Now,
	}
}

func key(query string, page int, filters string) string {
	raw := strings.ToLower(strings.TrimSpace(query)) + ":page:" + strconv.Itoa(page) + filters
	sum := md5.Sum([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// RecordFailure increments the streak for the key and returns the new count.
func (t *Tracker) RecordFailure(query string, page int, filters string) int {
	k := key(query, page, filters)
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	r, ok := t.records[k]
	if !ok || now.After(r.expiresAt) {
		r = record{count: 1, firstFailureAt: now}
	} else {
		r.count++
	}
	r.lastFailureAt = now
	r.expiresAt = now.Add(t.ttl)
	t.records[k] = r
	return r.count
}

// RecordSuccess clears the streak for the key. One success anywhere in the
// window fully resets it.
func (t *Tracker) RecordSuccess(query string, page int, filters string) {
	k := key(query, page, filters)
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, k)
}

// FailureCount returns the current streak, treating expired records as absent.
func (t *Tracker) FailureCount(query string, page int, filters string) int {
	k := key(query, page, filters)
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.records[k]
	if !ok {
		return 0
	}
	if t.now().After(r.expiresAt) {
		delete(t.records, k)
		return 0
	}
	return r.count
}

// ShouldStopPagination reports whether the circuit is open for the key.
func (t *Tracker) ShouldStopPagination(query string, page int, filters string) bool {
	return t.FailureCount(query, page, filters) >= t.threshold
}

// ClearExpired removes expired records and reports how many were swept.
func (t *Tracker) ClearExpired() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for k, r := range t.records {
		if now.After(r.expiresAt) {
			delete(t.records, k)
			removed++
		}
	}
	return removed
}
