// Package cache holds the process-wide result cache for researcher lookups.
//
// Entries are keyed by the normalized research area and the requested
// result count, expire after a fixed TTL measured from insertion, and are
// bounded in number by an LRU.
package cache

import (
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/helixir/researcher-lookup-service/internal/domain"
)

const (
	// DefaultTTL is how long a cached result stays valid.
	DefaultTTL = time.Hour

	// DefaultMaxEntries bounds the number of cached results.
	DefaultMaxEntries = 256
)

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Config configures a ResultCache.
type Config struct {
	TTL        time.Duration
	MaxEntries int
}

// Key identifies a cached result.
type Key struct {
	Area       string
	MaxResults int
}

// NewKey builds a cache key, normalizing the area so that case and
// whitespace differences share an entry.
func NewKey(area string, maxResults int) Key {
	return Key{Area: domain.NormalizeArea(area), MaxResults: maxResults}
}

// String renders the key for logs.
func (k Key) String() string {
	return fmt.Sprintf("%s|%d", k.Area, k.MaxResults)
}

type entry struct {
	records  []domain.ResearcherRecord
	storedAt time.Time
}

// ResultCache is a size-bounded, time-bounded cache of fetch results.
// It is safe for concurrent use.
type ResultCache struct {
	mu    sync.Mutex
	lru   *lru.Cache[Key, entry]
	ttl   time.Duration
	clock Clock
}

// Option configures a ResultCache.
type Option func(*ResultCache)

// WithClock overrides the time source.
func WithClock(clock Clock) Option {
	return func(c *ResultCache) { c.clock = clock }
}

// New creates a ResultCache, applying defaults for zero config values.
func New(cfg Config, opts ...Option) (*ResultCache, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}

	l, err := lru.New[Key, entry](cfg.MaxEntries)
	if err != nil {
		return nil, fmt.Errorf("create lru: %w", err)
	}

	c := &ResultCache{
		lru:   l,
		ttl:   cfg.TTL,
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// TTL returns the configured expiry.
func (c *ResultCache) TTL() time.Duration {
	return c.ttl
}

// Get returns a copy of the cached records for (area, maxResults).
// Expired entries are evicted and reported as a miss.
func (c *ResultCache) Get(area string, maxResults int) ([]domain.ResearcherRecord, bool) {
	key := NewKey(area, maxResults)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		c.lru.Remove(key)
		return nil, false
	}
	return cloneRecords(e.records), true
}

// Put stores a copy of records for (area, maxResults), replacing any
// previous entry and restarting its expiry.
func (c *ResultCache) Put(area string, maxResults int, records []domain.ResearcherRecord) {
	key := NewKey(area, maxResults)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, entry{records: cloneRecords(records), storedAt: c.clock()})
}

// Purge evicts every expired entry and returns how many were removed.
func (c *ResultCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, key := range c.lru.Keys() {
		e, ok := c.lru.Peek(key)
		if ok && c.expired(e) {
			c.lru.Remove(key)
			removed++
		}
	}
	return removed
}

// Clear drops all entries.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *ResultCache) expired(e entry) bool {
	return c.clock().Sub(e.storedAt) >= c.ttl
}

func cloneRecords(in []domain.ResearcherRecord) []domain.ResearcherRecord {
	if in == nil {
		return nil
	}
	out := make([]domain.ResearcherRecord, len(in))
	copy(out, in)
	return out
}
