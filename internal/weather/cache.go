package weather

import (
	"sync"
	"time"

	"code.cloudfoundry.org/clock"
	"github.com/rs/zerolog"
)

// DefaultCacheTTL is the default maximum age of a cached observation.
const DefaultCacheTTL = 30 * time.Minute

// CacheConfig holds configuration for ObservationCache.
type CacheConfig struct {
	// TTL is the maximum age of a fresh entry. An entry whose age is equal to
	// or greater than TTL is expired, so a zero TTL makes every entry a miss.
	TTL time.Duration

	// Clock stamps entries and measures their age (default: wall clock).
	Clock clock.Clock

	// Logger for eviction events.
	Logger zerolog.Logger
}

// DefaultCacheConfig returns a 30 minute TTL on the wall clock.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{TTL: DefaultCacheTTL}
}

// CacheStats is a snapshot of the cache. Expired counts entries that would be
// evicted if read now but have not been swept yet.
type CacheStats struct {
	Total     int           `json:"total"`
	Active    int           `json:"active"`
	Expired   int           `json:"expired"`
	TTL       time.Duration `json:"-"`
	Hits      uint64        `json:"hits"`
	Misses    uint64        `json:"misses"`
	Evictions uint64        `json:"evictions"`
}

type cacheEntry struct {
	observation *Observation
	cachedAt    time.Time
}

// ObservationCache keeps the most recent valid observation per location key.
// Expiry is checked lazily on read; ClearExpired sweeps proactively. All
// methods are safe for concurrent use.
type ObservationCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   clock.Clock
	logger  zerolog.Logger

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewObservationCache creates an empty cache. A negative TTL is treated as zero.
func NewObservationCache(cfg CacheConfig) *ObservationCache {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewClock()
	}
	ttl := cfg.TTL
	if ttl < 0 {
		ttl = 0
	}

	return &ObservationCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clk,
		logger:  cfg.Logger.With().Str("component", "cache").Logger(),
	}
}

// TTL returns the configured time-to-live.
func (c *ObservationCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached observation for loc. An expired entry is evicted and
// reported as a miss.
func (c *ObservationCache) Get(loc Location) (*Observation, bool) {
	obs, _, ok := c.Lookup(loc)
	return obs, ok
}

// Lookup is Get that also returns when the entry was cached.
func (c *ObservationCache) Lookup(loc Location) (*Observation, time.Time, bool) {
	key := loc.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, time.Time{}, false
	}
	if c.expired(entry, c.clock.Now()) {
		delete(c.entries, key)
		c.evictions++
		c.misses++
		c.logger.Debug().Str("key", key).Msg("evicted expired entry on read")
		return nil, time.Time{}, false
	}

	c.hits++
	return entry.observation, entry.cachedAt, true
}

// Set stores obs under loc's key, replacing any existing entry. A nil
// observation is ignored.
func (c *ObservationCache) Set(loc Location, obs *Observation) {
	if obs == nil {
		return
	}
	entry := cacheEntry{observation: obs, cachedAt: c.clock.Now()}

	c.mu.Lock()
	c.entries[loc.Key()] = entry
	c.mu.Unlock()
}

// Clear removes every entry and returns how many were removed.
func (c *ObservationCache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]cacheEntry)
	c.evictions += uint64(n)
	return n
}

// ClearExpired evicts every expired entry and returns how many were removed.
func (c *ObservationCache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()
	removed := 0
	for key, entry := range c.entries {
		if c.expired(entry, now) {
			delete(c.entries, key)
			removed++
		}
	}
	c.evictions += uint64(removed)

	if removed > 0 {
		c.logger.Debug().Int("removed", removed).Msg("swept expired entries")
	}
	return removed
}

// Stats returns a snapshot without evicting anything.
func (c *ObservationCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.clock.Now()
	stats := CacheStats{
		Total:     len(c.entries),
		TTL:       c.ttl,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	for _, entry := range c.entries {
		if c.expired(entry, now) {
			stats.Expired++
		}
	}
	stats.Active = stats.Total - stats.Expired
	return stats
}

func (c *ObservationCache) expired(e cacheEntry, now time.Time) bool {
	return now.Sub(e.cachedAt) >= c.ttl
}
