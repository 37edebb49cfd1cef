package recurrence

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CacheEntry represents a cached expansion result
type CacheEntry struct {
	Occurrences []TimeRange
	ExpiresAt   time.Time
	AccessedAt  time.Time
}

// RecurrenceCache caches expansion results keyed by anchor, rule and window
type RecurrenceCache struct {
	entries         map[string]*CacheEntry
	mutex           sync.RWMutex
	ttl             time.Duration
	maxEntries      int
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once

	hits   uint64
	misses uint64
}

// CacheConfig holds configuration for the recurrence cache
type CacheConfig struct {
	TTL             time.Duration `yaml:"ttl"`              // How long entries stay valid
	MaxEntries      int           `yaml:"max_entries"`      // Maximum number of entries before cleanup
	CleanupInterval time.Duration `yaml:"cleanup_interval"` // How often to run cleanup
}

// DefaultCacheConfig provides sensible defaults for recurrence caching
var DefaultCacheConfig = CacheConfig{
	TTL:             15 * time.Minute,
	MaxEntries:      1000,
	CleanupInterval: 5 * time.Minute,
}

// NewRecurrenceCache creates a new recurrence cache with the given configuration
func NewRecurrenceCache(config CacheConfig) *RecurrenceCache {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}
	cache := &RecurrenceCache{
		entries:         make(map[string]*CacheEntry),
		ttl:             config.TTL,
		maxEntries:      config.MaxEntries,
		cleanupInterval: config.CleanupInterval,
		stopCleanup:     make(chan struct{}),
	}

	go cache.cleanupLoop()

	return cache
}

// generateCacheKey hashes every input that influences an expansion
func (c *RecurrenceCache) generateCacheKey(anchor TimeRange, rule Rule, window TimeRange) string {
	hasher := sha256.New()

	for _, t := range []time.Time{anchor.Start, anchor.End, window.Start, window.End} {
		hasher.Write([]byte(t.UTC().Format(time.RFC3339Nano)))
	}

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], rule.Interval)
	hasher.Write([]byte{byte(rule.Kind), byte(rule.WeekMap)})
	if rule.ByDay {
		hasher.Write([]byte{1})
	} else {
		hasher.Write([]byte{0})
	}
	hasher.Write(buf[:])
	hasher.Write([]byte(rule.Termination.String()))

	return fmt.Sprintf("%x", hasher.Sum(nil))
}

// Get retrieves a cached expansion if it exists and hasn't expired
func (c *RecurrenceCache) Get(anchor TimeRange, rule Rule, window TimeRange) ([]TimeRange, bool) {
	key := c.generateCacheKey(anchor, rule, window)

	// Hit counters and access times are written, so take the write lock.
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entry, exists := c.entries[key]
	if !exists {
		c.misses++
		return nil, false
	}

	now := time.Now()
	if now.After(entry.ExpiresAt) {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	entry.AccessedAt = now
	c.hits++

	return entry.Occurrences, true
}

// Set stores an expansion in the cache
func (c *RecurrenceCache) Set(anchor TimeRange, rule Rule, window TimeRange, occurrences []TimeRange) {
	key := c.generateCacheKey(anchor, rule, window)
	now := time.Now()

	entry := &CacheEntry{
		Occurrences: occurrences,
		ExpiresAt:   now.Add(c.ttl),
		AccessedAt:  now,
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries[key] = entry

	if len(c.entries) > c.maxEntries {
		c.cleanup()
	}
}

// cleanup removes expired entries and the least recently used ones if over limit
func (c *RecurrenceCache) cleanup() {
	now := time.Now()

	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type keyAccess struct {
		key        string
		accessedAt time.Time
	}

	keyAccessList := make([]keyAccess, 0, len(c.entries))
	for key, entry := range c.entries {
		keyAccessList = append(keyAccessList, keyAccess{key: key, accessedAt: entry.AccessedAt})
	}
	sort.Slice(keyAccessList, func(i, j int) bool {
		return keyAccessList[i].accessedAt.Before(keyAccessList[j].accessedAt)
	})

	entriesToRemove := len(c.entries) - c.maxEntries
	for i := 0; i < entriesToRemove && i < len(keyAccessList); i++ {
		delete(c.entries, keyAccessList[i].key)
	}
}

// cleanupLoop runs periodic cleanup
func (c *RecurrenceCache) cleanupLoop() {
	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.mutex.Lock()
			c.cleanup()
			c.mutex.Unlock()
		case <-c.stopCleanup:
			return
		}
	}
}

// Close stops the cleanup goroutine and clears the cache. It is safe to call more than once.
func (c *RecurrenceCache) Close() {
	c.closeOnce.Do(func() {
		close(c.stopCleanup)
	})
	c.mutex.Lock()
	c.entries = make(map[string]*CacheEntry)
	c.mutex.Unlock()
}

// Stats returns cache statistics
func (c *RecurrenceCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entryCount := len(c.entries)
	expiredCount := 0
	now := time.Now()

	for _, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			expiredCount++
		}
	}

	return CacheStats{
		TotalEntries:   entryCount,
		ExpiredEntries: expiredCount,
		ActiveEntries:  entryCount - expiredCount,
		Hits:           c.hits,
		Misses:         c.misses,
	}
}

// CacheStats provides information about cache performance
type CacheStats struct {
	TotalEntries   int
	ExpiredEntries int
	ActiveEntries  int
	Hits           uint64
	Misses         uint64
}
