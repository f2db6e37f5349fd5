// Package semcache implements the C8 semantic cache: a thread-safe,
// LRU+TTL-bounded cache whose lookup also falls back to cosine-similarity
// matching against stored query embeddings when no exact key match exists.
package semcache

import (
	"math"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxSize, DefaultTTL and DefaultSimilarityThreshold mirror the
// defaults this cache was modeled on.
const (
	DefaultMaxSize             = 100
	DefaultTTL                 = 24 * time.Hour
	DefaultSimilarityThreshold = 0.92
)

// Entry is one cached query result, keyed by the raw query string but also
// carrying the query's embedding for the semantic-similarity fallback path.
type Entry struct {
	Query        string
	Embedding    []float32
	Result       any
	Timestamp    time.Time
	AccessCount  int
	LastAccessed time.Time
}

// Stats tracks cache outcomes. All counters are monotonically
// non-decreasing for the lifetime of a Cache.
type Stats struct {
	Hits         int64
	Misses       int64
	Evictions    int64
	Expired      int64
	TotalQueries int64
}

// HitRate returns Hits/TotalQueries, or 0 when no queries have been made.
func (s Stats) HitRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.TotalQueries)
}

// Cache is a thread-safe semantic cache with three lookup modes: exact key
// match (fast path), semantic similarity match (scan fallback), and — for
// either — a miss once an entry has expired. A single mutex guards both the
// LRU container and the statistics counters, matching the original
// implementation's single re-entrant lock.
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, *Entry]
	maxSize   int
	ttl       time.Duration
	threshold float64
	now       func() time.Time
	stats     Stats
}

// New constructs a Cache. maxSize <= 0 means the cache never stores
// anything — every Put is a no-op and every Get is a miss, but statistics
// still count the attempt.
func New(maxSize int, ttl time.Duration, similarityThreshold float64) *Cache {
	c := &Cache{maxSize: maxSize, ttl: ttl, threshold: similarityThreshold, now: time.Now}
	if maxSize > 0 {
		c.lru, _ = lru.New[string, *Entry](maxSize)
	}
	return c
}

func (c *Cache) isExpired(e *Entry) bool {
	return c.now().Sub(e.Timestamp) > c.ttl
}

// Get looks up query first by exact key, then — if absent — by cosine
// similarity of queryEmbedding against every non-expired stored embedding.
// Returns the cached result and true on a hit.
func (c *Cache) Get(query string, queryEmbedding []float32) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.TotalQueries++

	if c.lru == nil {
		c.stats.Misses++
		return nil, false
	}

	if entry, ok := c.lru.Peek(query); ok {
		if c.isExpired(entry) {
			c.lru.Remove(query)
			c.stats.Expired++
			c.stats.Misses++
			return nil, false
		}
		c.touch(query, entry)
		c.stats.Hits++
		return entry.Result, true
	}

	var bestKey string
	var bestEntry *Entry
	bestSimilarity := 0.0
	for _, key := range c.lru.Keys() {
		entry, ok := c.lru.Peek(key)
		if !ok || c.isExpired(entry) {
			continue
		}
		if len(queryEmbedding) > 0 && len(entry.Embedding) != len(queryEmbedding) {
			// Dimension mismatch: treat the stored entry as corrupted and drop it.
			c.lru.Remove(key)
			continue
		}
		sim := cosineSimilarity(queryEmbedding, entry.Embedding)
		if sim > bestSimilarity {
			bestSimilarity = sim
			bestKey = key
			bestEntry = entry
		}
	}

	if bestEntry != nil && bestSimilarity >= c.threshold {
		c.touch(bestKey, bestEntry)
		c.stats.Hits++
		return bestEntry.Result, true
	}

	c.stats.Misses++
	return nil, false
}

func (c *Cache) touch(key string, entry *Entry) {
	entry.AccessCount++
	entry.LastAccessed = c.now()
	c.lru.Get(key) // promotes key to most-recently-used
}

// Put stores result under query, keyed by query and carrying queryEmbedding
// for later semantic lookups. A capacity-0 cache silently discards every
// Put.
func (c *Cache) Put(query string, queryEmbedding []float32, result any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru == nil {
		return
	}
	embedding := make([]float32, len(queryEmbedding))
	copy(embedding, queryEmbedding)
	now := c.now()
	evicted := c.lru.Add(query, &Entry{
		Query:        query,
		Embedding:    embedding,
		Result:       result,
		Timestamp:    now,
		LastAccessed: now,
	})
	if evicted {
		c.stats.Evictions++
	}
}

// Clear removes every entry without affecting statistics.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		c.lru.Purge()
	}
}

// ClearExpired removes every currently-expired entry and returns how many
// were removed.
func (c *Cache) ClearExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru == nil {
		return 0
	}
	var expiredKeys []string
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok && c.isExpired(entry) {
			expiredKeys = append(expiredKeys, key)
		}
	}
	for _, key := range expiredKeys {
		c.lru.Remove(key)
		c.stats.Expired++
	}
	return len(expiredKeys)
}

// GetStats returns a snapshot of the cache's current size and counters.
func (c *Cache) GetStats() (size int, stats Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru != nil {
		size = c.lru.Len()
	}
	return size, c.stats
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
