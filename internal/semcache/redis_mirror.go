package semcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RedisMirror persists put entries to Redis so a fresh process can warm its
// in-memory Cache from the last known-good state instead of starting cold.
// It never participates in Get/Put directly — call Warm once at startup and
// Mirror after every Put that should survive a restart.
type RedisMirror struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

type mirroredEntry struct {
	Query     string    `json:"query"`
	Embedding []float32 `json:"embedding"`
	Result    string    `json:"result"`
	StoredAt  time.Time `json:"stored_at"`
}

// NewRedisMirror dials addr and verifies connectivity. Result values are
// mirrored as opaque JSON strings, so callers whose Result is not already a
// string should marshal it themselves before calling Mirror.
func NewRedisMirror(addr, password string, db int, prefix string, ttl time.Duration) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("semcache redis mirror ping: %w", err)
	}
	if prefix == "" {
		prefix = "semcache"
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisMirror{client: client, prefix: prefix, ttl: ttl}, nil
}

func (m *RedisMirror) key(query string) string {
	return fmt.Sprintf("%s:%s", m.prefix, query)
}

// Mirror writes one cache entry to Redis, keyed by query, so it can be
// replayed into a Cache on the next process start.
func (m *RedisMirror) Mirror(ctx context.Context, query string, embedding []float32, result string) error {
	if m == nil || m.client == nil {
		return nil
	}
	data, err := json.Marshal(mirroredEntry{Query: query, Embedding: embedding, Result: result, StoredAt: time.Now()})
	if err != nil {
		return err
	}
	if err := m.client.Set(ctx, m.key(query), data, m.ttl).Err(); err != nil {
		log.Debug().Err(err).Str("query", query).Msg("semcache_redis_mirror_set_error")
		return err
	}
	return nil
}

// Warm scans every mirrored entry under this mirror's prefix and replays it
// into cache via Put, skipping anything that fails to decode.
func (m *RedisMirror) Warm(ctx context.Context, cache *Cache) (restored int, err error) {
	if m == nil || m.client == nil || cache == nil {
		return 0, nil
	}
	pattern := m.prefix + ":*"
	iter := m.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		val, err := m.client.Get(ctx, iter.Val()).Result()
		if err != nil {
			continue
		}
		var entry mirroredEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			log.Debug().Err(err).Str("key", iter.Val()).Msg("semcache_redis_mirror_unmarshal_error")
			continue
		}
		cache.Put(entry.Query, entry.Embedding, entry.Result)
		restored++
	}
	return restored, iter.Err()
}

// Close closes the underlying Redis client.
func (m *RedisMirror) Close() error {
	if m == nil || m.client == nil {
		return nil
	}
	return m.client.Close()
}
