// Package seen tracks which posts a user has already been shown, feeding the
// feed pipeline's seen filter. Tracking is best-effort session state: a Redis
// implementation with TTL'd per-user sets and an in-memory fallback.
package seen

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is how long a user's seen set survives without new impressions.
const DefaultTTL = 24 * time.Hour

// Tracker records surfaced post ids per user and returns the accumulated set.
// Implementations fail open: an unavailable backend yields an empty set and
// never blocks a feed request.
type Tracker interface {
	// Seen returns the set of post ids already surfaced to the user.
	Seen(ctx context.Context, userID string) map[string]bool

	// Mark records post ids as surfaced to the user.
	Mark(ctx context.Context, userID string, postIDs []string)
}

// MemoryTracker is an in-memory Tracker. Thread-safe via RWMutex. Entries
// expire lazily on read.
type MemoryTracker struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

type memoryEntry struct {
	ids     map[string]bool
	expires time.Time
}

// NewMemoryTracker creates an in-memory tracker. A non-positive ttl uses
// DefaultTTL.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryTracker{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Seen returns the user's seen set.
func (t *MemoryTracker) Seen(_ context.Context, userID string) map[string]bool {
	t.mu.RLock()
	entry, ok := t.entries[userID]
	t.mu.RUnlock()

	if !ok || t.now().After(entry.expires) {
		return map[string]bool{}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]bool, len(entry.ids))
	for id := range entry.ids {
		out[id] = true
	}
	return out
}

// Mark records post ids as surfaced, refreshing the entry's TTL.
func (t *MemoryTracker) Mark(_ context.Context, userID string, postIDs []string) {
	if len(postIDs) == 0 {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[userID]
	if !ok || t.now().After(entry.expires) {
		entry = &memoryEntry{ids: make(map[string]bool)}
		t.entries[userID] = entry
	}
	for _, id := range postIDs {
		entry.ids[id] = true
	}
	entry.expires = t.now().Add(t.ttl)
}

// RedisTracker stores seen sets in Redis with a TTL per user. All Redis
// errors fail open: reads return an empty set, writes are dropped, both are
// logged.
type RedisTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTracker creates a Redis-backed tracker. A non-positive ttl uses
// DefaultTTL.
func NewRedisTracker(client *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTracker{client: client, ttl: ttl}
}

func seenKey(userID string) string {
	return "seen:" + userID
}

// Seen returns the user's seen set, or an empty set on Redis errors.
func (t *RedisTracker) Seen(ctx context.Context, userID string) map[string]bool {
	ids, err := t.client.SMembers(ctx, seenKey(userID)).Result()
	if err != nil {
		slog.Warn("seen tracker read failed, returning empty set",
			"user_id", userID,
			"error", err)
		return map[string]bool{}
	}
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

// Mark records post ids as surfaced, refreshing the set's TTL. Errors are
// logged and dropped.
func (t *RedisTracker) Mark(ctx context.Context, userID string, postIDs []string) {
	if len(postIDs) == 0 {
		return
	}
	members := make([]any, len(postIDs))
	for i, id := range postIDs {
		members[i] = id
	}
	key := seenKey(userID)
	pipe := t.client.TxPipeline()
	pipe.SAdd(ctx, key, members...)
	pipe.Expire(ctx, key, t.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		slog.Warn("seen tracker write failed",
			"user_id", userID,
			"error", err)
	}
}
