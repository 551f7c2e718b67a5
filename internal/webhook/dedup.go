package webhook

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DedupWindow is how long a delivered message id is remembered.
const DedupWindow = 24 * time.Hour

// Deduplicator reports whether a message id is seen for the first time.
type Deduplicator interface {
	First(ctx context.Context, messageID string) (bool, error)
}

// RedisDeduplicator remembers ids with SET NX EX so redeliveries are dropped
// across API replicas.
type RedisDeduplicator struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduplicator creates a deduplicator using keys "<prefix><id>".
func NewRedisDeduplicator(client *redis.Client, prefix string) *RedisDeduplicator {
	return &RedisDeduplicator{client: client, prefix: prefix, ttl: DedupWindow}
}

func (d *RedisDeduplicator) First(ctx context.Context, messageID string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+messageID, 1, d.ttl).Result()
}

// MemoryDeduplicator is the single-process fallback.
type MemoryDeduplicator struct {
	mu    sync.Mutex
	seen  map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
	sweep time.Time
}

func NewMemoryDeduplicator() *MemoryDeduplicator {
	return &MemoryDeduplicator{seen: make(map[string]time.Time), ttl: DedupWindow, now: time.Now}
}

func (d *MemoryDeduplicator) First(_ context.Context, messageID string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if now.Sub(d.sweep) > time.Minute {
		for id, at := range d.seen {
			if now.Sub(at) > d.ttl {
				delete(d.seen, id)
			}
		}
		d.sweep = now
	}
	if at, ok := d.seen[messageID]; ok && now.Sub(at) <= d.ttl {
		return false, nil
	}
	d.seen[messageID] = now
	return true, nil
}
