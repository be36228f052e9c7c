package billing

import (
	"context"
	"time"
)

// EventDeduplicator remembers processed webhook event ids. It is an
// optimisation only: replaying an event yields the same decision anyway.
type EventDeduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Remember(ctx context.Context, eventID string) error
}

// KeyValueStore is the subset of the Redis client the deduplicator needs
type KeyValueStore interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
}

const (
	defaultDedupPrefix = "lunchbox:webhook:event"
	defaultDedupTTL    = 72 * time.Hour
)

// RedisDeduplicator keeps processed event ids in Redis with a TTL
type RedisDeduplicator struct {
	kv     KeyValueStore
	prefix string
	ttl    time.Duration
}

// NewRedisDeduplicator creates a deduplicator. A zero ttl uses 72 hours.
func NewRedisDeduplicator(kv KeyValueStore, ttl time.Duration) *RedisDeduplicator {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &RedisDeduplicator{kv: kv, prefix: defaultDedupPrefix, ttl: ttl}
}

func (d *RedisDeduplicator) key(eventID string) string {
	return d.prefix + ":" + eventID
}

// Seen reports whether eventID was already processed
func (d *RedisDeduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	return d.kv.Exists(ctx, d.key(eventID))
}

// Remember marks eventID as processed
func (d *RedisDeduplicator) Remember(ctx context.Context, eventID string) error {
	_, err := d.kv.SetNX(ctx, d.key(eventID), time.Now().Unix(), d.ttl)
	return err
}

// noopDeduplicator is used when Redis is not configured
type noopDeduplicator struct{}

func (noopDeduplicator) Seen(context.Context, string) (bool, error) { return false, nil }
func (noopDeduplicator) Remember(context.Context, string) error     { return nil }
