package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Deduper remembers processed event ids per consuming service.
type Deduper struct {
	RDB     *redis.Client
	Service string
}

// FirstSeen atomically marks id as processed and reports whether this call
// was the first to do so.
func (d *Deduper) FirstSeen(ctx context.Context, id string) (bool, error) {
	return d.RDB.SetNX(ctx, dedupKey(d.Service, id), "1", TTLDedup).Result()
}

// Forget clears the mark so a failed event can be processed again.
func (d *Deduper) Forget(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, dedupKey(d.Service, id)).Err()
}
