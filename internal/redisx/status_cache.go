package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type StatusEntry struct {
	OwnerID   string    `json:"owner_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusCache keeps the latest order status for cheap polling.
type StatusCache struct {
	RDB *redis.Client
}

func (c *StatusCache) Get(ctx context.Context, orderID string) (StatusEntry, bool, error) {
	b, err := c.RDB.Get(ctx, statusKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return StatusEntry{}, false, nil
	}
	if err != nil {
		return StatusEntry{}, false, err
	}
	var e StatusEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return StatusEntry{}, false, err
	}
	return e, true, nil
}

func (c *StatusCache) Set(ctx context.Context, orderID string, e StatusEntry) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return c.RDB.Set(ctx, statusKey(orderID), b, TTLStatusCache).Err()
}

// Delete drops the entry so the next read refills it from the store.
func (c *StatusCache) Delete(ctx context.Context, orderID string) error {
	return c.RDB.Del(ctx, statusKey(orderID)).Err()
}
