package redisx

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// IdemPending marks a key whose first request has not finished yet.
const IdemPending = "pending"

// Idempotency stores POST /orders idempotency keys per user.
type Idempotency struct {
	RDB *redis.Client
}

// Begin claims the key. When another request already holds it, claimed is
// false and value is either IdemPending or the stored order id.
func (i *Idempotency) Begin(ctx context.Context, userID, key string) (value string, claimed bool, err error) {
	k := idemKey(userID, key)
	ok, err := i.RDB.SetNX(ctx, k, IdemPending, TTLIdempotency).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.RDB.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between SETNX and GET; treat as still in flight
		return IdemPending, false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, userID, key, orderID string) error {
	return i.RDB.Set(ctx, idemKey(userID, key), orderID, TTLIdempotency).Err()
}

// Release drops the key so a failed attempt can be retried.
func (i *Idempotency) Release(ctx context.Context, userID, key string) error {
	return i.RDB.Del(ctx, idemKey(userID, key)).Err()
}
