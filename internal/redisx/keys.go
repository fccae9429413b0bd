package redisx

import (
	"fmt"
	"time"
)

const (
	// idem:order:create:{user_id}:{idempotency_key} -> "pending" | order_id
	KeyIdemOrderCreate = "idem:order:create:%s:%s"

	// order_status:{order_id} -> {"owner_id": "...", "status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"

	// hash saga:{attempt_id}
	KeySaga = "saga:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLSaga        = 48 * time.Hour
)

func idemKey(userID, key string) string { return fmt.Sprintf(KeyIdemOrderCreate, userID, key) }
func statusKey(orderID string) string { return fmt.Sprintf(KeyOrderStatus, orderID) }
func dedupKey(service, id string) string { return fmt.Sprintf(KeyDedup, service, id) }
func sagaKey(attemptID string) string { return fmt.Sprintf(KeySaga, attemptID) }
