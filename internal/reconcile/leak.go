package reconcile

import (
	"context"
	"time"
)

// Leak is one item whose stock was reduced for an order that was never stored.
type Leak struct {
	AttemptID  string    `json:"attemptId"`
	Position   int       `json:"position"`
	ProductID  string    `json:"productId"`
	Quantity   int       `json:"quantity"`
	OwnerID    string    `json:"ownerId"`
	Stage      string    `json:"stage"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurredAt"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Store keeps leaks for manual reconciliation. Record ignores rows already
// stored for the same attempt and position and returns how many were new.
type Store interface {
	Record(ctx context.Context, leaks []Leak) (int, error)
	List(ctx context.Context, limit int) ([]Leak, error)
}
