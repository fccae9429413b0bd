package orders

import (
	"context"
	"time"
)

// Store is the durable record of committed orders. Create writes the order
// and its items as one unit. Lists are newest first, ties broken by id.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Order, error)
	ListAll(ctx context.Context) ([]Order, error)
	// UpdateStatus applies next under policy and returns the updated order
	// together with the status it had before.
	UpdateStatus(ctx context.Context, id string, next Status, policy TransitionPolicy, at time.Time) (*Order, Status, error)
}
