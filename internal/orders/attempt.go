package orders

import (
	"context"
	"encoding/json"
	"time"
)

// AttemptState is the coordinator's progress through one createOrder call.
type AttemptState string

const (
	StateStarted           AttemptState = "STARTED"
	StateItemsReserving    AttemptState = "ITEMS_RESERVING"
	StateReserved          AttemptState = "RESERVED"
	StatePersisting        AttemptState = "PERSISTING"
	StateCommitted         AttemptState = "COMMITTED"
	StateReservationFailed AttemptState = "RESERVATION_FAILED"
	StatePersistFailed     AttemptState = "PERSIST_FAILED"
)

func (s AttemptState) Terminal() bool {
	return s == StateCommitted || s == StateReservationFailed || s == StatePersistFailed
}

// Reservation is one successful stock reduction. Position is 1-based.
type Reservation struct {
	Position  int    `json:"position"`
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Remaining int    `json:"remaining"`
}

type Failure struct {
	Index     int    `json:"index"`
	ProductID string `json:"productId,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	Reason    string `json:"reason"`
}

type Attempt struct {
	ID         string        `json:"id"`
	OwnerID    string        `json:"ownerId"`
	State      AttemptState  `json:"state"`
	Reserved   []Reservation `json:"reserved"`
	Failure    *Failure      `json:"failure,omitempty"`
	OrderID    string        `json:"orderId,omitempty"`
	StartedAt  time.Time     `json:"startedAt"`
	FinishedAt time.Time     `json:"finishedAt,omitempty"`
}

// Outcome is returned on success and on failure, so callers can see what
// was reserved before the attempt stopped.
type Outcome struct {
	Order   *Order
	Attempt Attempt
}

// Leaked reports whether stock was reduced for an order that was never stored.
func (o *Outcome) Leaked() bool {
	return o != nil && o.Order == nil && len(o.Attempt.Reserved) > 0
}

// AttemptLog persists attempt snapshots; redisx.SagaLog implements it.
type AttemptLog interface {
	Record(ctx context.Context, attemptID string, fields map[string]any) error
}

func (a *Attempt) fields() map[string]any {
	reserved, _ := json.Marshal(a.Reserved)
	f := map[string]any{
		"state":      string(a.State),
		"owner_id":   a.OwnerID,
		"reserved":   string(reserved),
		"started_at": a.StartedAt.Format(time.RFC3339Nano),
	}
	if a.Failure != nil {
		failure, _ := json.Marshal(a.Failure)
		f["failure"] = string(failure)
	}
	if a.OrderID != "" {
		f["order_id"] = a.OrderID
	}
	if !a.FinishedAt.IsZero() {
		f["finished_at"] = a.FinishedAt.Format(time.RFC3339Nano)
	}
	return f
}
