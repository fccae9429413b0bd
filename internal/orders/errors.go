package orders

import (
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-saga/internal/auth"
)

var (
	ErrUnauthenticated   = fmt.Errorf("orders: unauthenticated: %w", auth.ErrInvalid)
	ErrNotFound          = errors.New("orders: order not found")
	ErrInvalidTransition = errors.New("orders: status transition not allowed")
	ErrInvalidStatus     = errors.New("orders: unknown status")
)

// ValidationError names the offending field. Item is 1-based and zero for
// order-level fields.
type ValidationError struct {
	Field  string
	Item   int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Item > 0 {
		return fmt.Sprintf("item %d: %s %s", e.Item, e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ReservationError reports the first item whose stock reduction failed.
// Items before Index stay reduced.
type ReservationError struct {
	Index     int
	ProductID string
	Quantity  int
	Err       error
}

func (e *ReservationError) Error() string {
	return fmt.Sprintf("item %d (product %s, quantity %d): %v", e.Index, e.ProductID, e.Quantity, e.Err)
}

func (e *ReservationError) Unwrap() error { return e.Err }

// PersistError means every item was reserved but the order was not stored.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string { return "persist order: " + e.Err.Error() }

func (e *PersistError) Unwrap() error { return e.Err }
