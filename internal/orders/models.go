package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"ownerId"`
	Status          Status          `json:"status"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
	ShippingAddress string          `json:"shippingAddress"`
	Latitude        *float64        `json:"latitude,omitempty"`
	Longitude       *float64        `json:"longitude,omitempty"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Items           []Item          `json:"items"`
}

type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

// NewOrder is the client's order proposal. OwnerID is accepted on the wire
// but always replaced by the caller's identity.
type NewOrder struct {
	OwnerID         string          `json:"ownerId,omitempty"`
	ShippingAddress string          `json:"shippingAddress"`
	Latitude        *float64        `json:"latitude,omitempty"`
	Longitude       *float64        `json:"longitude,omitempty"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	Items           []Item          `json:"items"`
}

// Validate checks the proposal before any stock is touched.
func (n *NewOrder) Validate() error {
	if strings.TrimSpace(n.ShippingAddress) == "" {
		return &ValidationError{Field: "shippingAddress", Reason: "is required"}
	}
	if n.TotalPrice.IsNegative() {
		return &ValidationError{Field: "totalPrice", Reason: "must not be negative"}
	}
	if n.Latitude != nil && (*n.Latitude < -90 || *n.Latitude > 90) {
		return &ValidationError{Field: "latitude", Reason: "must be between -90 and 90"}
	}
	if n.Longitude != nil && (*n.Longitude < -180 || *n.Longitude > 180) {
		return &ValidationError{Field: "longitude", Reason: "must be between -180 and 180"}
	}
	if len(n.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "at least one item is required"}
	}
	for i, it := range n.Items {
		switch {
		case strings.TrimSpace(it.ProductID) == "":
			return &ValidationError{Field: "productId", Item: i + 1, Reason: "is required"}
		case it.Quantity <= 0:
			return &ValidationError{Field: "quantity", Item: i + 1, Reason: "must be greater than zero"}
		case it.UnitPrice.IsNegative():
			return &ValidationError{Field: "unitPrice", Item: i + 1, Reason: "must not be negative"}
		}
	}
	return nil
}

func cloneOrder(o Order) Order {
	o.Items = append([]Item(nil), o.Items...)
	if o.Latitude != nil {
		v := *o.Latitude
		o.Latitude = &v
	}
	if o.Longitude != nil {
		v := *o.Longitude
		o.Longitude = &v
	}
	return o
}
