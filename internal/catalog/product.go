package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("catalog: product not found")
	ErrInsufficientStock = errors.New("catalog: insufficient stock")
	ErrInvalidQuantity   = errors.New("catalog: quantity must be greater than zero")
	ErrInvalidProduct    = errors.New("catalog: invalid product")
)

type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Categories  []string        `json:"categories"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Validate enforces the field rules shared by create and update.
func (p *Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidProduct)
	}
	if p.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidProduct)
	}
	return nil
}

// Ledger is the authoritative quantity-on-hand per product.
//
// Reduce subtracts quantity if enough stock is on hand and returns the new
// quantity. Reads and writes for one product are a single atomic unit;
// different products never wait on each other.
type Ledger interface {
	Reduce(ctx context.Context, productID string, quantity int) (int, error)
}

type Store interface {
	Ledger
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, id string) (*Product, error)
	List(ctx context.Context) ([]Product, error)
	Search(ctx context.Context, q string) ([]Product, error)
	ByCategory(ctx context.Context, category string) ([]Product, error)
	Update(ctx context.Context, p *Product) error
	Delete(ctx context.Context, id string) error
	SetStock(ctx context.Context, id string, stock int) (*Product, error)
}
