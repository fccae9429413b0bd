package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

var (
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrProductNotFound    = errors.New("product not found")
	ErrStockRejected      = errors.New("stock reduction rejected")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
)

const DefaultStockCallTimeout = 3 * time.Second

// StockReducer reduces one product's stock on behalf of the caller whose
// token is forwarded. It returns the quantity left on hand.
type StockReducer interface {
	Reduce(ctx context.Context, token, productID string, quantity int) (int, error)
}

// StockClient calls the catalog's reduce endpoint over HTTP.
type StockClient struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration
}

type reduceResponse struct {
	ProductID      string `json:"productId"`
	QuantityOnHand int    `json:"quantityOnHand"`
}

type catalogError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *StockClient) Reduce(ctx context.Context, token, productID string, quantity int) (int, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultStockCallTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	u := fmt.Sprintf("%s/catalog/stock/reduce/%s?quantity=%d",
		strings.TrimRight(c.BaseURL, "/"), url.PathEscape(productID), quantity)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, u, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return 0, fmt.Errorf("%w: read response: %v", ErrCatalogUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var rr reduceResponse
		if err := json.Unmarshal(body, &rr); err != nil {
			return 0, fmt.Errorf("%w: decode response: %v", ErrCatalogUnavailable, err)
		}
		return rr.QuantityOnHand, nil
	case resp.StatusCode == http.StatusNotFound:
		return 0, ErrProductNotFound
	case resp.StatusCode == http.StatusBadRequest:
		var ce catalogError
		_ = json.Unmarshal(body, &ce)
		if ce.Code == "insufficient_stock" {
			return 0, ErrInsufficientStock
		}
		return 0, fmt.Errorf("%w: %s", ErrStockRejected, describe(resp.StatusCode, ce))
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var ce catalogError
		_ = json.Unmarshal(body, &ce)
		return 0, fmt.Errorf("%w: %s", ErrStockRejected, describe(resp.StatusCode, ce))
	default:
		return 0, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}
}

func describe(status int, ce catalogError) string {
	if ce.Error != "" {
		return fmt.Sprintf("status %d: %s", status, ce.Error)
	}
	return fmt.Sprintf("status %d", status)
}
