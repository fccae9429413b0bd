package orders

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStockClientStatusMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		body    string
		want    int
		wantErr error
	}{
		{"ok", http.StatusOK, `{"message":"stock reduced","productId":"p1","quantityOnHand":3}`, 3, nil},
		{"insufficient", http.StatusBadRequest, `{"error":"not enough","code":"insufficient_stock"}`, 0, ErrInsufficientStock},
		{"bad quantity", http.StatusBadRequest, `{"error":"quantity must be positive","code":"invalid_quantity"}`, 0, ErrStockRejected},
		{"not found", http.StatusNotFound, `{"error":"product not found","code":"not_found"}`, 0, ErrProductNotFound},
		{"forbidden", http.StatusForbidden, `{"error":"forbidden","code":"forbidden"}`, 0, ErrStockRejected},
		{"server error", http.StatusInternalServerError, `{}`, 0, ErrCatalogUnavailable},
		{"garbage ok body", http.StatusOK, `not json`, 0, ErrCatalogUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := &StockClient{BaseURL: srv.URL, HTTP: srv.Client()}
			got, err := c.Reduce(context.Background(), "tok", "p1", 2)
			if tc.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
			} else if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}
			if got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestStockClientRequestShape(t *testing.T) {
	t.Parallel()

	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(context.Background())
		_, _ = w.Write([]byte(`{"quantityOnHand":7}`))
	}))
	defer srv.Close()

	c := &StockClient{BaseURL: srv.URL + "/", HTTP: srv.Client()}
	if _, err := c.Reduce(context.Background(), "abc.def", "sku 1/a", 4); err != nil {
		t.Fatalf("reduce: %v", err)
	}
	r := <-seen
	gotMethod, gotPath := r.Method, r.URL.EscapedPath()
	gotQuery, gotAuth := r.URL.Query().Get("quantity"), r.Header.Get("Authorization")
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotPath != "/catalog/stock/reduce/sku%201%2Fa" {
		t.Fatalf("expected escaped product id in path, got %s", gotPath)
	}
	if gotQuery != "4" {
		t.Fatalf("expected quantity=4, got %q", gotQuery)
	}
	if gotAuth != "Bearer abc.def" {
		t.Fatalf("expected forwarded bearer token, got %q", gotAuth)
	}
}

func TestStockClientTimeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := &StockClient{BaseURL: srv.URL, HTTP: srv.Client(), Timeout: 50 * time.Millisecond}
	start := time.Now()
	_, err := c.Reduce(context.Background(), "tok", "p1", 1)
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("expected the call to give up quickly, took %v", elapsed)
	}
}

func TestStockClientUnreachable(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := &StockClient{BaseURL: url, Timeout: time.Second}
	if _, err := c.Reduce(context.Background(), "tok", "p1", 1); !errors.Is(err, ErrCatalogUnavailable) {
		t.Fatalf("expected ErrCatalogUnavailable, got %v", err)
	}
}
