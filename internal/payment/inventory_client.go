package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/domain"
	"github.com/guptavishu1000/Quick-Sell-Wholesaler/internal/inventory"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// InventoryClient is the synchronous view of the inventory service used for
// the advisory stock check before an order is placed.
type InventoryClient interface {
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	// UpdateProduct overwrites a product. Only the legacy stock write uses it.
	UpdateProduct(ctx context.Context, p domain.Product) error
}

// HTTPInventoryClient calls the inventory HTTP API. Requests carry the trace
// context through the otelhttp transport.
type HTTPInventoryClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPInventoryClient builds a client for the service at baseURL. Every
// request is bounded by timeout.
func NewHTTPInventoryClient(baseURL string, timeout time.Duration) *HTTPInventoryClient {
	return &HTTPInventoryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type productPayload struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
}

func (c *HTTPInventoryClient) productURL(id string) string {
	return c.baseURL + "/products/" + url.PathEscape(id)
}

func (c *HTTPInventoryClient) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.productURL(id), nil)
	if err != nil {
		return domain.Product{}, fmt.Errorf("build inventory request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.Product{}, ErrProductNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return domain.Product{}, fmt.Errorf("%w: inventory service error: %d", ErrInventoryUnavailable, resp.StatusCode)
	}

	var p domain.Product
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return domain.Product{}, fmt.Errorf("%w: decode product: %v", ErrInventoryUnavailable, err)
	}
	if p.ID == "" {
		p.ID = id
	}
	return p, nil
}

func (c *HTTPInventoryClient) UpdateProduct(ctx context.Context, p domain.Product) error {
	body, err := json.Marshal(productPayload{Name: p.Name, Price: p.Price, Quantity: p.Quantity})
	if err != nil {
		return fmt.Errorf("encode product: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.productURL(p.ID), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build inventory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrProductNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: inventory service error: %d", ErrInventoryUnavailable, resp.StatusCode)
	}
	return nil
}

// LocalInventoryClient reads stock from an in-process inventory service.
type LocalInventoryClient struct {
	svc *inventory.Service
}

func NewLocalInventoryClient(svc *inventory.Service) *LocalInventoryClient {
	return &LocalInventoryClient{svc: svc}
}

func (c *LocalInventoryClient) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := c.svc.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Product{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("%w: %v", ErrInventoryUnavailable, err)
	}
	return p, nil
}

func (c *LocalInventoryClient) UpdateProduct(ctx context.Context, p domain.Product) error {
	_, err := c.svc.Update(ctx, p.ID, inventory.ProductInput{Name: p.Name, Price: p.Price, Quantity: p.Quantity})
	if errors.Is(err, domain.ErrNotFound) {
		return ErrProductNotFound
	}
	return err
}

var (
	_ InventoryClient = (*HTTPInventoryClient)(nil)
	_ InventoryClient = (*LocalInventoryClient)(nil)
)
