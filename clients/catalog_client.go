package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CatalogClient checks category/product existence against the catalog service.
type CatalogClient struct {
	baseURL string
	client  *http.Client
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	return &CatalogClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// CategoryExists reports whether the catalog knows the category id.
func (c *CatalogClient) CategoryExists(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, "/categories/"+url.PathEscape(id))
}

// ProductExists reports whether the catalog knows the product id.
func (c *CatalogClient) ProductExists(ctx context.Context, id string) (bool, error) {
	return c.exists(ctx, "/products/"+url.PathEscape(id))
}

func (c *CatalogClient) exists(ctx context.Context, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("catalog lookup failed: status=%d", resp.StatusCode)
	}
}
