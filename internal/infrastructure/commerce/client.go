// internal/infrastructure/commerce/client.go
package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-client/internal/config"
	"github.com/your-org/storefront-client/internal/domain/cart"
	"github.com/your-org/storefront-client/internal/domain/checkout"
	"github.com/your-org/storefront-client/internal/domain/product"
	"github.com/your-org/storefront-client/internal/pkg/session"
)

// Credentials supplies the bearer token for outbound requests and
// receives the global unauthenticated signal. The session manager
// implements it.
type Credentials interface {
	Token() string
	HandleUnauthorized()
}

// Client is the JSON-over-HTTP client for the remote commerce service.
// It owns the wire contract: paths, payload shapes, token attachment,
// request correlation and the mapping of responses onto the error
// taxonomy. Components never talk to the service around it.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	credentials Credentials
	logger      *logrus.Entry
}

// NewClient creates a commerce API client
func NewClient(cfg *config.Config, credentials Credentials, logger *logrus.Entry) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.API.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.API.RequestTimeout,
		},
		credentials: credentials,
		logger:      logger,
	}
}

// Login authenticates against the service and returns the issued token
// with the user identity.
func (c *Client) Login(ctx context.Context, email, password string) (string, session.Identity, error) {
	payload := map[string]string{"email": email, "password": password}
	var response struct {
		Token string           `json:"token"`
		User  session.Identity `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/login/", payload, &response); err != nil {
		return "", session.Identity{}, err
	}
	return response.Token, response.User, nil
}

// FetchCart retrieves the current cart
func (c *Client) FetchCart(ctx context.Context) (cart.Snapshot, error) {
	var snap cart.Snapshot
	err := c.do(ctx, http.MethodGet, "/cart/", nil, &snap)
	return snap, err
}

// AddItem adds a product line and returns the grown cart
func (c *Client) AddItem(ctx context.Context, req cart.AddRequest) (cart.Snapshot, error) {
	var snap cart.Snapshot
	err := c.do(ctx, http.MethodPost, "/cart/add/", req, &snap)
	return snap, err
}

// UpdateItem sets a line's quantity and returns the updated cart
func (c *Client) UpdateItem(ctx context.Context, lineID uint, quantity int) (cart.Snapshot, error) {
	payload := struct {
		Quantity int `json:"quantity"`
	}{Quantity: quantity}

	var snap cart.Snapshot
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/cart/update/%d/", lineID), payload, &snap)
	return snap, err
}

// RemoveItem deletes a line and returns the shrunk cart
func (c *Client) RemoveItem(ctx context.Context, lineID uint) (cart.Snapshot, error) {
	var snap cart.Snapshot
	err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/cart/remove/%d/", lineID), nil, &snap)
	return snap, err
}

// ClearCart empties the cart and returns the empty snapshot
func (c *Client) ClearCart(ctx context.Context) (cart.Snapshot, error) {
	var snap cart.Snapshot
	err := c.do(ctx, http.MethodDelete, "/cart/clear/", nil, &snap)
	return snap, err
}

// ListProducts fetches the catalog filtered by the given parameters
func (c *Client) ListProducts(ctx context.Context, params url.Values) ([]product.Summary, error) {
	path := "/products/"
	if encoded := params.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var products []product.Summary
	err := c.do(ctx, http.MethodGet, path, nil, &products)
	return products, err
}

// RelatedProducts fetches products related to the given one
func (c *Client) RelatedProducts(ctx context.Context, slug string) ([]product.Summary, error) {
	var products []product.Summary
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%s/related/", url.PathEscape(slug)), nil, &products)
	return products, err
}

// RecommendedProducts fetches the recommendation feed
func (c *Client) RecommendedProducts(ctx context.Context) ([]product.Summary, error) {
	var products []product.Summary
	err := c.do(ctx, http.MethodGet, "/products/recommended/", nil, &products)
	return products, err
}

// ReviewStats fetches a product's review aggregate
func (c *Client) ReviewStats(ctx context.Context, slug string) (product.ReviewStats, error) {
	var stats product.ReviewStats
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/products/%s/reviews/stats/", url.PathEscape(slug)), nil, &stats)
	return stats, err
}

// ListSizes fetches the size catalog
func (c *Client) ListSizes(ctx context.Context) ([]product.Size, error) {
	var sizes []product.Size
	err := c.do(ctx, http.MethodGet, "/sizes/", nil, &sizes)
	return sizes, err
}

// ListCategories fetches the category tree
func (c *Client) ListCategories(ctx context.Context) ([]product.Category, error) {
	var categories []product.Category
	err := c.do(ctx, http.MethodGet, "/categories/", nil, &categories)
	return categories, err
}

// SubmitOrder performs the checkout call and returns the order identity
func (c *Client) SubmitOrder(ctx context.Context, req checkout.OrderRequest) (string, error) {
	var response struct {
		OrderID json.Number `json:"order_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/orders/checkout/", req, &response); err != nil {
		return "", err
	}
	if response.OrderID.String() == "" {
		return "", &NetworkError{Op: "submit order", Err: fmt.Errorf("response missing order_id")}
	}
	return response.OrderID.String(), nil
}

// do performs one request: token attachment, request correlation, JSON
// round trip and error-taxonomy mapping.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	op := fmt.Sprintf("%s %s", method, path)

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if token := c.credentials.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"request_id": requestID,
			"op":         op,
		}).WithError(err).Debug("Request transport failure")
		return &NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"op":         op,
		"status":     resp.StatusCode,
		"latency":    time.Since(started),
	}).Debug("Commerce API request completed")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &NetworkError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
		}
		return nil

	case resp.StatusCode == http.StatusUnauthorized:
		// Global unauthenticated signal: credentials are dropped and the
		// user is redirected to login by the session layer.
		c.credentials.HandleUnauthorized()
		return ErrAuthRequired

	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: path}

	case resp.StatusCode < 500:
		if fields := decodeFieldErrors(resp.Body); len(fields) > 0 {
			return &ValidationError{Fields: fields}
		}
		return &NetworkError{Op: op, StatusCode: resp.StatusCode}

	default:
		return &NetworkError{Op: op, StatusCode: resp.StatusCode}
	}
}

// decodeFieldErrors flattens the service's error body into a field→message
// map. Messages arrive either as strings or as arrays of strings; arrays
// keep their first message, matching what the form can display.
func decodeFieldErrors(r io.Reader) map[string]string {
	var raw map[string]interface{}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil
	}

	fields := make(map[string]string, len(raw))
	for key, value := range raw {
		switch v := value.(type) {
		case string:
			fields[key] = v
		case []interface{}:
			if len(v) > 0 {
				if s, ok := v[0].(string); ok {
					fields[key] = s
				}
			}
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}
