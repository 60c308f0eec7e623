// Package storeapi is the REST client for the external store backend: the
// product catalog, cart, payment and account API every storefront operation
// ultimately delegates to.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/jerseyarena/storefront/internal/domain/session"
)

// Client talks to the store backend over HTTP. All methods take the bearer
// token explicitly; an empty token sends an unauthenticated request.
type Client struct {
	cfg        *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (for testing).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a store backend client.
func NewClient(cfg *Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// CreateToken exchanges credentials for a bearer token.
func (c *Client) CreateToken(ctx context.Context, username, password string) (*TokenResponse, error) {
	var resp TokenResponse
	err := c.doJSON(ctx, http.MethodPost, "auth/jwt/create/", "", tokenRequest{
		Username: username,
		Password: password,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Register creates a new account.
func (c *Client) Register(ctx context.Context, email, password string) error {
	return c.doJSON(ctx, http.MethodPost, "auth/users/", "", registerRequest{
		Username:   email,
		Email:      email,
		Password:   password,
		RePassword: password,
	}, nil)
}

// FetchProfile fetches the account record for the token.
func (c *Client) FetchProfile(ctx context.Context, token string) (*session.Profile, error) {
	// The backend historically returned either a single record or a
	// one-element list for this endpoint.
	body, err := c.do(ctx, http.MethodGet, "api/me/", token, nil)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var many []profileResponse
		if err := json.Unmarshal(trimmed, &many); err != nil {
			return nil, fmt.Errorf("storeapi: failed to parse profile list: %w", err)
		}
		if len(many) == 0 {
			return nil, ErrNotFound
		}
		return many[0].toDomain(), nil
	}

	var one profileResponse
	if err := json.Unmarshal(trimmed, &one); err != nil {
		return nil, fmt.Errorf("storeapi: failed to parse profile: %w", err)
	}
	return one.toDomain(), nil
}

// MyCart fetches the authenticated user's active cart. Returns ErrNotFound
// when the backend reports no active cart.
func (c *Client) MyCart(ctx context.Context, token string) (*RemoteCart, error) {
	var resp RemoteCart
	if err := c.doJSON(ctx, http.MethodGet, "api/cart/my_cart/", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// AddItem applies a quantity delta to the server-side cart. Callers re-fetch
// the authoritative cart afterwards; no response body is interpreted.
func (c *Client) AddItem(ctx context.Context, token string, req AddItemRequest) error {
	return c.doJSON(ctx, http.MethodPost, "api/cart/add_item/", token, req, nil)
}

// DeleteCartItem removes a server-side cart line entirely.
func (c *Client) DeleteCartItem(ctx context.Context, token, itemID string) error {
	return c.doJSON(ctx, http.MethodDelete, "api/cart_items/"+itemID+"/", token, nil, nil)
}

// CheckCartStatus asks whether a pending cart has been converted to an
// order. Returns ErrNotFound when the cart no longer exists.
func (c *Client) CheckCartStatus(ctx context.Context, token, cartID string) (*CartStatus, error) {
	var resp CartStatus
	if err := c.doJSON(ctx, http.MethodGet, "api/payment/"+cartID+"/check-status/", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateCheckoutSession creates a hosted checkout session and returns the
// page URL to redirect to.
func (c *Client) CreateCheckoutSession(ctx context.Context, token string, req CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	var resp CheckoutSessionResponse
	if err := c.doJSON(ctx, http.MethodPost, "api/payment/create-checkout-session/", token, req, &resp); err != nil {
		return nil, err
	}
	if resp.URL == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "checkout session response missing url"}
	}
	return &resp, nil
}

// ProcessEsewa creates a form-post checkout payload: the gateway URL plus
// the opaque set of signed fields to submit.
func (c *Client) ProcessEsewa(ctx context.Context, token, cartID string) (*FormPayload, error) {
	body, err := c.do(ctx, http.MethodPost, "api/payment/process-esewa/", token, esewaRequest{CartID: cartID})
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("storeapi: failed to parse esewa payload: %w", err)
	}

	payload := &FormPayload{Fields: make(map[string]string, len(raw))}
	for key, val := range raw {
		str := fmt.Sprintf("%v", val)
		if key == targetURLField {
			payload.TargetURL = str
			continue
		}
		payload.Fields[key] = str
	}
	if payload.TargetURL == "" {
		return nil, &APIError{StatusCode: http.StatusBadGateway, Message: "esewa payload missing gateway url"}
	}
	return payload, nil
}

// VerifyPayment verifies a hosted-gateway payment session.
func (c *Client) VerifyPayment(ctx context.Context, token string, req VerifyPaymentRequest) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.doJSON(ctx, http.MethodPost, "api/payments/verify-payment/", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// VerifyEsewa verifies a form-gateway payment from its provider data blob.
func (c *Client) VerifyEsewa(ctx context.Context, token string, req VerifyEsewaRequest) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.doJSON(ctx, http.MethodPost, "api/payments/verify-esewa/", token, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListOrders fetches the authenticated user's order history.
func (c *Client) ListOrders(ctx context.Context, token string) ([]Order, error) {
	var resp []Order
	if err := c.doJSON(ctx, http.MethodGet, "api/orders/", token, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetOrder fetches a single order.
func (c *Client) GetOrder(ctx context.Context, token, orderID string) (*Order, error) {
	var resp Order
	if err := c.doJSON(ctx, http.MethodGet, "api/orders/"+orderID+"/", token, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doJSON performs a request and decodes the JSON response into out when
// out is non-nil.
func (c *Client) doJSON(ctx context.Context, method, path, token string, reqBody, out any) error {
	body, err := c.do(ctx, method, path, token, reqBody)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("storeapi: failed to parse response: %w", err)
	}
	return nil
}

// do performs a request and returns the raw body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path, token string, reqBody any) ([]byte, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("storeapi: failed to encode request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("storeapi: failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("storeapi: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %w", ErrUnauthorized,
			&APIError{StatusCode: resp.StatusCode, Message: parseErrorBody(body)})
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	default:
		c.logger.Warn("store backend rejected request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
		)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: parseErrorBody(body)}
	}
}
