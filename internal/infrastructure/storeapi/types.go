package storeapi

import (
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jerseyarena/storefront/internal/domain/cart"
	"github.com/jerseyarena/storefront/internal/domain/session"
)

// tokenRequest is the credential exchange payload.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// TokenResponse carries the issued bearer token.
type TokenResponse struct {
	Access string `json:"access"`
}

// registerRequest is the account creation payload.
type registerRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	RePassword string `json:"re_password"`
}

// profileResponse is the backend account record. The loyalty fields live on
// a nested profile object.
type profileResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Profile  struct {
		Tier          string `json:"tier"`
		LoyaltyPoints int    `json:"loyalty_points"`
	} `json:"profile"`
}

func (p profileResponse) toDomain() *session.Profile {
	return &session.Profile{
		ID:            strconv.FormatInt(p.ID, 10),
		Username:      p.Username,
		Email:         p.Email,
		Tier:          cart.Tier(p.Profile.Tier),
		LoyaltyPoints: p.Profile.LoyaltyPoints,
	}
}

// remoteSKU is a cart line's product variant as serialized by the backend.
type remoteSKU struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	Price              decimal.Decimal `json:"price"`
	CustomPrintingCost decimal.Decimal `json:"custom_printing_cost"`
	StockQuantity      *int            `json:"stock_quantity"`
}

// remoteCartItem is one server-side cart line.
type remoteCartItem struct {
	ID           int64     `json:"id"`
	SKU          remoteSKU `json:"sku"`
	Quantity     int       `json:"quantity"`
	CustomName   string    `json:"custom_name"`
	CustomNumber string    `json:"custom_number"`
}

// RemoteCart is the authoritative server-side cart.
type RemoteCart struct {
	ID    int64            `json:"id"`
	Items []remoteCartItem `json:"items"`
}

// CartID returns the server cart id as the string used for the pending
// cart reference.
func (c *RemoteCart) CartID() string {
	return strconv.FormatInt(c.ID, 10)
}

// Lines converts the remote cart to domain lines.
func (c *RemoteCart) Lines() []cart.Line {
	lines := make([]cart.Line, 0, len(c.Items))
	for _, it := range c.Items {
		lines = append(lines, cart.Line{
			ID: strconv.FormatInt(it.ID, 10),
			Variant: cart.Variant{
				ID:          strconv.FormatInt(it.SKU.ID, 10),
				Name:        it.SKU.Name,
				Price:       it.SKU.Price,
				PrintingFee: it.SKU.CustomPrintingCost,
				Stock:       it.SKU.StockQuantity,
			},
			Quantity:     it.Quantity,
			CustomName:   it.CustomName,
			CustomNumber: it.CustomNumber,
		})
	}
	return lines
}

// AddItemRequest is the authenticated cart mutation payload.
type AddItemRequest struct {
	SKUID        string `json:"sku_id"`
	Quantity     int    `json:"quantity"`
	CustomName   string `json:"custom_name"`
	CustomNumber string `json:"custom_number"`
}

// CartStatus is the pending-cart conversion check result.
type CartStatus struct {
	Status      string `json:"status"`
	IsConverted bool   `json:"is_converted"`
}

// Converted reports whether the pending cart has become an order.
func (s *CartStatus) Converted() bool {
	return s.IsConverted || s.Status == "completed"
}

// CheckoutSessionRequest creates a hosted checkout session. For an instant
// purchase SKUID/Qty are set and CartID is ignored by the backend.
type CheckoutSessionRequest struct {
	CartID    string `json:"cart_id,omitempty"`
	IsInstant bool   `json:"is_instant,omitempty"`
	SKUID     string `json:"sku_id,omitempty"`
	Qty       int    `json:"qty,omitempty"`
}

// CheckoutSessionResponse carries the hosted checkout page URL.
type CheckoutSessionResponse struct {
	URL string `json:"url"`
}

// esewaRequest creates a form-post checkout payload.
type esewaRequest struct {
	CartID string `json:"cart_id"`
}

// FormPayload is a form-post gateway dispatch: the target URL plus every
// signed field the gateway expects in a real browser form submission. The
// field set is gateway-defined and treated as opaque.
type FormPayload struct {
	TargetURL string
	Fields    map[string]string
}

// targetURLField is the one response key that is the form action rather
// than a signed field.
const targetURLField = "esewa_url"

// VerifyPaymentRequest verifies a hosted-gateway payment.
type VerifyPaymentRequest struct {
	SessionID string `json:"session_id"`
	CartID    string `json:"cart_id,omitempty"`
	IsInstant bool   `json:"is_instant"`
}

// VerifyEsewaRequest verifies a form-gateway payment from its opaque
// provider data blob.
type VerifyEsewaRequest struct {
	Data      string `json:"data"`
	CartID    string `json:"cart_id,omitempty"`
	IsInstant bool   `json:"is_instant"`
}

// VerifyResponse is the backend's verification outcome.
type VerifyResponse struct {
	OrderID int64  `json:"order_id"`
	Message string `json:"message"`
}

// OrderItem is one purchased line on a completed order.
type OrderItem struct {
	ID           int64           `json:"id"`
	SKUName      string          `json:"sku_name"`
	Quantity     int             `json:"quantity"`
	Price        decimal.Decimal `json:"price"`
	CustomName   string          `json:"custom_name"`
	CustomNumber string          `json:"custom_number"`
}

// Order is a completed order record.
type Order struct {
	ID         int64           `json:"id"`
	Status     string          `json:"status"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  string          `json:"created_at"`
	Items      []OrderItem     `json:"items"`
}
