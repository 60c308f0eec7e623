package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	appcart "github.com/jerseyarena/storefront/internal/application/cart"
	appsession "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/domain/cart"
)

// CartHandler handles cart endpoints
type CartHandler struct {
	BaseHandler
	carts    *appcart.Service
	sessions *appsession.Service
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts *appcart.Service, sessions *appsession.Service) *CartHandler {
	return &CartHandler{carts: carts, sessions: sessions}
}

// AddItemRequest is the request body for adding units of a variant.
// Price, printing fee and stock travel with the request because the
// storefront catalog page already holds them; the backend re-validates on
// checkout either way. Quantity may be negative to decrement a line.
type AddItemRequest struct {
	SKUID        string `json:"sku_id" binding:"required"`
	Name         string `json:"name"`
	Price        string `json:"price" binding:"required"`
	PrintingFee  string `json:"printing_fee"`
	Stock        *int   `json:"stock"`
	Quantity     int    `json:"quantity"`
	CustomName   string `json:"custom_name"`
	CustomNumber string `json:"custom_number" binding:"omitempty,shirtnumber"`
}

// CartLineResponse is one cart line in API responses
type CartLineResponse struct {
	ID           string `json:"id"`
	SKUID        string `json:"sku_id"`
	Name         string `json:"name"`
	Price        string `json:"price"`
	Quantity     int    `json:"quantity"`
	CustomName   string `json:"custom_name,omitempty"`
	CustomNumber string `json:"custom_number,omitempty"`
	LineTotal    string `json:"line_total"`
}

// CartResponse is the cart snapshot with its monetary breakdown. Amounts
// are rounded to two decimal places for display only.
type CartResponse struct {
	Items    []CartLineResponse `json:"items"`
	Subtotal string             `json:"subtotal"`
	Shipping string             `json:"shipping"`
	Discount string             `json:"discount"`
	Total    string             `json:"total"`
}

func cartResponse(lines []cart.Line, totals cart.Totals) CartResponse {
	items := make([]CartLineResponse, 0, len(lines))
	for _, l := range lines {
		lineTotal := l.Variant.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		items = append(items, CartLineResponse{
			ID:           l.ID,
			SKUID:        l.Variant.ID,
			Name:         l.Variant.Name,
			Price:        l.Variant.Price.StringFixed(2),
			Quantity:     l.Quantity,
			CustomName:   l.CustomName,
			CustomNumber: l.CustomNumber,
			LineTotal:    lineTotal.StringFixed(2),
		})
	}
	return CartResponse{
		Items:    items,
		Subtotal: totals.Subtotal.StringFixed(2),
		Shipping: totals.Shipping.StringFixed(2),
		Discount: totals.Discount.StringFixed(2),
		Total:    totals.Grand.StringFixed(2),
	}
}

// Get returns the session's cart with computed totals
func (h *CartHandler) Get(c *gin.Context) {
	totals, lines, err := h.carts.Totals(c.Request.Context(), sid(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cartResponse(lines, totals))
}

// Sync forces a re-fetch of the cart from its backing store
func (h *CartHandler) Sync(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.carts.Sync(ctx, sid(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	totals, lines, err := h.carts.Totals(ctx, sid(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cartResponse(lines, totals))
}

// AddItem adds quantity of a variant to the cart
func (h *CartHandler) AddItem(c *gin.Context) {
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		h.BadRequest(c, "Invalid price")
		return
	}
	fee := decimal.Zero
	if req.PrintingFee != "" {
		if fee, err = decimal.NewFromString(req.PrintingFee); err != nil {
			h.BadRequest(c, "Invalid printing fee")
			return
		}
	}
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}

	variant := cart.Variant{
		ID:          req.SKUID,
		Name:        req.Name,
		Price:       price,
		PrintingFee: fee,
		Stock:       req.Stock,
	}

	ctx := c.Request.Context()
	lines, err := h.carts.AddItem(ctx, sid(c), variant, qty, req.CustomName, req.CustomNumber)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cartResponse(lines, cart.Compute(lines, h.sessions.Current(ctx, sid(c)).Tier())))
}

// Cleanup checks whether a pending checkout converted to an order while the
// shopper was away and, if so, reconciles the stale cart. The storefront
// shell calls this once on load; repeat calls in the same login session are
// no-ops.
func (h *CartHandler) Cleanup(c *gin.Context) {
	if err := h.carts.CleanupGhostCart(c.Request.Context(), sid(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RemoveItem removes an entire line from the cart
func (h *CartHandler) RemoveItem(c *gin.Context) {
	lineID := c.Param("id")
	if lineID == "" {
		h.BadRequest(c, "Missing cart line id")
		return
	}

	ctx := c.Request.Context()
	lines, err := h.carts.RemoveItem(ctx, sid(c), lineID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, cartResponse(lines, cart.Compute(lines, h.sessions.Current(ctx, sid(c)).Tier())))
}
