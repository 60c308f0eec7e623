package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appcheckout "github.com/jerseyarena/storefront/internal/application/checkout"
)

// CheckoutHandler handles checkout dispatch endpoints
type CheckoutHandler struct {
	BaseHandler
	checkouts *appcheckout.Service
}

// NewCheckoutHandler creates a new CheckoutHandler
func NewCheckoutHandler(checkouts *appcheckout.Service) *CheckoutHandler {
	return &CheckoutHandler{checkouts: checkouts}
}

// CheckoutRequest selects the payment gateway for a cart checkout
type CheckoutRequest struct {
	Gateway string `json:"gateway" binding:"required,oneof=stripe esewa"`
}

// BuyNowRequest is an instant single-item purchase, bypassing the cart
type BuyNowRequest struct {
	SKUID    string `json:"sku_id" binding:"required"`
	Quantity int    `json:"quantity" binding:"omitempty,gte=1"`
}

// dispatch hands the gateway artifact to the browser: a 303 redirect for a
// hosted gateway, or an auto-submitting form page for a form-post gateway.
func (h *CheckoutHandler) dispatch(c *gin.Context, d *appcheckout.Dispatch) {
	if d.FormHTML != "" {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(d.FormHTML))
		return
	}
	c.Redirect(http.StatusSeeOther, d.RedirectURL)
}

// Checkout dispatches the session's cart to the chosen gateway
func (h *CheckoutHandler) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	d, err := h.checkouts.Checkout(c.Request.Context(), sid(c), appcheckout.Gateway(req.Gateway))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.dispatch(c, d)
}

// BuyNow dispatches an instant purchase of a single variant
func (h *CheckoutHandler) BuyNow(c *gin.Context) {
	var req BuyNowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	d, err := h.checkouts.BuyNow(c.Request.Context(), sid(c), req.SKUID, req.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.dispatch(c, d)
}
