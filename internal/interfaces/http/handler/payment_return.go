package handler

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	appreconcile "github.com/jerseyarena/storefront/internal/application/reconcile"
)

// PaymentReturnHandler handles the browser's return navigation from a
// payment gateway. The gateway appends one-time identifiers as query
// parameters; verification runs once and the browser is redirected to a
// clean URL so a refresh cannot re-trigger it.
type PaymentReturnHandler struct {
	BaseHandler
	reconciler *appreconcile.Service
}

// NewPaymentReturnHandler creates a new PaymentReturnHandler
func NewPaymentReturnHandler(reconciler *appreconcile.Service) *PaymentReturnHandler {
	return &PaymentReturnHandler{reconciler: reconciler}
}

// Return verifies the payment and redirects to the outcome page
func (h *PaymentReturnHandler) Return(c *gin.Context) {
	isInstant, _ := strconv.ParseBool(c.Query("is_instant"))

	result := h.reconciler.Verify(c.Request.Context(), appreconcile.Params{
		SID:       sid(c),
		SessionID: c.Query("session_id"),
		Data:      c.Query("data"),
		IsInstant: isInstant,
	})

	q := url.Values{}
	if result.Confirmed() {
		q.Set("status", "confirmed")
		q.Set("order_id", strconv.FormatInt(result.OrderID, 10))
	} else {
		q.Set("status", "rejected")
		q.Set("message", result.Message)
	}
	c.Redirect(http.StatusSeeOther, result.RedirectURL+"?"+q.Encode())
}
