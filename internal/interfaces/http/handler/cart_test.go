package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeCart(t *testing.T, body []byte) CartResponse {
	t.Helper()
	var resp struct {
		Success bool         `json:"success"`
		Data    CartResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestCart_Get_EmptyGuestCart(t *testing.T) {
	rg := newRig(t)

	w := rg.do(t, http.MethodGet, "/api/v1/cart", nil)
	require.Equal(t, http.StatusOK, w.Code)

	cart := decodeCart(t, w.Body.Bytes())
	assert.Empty(t, cart.Items)
	assert.Equal(t, "0.00", cart.Subtotal)
	assert.Equal(t, "0.00", cart.Shipping)
	assert.Equal(t, "0.00", cart.Total)
}

func TestCart_AddItem_GuestTotals(t *testing.T) {
	rg := newRig(t)

	w := rg.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{
		"sku_id":   "301",
		"name":     "Home Jersey",
		"price":    "60.00",
		"quantity": 2,
	})
	require.Equal(t, http.StatusOK, w.Code)

	cart := decodeCart(t, w.Body.Bytes())
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, "120.00", cart.Items[0].LineTotal)
	// 120 subtotal is under the free-shipping threshold
	assert.Equal(t, "120.00", cart.Subtotal)
	assert.Equal(t, "10.00", cart.Shipping)
	assert.Equal(t, "130.00", cart.Total)
}

func TestCart_AddItem_CustomizationFee(t *testing.T) {
	rg := newRig(t)

	w := rg.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{
		"sku_id":        "301",
		"price":         "60.00",
		"printing_fee":  "15.00",
		"quantity":      1,
		"custom_name":   "Dani",
		"custom_number": "10",
	})
	require.Equal(t, http.StatusOK, w.Code)

	cart := decodeCart(t, w.Body.Bytes())
	require.Len(t, cart.Items, 1)
	assert.Equal(t, "DANI", cart.Items[0].CustomName)
	assert.Equal(t, "75.00", cart.Subtotal)
}

func TestCart_AddItem_InvalidShirtNumber(t *testing.T) {
	rg := newRig(t)

	w := rg.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{
		"sku_id":        "301",
		"price":         "60.00",
		"custom_number": "123",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_AddItem_InvalidPrice(t *testing.T) {
	rg := newRig(t)

	w := rg.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{
		"sku_id": "301",
		"price":  "sixty",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCart_AddItem_StockExceeded(t *testing.T) {
	rg := newRig(t)

	w := rg.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{
		"sku_id":   "301",
		"price":    "60.00",
		"stock":    1,
		"quantity": 3,
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ERR_STOCK_EXCEEDED", resp.Error.Code)
}

func TestCart_RemoveItem(t *testing.T) {
	rg := newRig(t)

	w := rg.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{
		"sku_id": "301", "price": "60.00", "quantity": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)
	cart := decodeCart(t, w.Body.Bytes())
	require.Len(t, cart.Items, 1)

	w = rg.do(t, http.MethodDelete, "/api/v1/cart/items/"+cart.Items[0].ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	cart = decodeCart(t, w.Body.Bytes())
	assert.Empty(t, cart.Items)
}

func TestCart_AuthenticatedAddGoesToBackend(t *testing.T) {
	rg := newRig(t)
	rg.login(t)

	w := rg.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{
		"sku_id": "301", "price": "60.00", "quantity": 1,
	})
	require.Equal(t, http.StatusOK, w.Code)

	rg.backend.mu.Lock()
	defer rg.backend.mu.Unlock()
	assert.Len(t, rg.backend.items, 1)
}

func TestCart_GoldDiscountApplied(t *testing.T) {
	rg := newRig(t)
	rg.login(t)

	// 3 x 60 = 180: above the free-shipping threshold, 10% Gold discount.
	w := rg.do(t, http.MethodPost, "/api/v1/cart/items", gin.H{
		"sku_id": "301", "price": "60.00", "quantity": 3,
	})
	require.Equal(t, http.StatusOK, w.Code)

	cart := decodeCart(t, w.Body.Bytes())
	assert.Equal(t, "180.00", cart.Subtotal)
	assert.Equal(t, "0.00", cart.Shipping)
	assert.Equal(t, "18.00", cart.Discount)
	assert.Equal(t, "162.00", cart.Total)
}

func TestCart_Cleanup_GuestIsNoOp(t *testing.T) {
	rg := newRig(t)

	w := rg.do(t, http.MethodPost, "/api/v1/cart/cleanup", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
