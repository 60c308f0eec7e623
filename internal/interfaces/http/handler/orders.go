package handler

import (
	"github.com/gin-gonic/gin"

	appsession "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/domain/shared"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

// OrderHandler proxies the shopper's order history from the store backend
type OrderHandler struct {
	BaseHandler
	api      *storeapi.Client
	sessions *appsession.Service
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(api *storeapi.Client, sessions *appsession.Service) *OrderHandler {
	return &OrderHandler{api: api, sessions: sessions}
}

// OrderItemResponse is one purchased line on a completed order
type OrderItemResponse struct {
	ID           int64  `json:"id"`
	SKUName      string `json:"sku_name"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
	CustomName   string `json:"custom_name,omitempty"`
	CustomNumber string `json:"custom_number,omitempty"`
}

// OrderResponse is a completed order record
type OrderResponse struct {
	ID         int64               `json:"id"`
	Status     string              `json:"status"`
	TotalPrice string              `json:"total_price"`
	CreatedAt  string              `json:"created_at"`
	Items      []OrderItemResponse `json:"items"`
}

func orderResponse(o storeapi.Order) OrderResponse {
	items := make([]OrderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemResponse{
			ID:           it.ID,
			SKUName:      it.SKUName,
			Quantity:     it.Quantity,
			Price:        it.Price.StringFixed(2),
			CustomName:   it.CustomName,
			CustomNumber: it.CustomNumber,
		})
	}
	return OrderResponse{
		ID:         o.ID,
		Status:     o.Status,
		TotalPrice: o.TotalPrice.StringFixed(2),
		CreatedAt:  o.CreatedAt,
		Items:      items,
	}
}

func (h *OrderHandler) token(c *gin.Context) (string, bool) {
	tok, ok := h.sessions.Token(c.Request.Context(), sid(c))
	if !ok {
		h.HandleError(c, shared.ErrUnauthorized)
		return "", false
	}
	return tok, true
}

// List returns the shopper's completed orders
func (h *OrderHandler) List(c *gin.Context) {
	tok, ok := h.token(c)
	if !ok {
		return
	}

	orders, err := h.api.ListOrders(c.Request.Context(), tok)
	if err != nil {
		h.HandleError(c, mapBackendError(err))
		return
	}
	resp := make([]OrderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, orderResponse(o))
	}
	h.Success(c, resp)
}

// Get returns a single order by id
func (h *OrderHandler) Get(c *gin.Context) {
	tok, ok := h.token(c)
	if !ok {
		return
	}

	order, err := h.api.GetOrder(c.Request.Context(), tok, c.Param("id"))
	if err != nil {
		h.HandleError(c, mapBackendError(err))
		return
	}
	h.Success(c, orderResponse(*order))
}
