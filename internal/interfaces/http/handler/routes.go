package handler

import "github.com/gin-gonic/gin"

// RegisterRoutes mounts the auth endpoints
func (h *AuthHandler) RegisterRoutes(rg *gin.RouterGroup) {
	auth := rg.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.Register)
	auth.POST("/logout", h.Logout)
	auth.GET("/me", h.Me)
	auth.POST("/me/refresh", h.RefreshProfile)
}

// RegisterRoutes mounts the cart endpoints
func (h *CartHandler) RegisterRoutes(rg *gin.RouterGroup) {
	cart := rg.Group("/cart")
	cart.GET("", h.Get)
	cart.POST("/sync", h.Sync)
	cart.POST("/cleanup", h.Cleanup)
	cart.POST("/items", h.AddItem)
	cart.DELETE("/items/:id", h.RemoveItem)
}

// RegisterRoutes mounts the checkout endpoints
func (h *CheckoutHandler) RegisterRoutes(rg *gin.RouterGroup) {
	checkout := rg.Group("/checkout")
	checkout.POST("", h.Checkout)
	checkout.POST("/buy-now", h.BuyNow)
}

// RegisterRoutes mounts the payment return endpoint. The gateway redirects
// the browser here, so it is a GET carrying query parameters.
func (h *PaymentReturnHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/payment/return", h.Return)
}

// RegisterRoutes mounts the order history endpoints
func (h *OrderHandler) RegisterRoutes(rg *gin.RouterGroup) {
	orders := rg.Group("/orders")
	orders.GET("", h.List)
	orders.GET("/:id", h.Get)
}
