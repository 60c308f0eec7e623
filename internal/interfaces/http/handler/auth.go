package handler

import (
	"github.com/gin-gonic/gin"

	appsession "github.com/jerseyarena/storefront/internal/application/session"
)

// AuthHandler handles shopper authentication endpoints
type AuthHandler struct {
	BaseHandler
	sessions *appsession.Service
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(sessions *appsession.Service) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// LoginRequest is the request body for signing in
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest is the request body for creating an account
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// ProfileResponse is the account snapshot returned to the storefront
type ProfileResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	Tier          string `json:"tier"`
	LoyaltyPoints int    `json:"loyalty_points"`
}

// SessionResponse reports the authentication state of the current session
type SessionResponse struct {
	Authenticated bool             `json:"authenticated"`
	Profile       *ProfileResponse `json:"profile,omitempty"`
}

// Login exchanges credentials for an authenticated session
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	profile, err := h.sessions.Login(c.Request.Context(), sid(c), req.Username, req.Password)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	resp := SessionResponse{Authenticated: true}
	if profile != nil {
		resp.Profile = &ProfileResponse{
			ID:            profile.ID,
			Username:      profile.Username,
			Email:         profile.Email,
			Tier:          string(profile.Tier),
			LoyaltyPoints: profile.LoyaltyPoints,
		}
	}
	h.Success(c, resp)
}

// Register creates a new shopper account
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	if err := h.sessions.Register(c.Request.Context(), sid(c), req.Email, req.Password); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, gin.H{"registered": true})
}

// Logout drops the session's credentials and cached profile
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), sid(c)); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// Me returns the current session state with the cached profile when present
func (h *AuthHandler) Me(c *gin.Context) {
	ctx := c.Request.Context()
	if !h.sessions.IsAuthenticated(ctx, sid(c)) {
		h.Success(c, SessionResponse{Authenticated: false})
		return
	}

	profile, err := h.sessions.Profile(ctx, sid(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, SessionResponse{
		Authenticated: true,
		Profile: &ProfileResponse{
			ID:            profile.ID,
			Username:      profile.Username,
			Email:         profile.Email,
			Tier:          string(profile.Tier),
			LoyaltyPoints: profile.LoyaltyPoints,
		},
	})
}

// RefreshProfile re-fetches the profile snapshot from the store backend
func (h *AuthHandler) RefreshProfile(c *gin.Context) {
	profile, err := h.sessions.RefreshProfile(c.Request.Context(), sid(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ProfileResponse{
		ID:            profile.ID,
		Username:      profile.Username,
		Email:         profile.Email,
		Tier:          string(profile.Tier),
		LoyaltyPoints: profile.LoyaltyPoints,
	})
}
