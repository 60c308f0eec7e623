// Package session defines the shopper session model: the bearer token and
// the profile snapshot mirrored from the store backend.
package session

import "github.com/jerseyarena/storefront/internal/domain/cart"

// Profile is the account record fetched from the store backend. LoyaltyPoints
// and Tier change server-side after a completed order, so the snapshot is
// refreshed after payment verification.
type Profile struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Tier          cart.Tier `json:"tier"`
	LoyaltyPoints int       `json:"loyalty_points"`
}

// State is the authentication state of one shopper session.
type State struct {
	Token   string
	Profile *Profile
}

// Authenticated reports whether the session carries a bearer token.
func (s State) Authenticated() bool {
	return s.Token != ""
}

// Tier returns the loyalty tier, or the zero tier when unauthenticated.
func (s State) Tier() cart.Tier {
	if s.Profile == nil {
		return ""
	}
	return s.Profile.Tier
}
