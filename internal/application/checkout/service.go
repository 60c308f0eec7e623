// Package checkout dispatches a cart to a payment gateway. The outcome is a
// browser artifact: a redirect URL for a hosted gateway, or a self-submitting
// form page for a form-post gateway.
package checkout

import (
	"context"
	"errors"

	"go.uber.org/zap"

	appcart "github.com/jerseyarena/storefront/internal/application/cart"
	appsession "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/domain/shared"
	"github.com/jerseyarena/storefront/internal/infrastructure/gateway"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

// Gateway selects the payment provider flavor.
type Gateway string

const (
	// GatewayStripe is the hosted-page provider: dispatch is a redirect.
	GatewayStripe Gateway = "stripe"
	// GatewayEsewa is the form-post provider: dispatch is an auto-submitting
	// form POSTing the signed fields.
	GatewayEsewa Gateway = "esewa"
)

// Valid reports whether the gateway name is one we can dispatch to.
func (g Gateway) Valid() bool {
	return g == GatewayStripe || g == GatewayEsewa
}

// Dispatch is the artifact handed back to the browser. Exactly one of
// RedirectURL and FormHTML is set.
type Dispatch struct {
	Gateway     Gateway
	RedirectURL string
	FormHTML    string
}

// Service dispatches checkouts.
type Service struct {
	api      *storeapi.Client
	store    sessionstore.Store
	sessions *appsession.Service
	carts    *appcart.Service
	logger   *zap.Logger
}

// NewService creates the checkout service.
func NewService(api *storeapi.Client, store sessionstore.Store, sessions *appsession.Service, carts *appcart.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, store: store, sessions: sessions, carts: carts, logger: logger}
}

// Checkout dispatches the session's cart to the chosen gateway. All
// preconditions are validated before any backend call: the session must be
// authenticated, the cart non-empty, and the pending cart id present. A
// missing or sentinel pending id means the checkout is certain to fail
// server-side, so it aborts immediately as an expired cart session.
func (s *Service) Checkout(ctx context.Context, sid string, gw Gateway) (*Dispatch, error) {
	if !gw.Valid() {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "unknown payment gateway")
	}

	token, ok := s.sessions.Token(ctx, sid)
	if !ok {
		return nil, shared.ErrUnauthorized
	}

	lines, err := s.carts.Lines(ctx, sid)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, shared.ErrCartEmpty
	}

	cartID, present, err := s.carts.PendingCartID(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, shared.ErrCartSessionExpired
	}

	// The id must survive the full round trip through the gateway; persist
	// it before handing the browser away.
	st := sessionstore.NewShopperState(s.store, sid)
	if err := st.SetPendingCartID(ctx, cartID); err != nil {
		return nil, err
	}

	switch gw {
	case GatewayEsewa:
		return s.dispatchForm(ctx, sid, token, cartID)
	default:
		return s.dispatchHosted(ctx, sid, token, storeapi.CheckoutSessionRequest{CartID: cartID})
	}
}

// BuyNow dispatches an instant single-variant purchase through the hosted
// gateway, bypassing the cart entirely.
func (s *Service) BuyNow(ctx context.Context, sid, skuID string, qty int) (*Dispatch, error) {
	token, ok := s.sessions.Token(ctx, sid)
	if !ok {
		return nil, shared.ErrUnauthorized
	}
	if skuID == "" || qty <= 0 {
		return nil, shared.NewDomainError(shared.ErrInvalidInput.Code, "a product and a positive quantity are required")
	}
	return s.dispatchHosted(ctx, sid, token, storeapi.CheckoutSessionRequest{
		IsInstant: true,
		SKUID:     skuID,
		Qty:       qty,
	})
}

func (s *Service) dispatchHosted(ctx context.Context, sid, token string, req storeapi.CheckoutSessionRequest) (*Dispatch, error) {
	sess, err := s.api.CreateCheckoutSession(ctx, token, req)
	if err != nil {
		return nil, s.gatewayError(sid, err)
	}
	s.logger.Info("hosted checkout dispatched",
		zap.String("sid", sid), zap.Bool("instant", req.IsInstant))
	return &Dispatch{Gateway: GatewayStripe, RedirectURL: sess.URL}, nil
}

func (s *Service) dispatchForm(ctx context.Context, sid, token, cartID string) (*Dispatch, error) {
	payload, err := s.api.ProcessEsewa(ctx, token, cartID)
	if err != nil {
		return nil, s.gatewayError(sid, err)
	}
	html, err := gateway.RenderAutoSubmitForm(payload)
	if err != nil {
		return nil, err
	}
	s.logger.Info("form checkout dispatched",
		zap.String("sid", sid), zap.String("cart_id", cartID))
	return &Dispatch{Gateway: GatewayEsewa, FormHTML: html}, nil
}

func (s *Service) gatewayError(sid string, err error) error {
	if errors.Is(err, storeapi.ErrUnauthorized) {
		return shared.ErrAuthInvalid
	}
	s.logger.Warn("checkout dispatch failed", zap.String("sid", sid), zap.Error(err))
	if msg := storeapi.BackendMessage(err); msg != "" {
		return shared.NewDomainError(shared.ErrGatewayError.Code, msg)
	}
	return shared.ErrGatewayError
}
