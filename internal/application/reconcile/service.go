// Package reconcile handles the return leg of a payment redirect. The
// browser lands back on the storefront carrying one-time gateway identifiers;
// this service verifies the payment with the store backend exactly once and
// settles the session's cart state accordingly.
package reconcile

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"go.uber.org/zap"

	appcart "github.com/jerseyarena/storefront/internal/application/cart"
	appsession "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/domain/shared"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

// State is the terminal outcome of one verification attempt.
type State string

const (
	StateConfirmed State = "confirmed"
	StateRejected  State = "rejected"
)

// Params are the one-time identifiers carried on the return navigation.
// SessionID comes from a hosted gateway, Data from a form gateway; exactly
// one is expected.
type Params struct {
	SID       string
	SessionID string
	Data      string
	IsInstant bool
}

// Result is the settled outcome, persisted so a duplicate trigger (double
// navigation, page refresh before the URL is cleaned) replays it instead of
// re-verifying.
type Result struct {
	State       State  `json:"state"`
	OrderID     int64  `json:"order_id,omitempty"`
	Message     string `json:"message"`
	RedirectURL string `json:"redirect_url"`
}

// Confirmed reports whether the payment settled successfully.
func (r *Result) Confirmed() bool {
	return r.State == StateConfirmed
}

// CelebrationHook fires on a confirmed payment. It has no business meaning
// and must not affect the outcome.
type CelebrationHook func(ctx context.Context, sid string, orderID int64)

// Service reconciles post-payment state.
type Service struct {
	api      *storeapi.Client
	store    sessionstore.Store
	sessions *appsession.Service
	carts    *appcart.Service
	logger   *zap.Logger

	successPath string
	celebrate   CelebrationHook
}

// ServiceOption configures the reconciler.
type ServiceOption func(*Service)

// WithSuccessPath sets the clean URL a confirmed payment redirects to.
func WithSuccessPath(path string) ServiceOption {
	return func(s *Service) {
		if path != "" {
			s.successPath = path
		}
	}
}

// WithCelebration sets the confirmed-payment side effect hook.
func WithCelebration(hook CelebrationHook) ServiceOption {
	return func(s *Service) {
		s.celebrate = hook
	}
}

// NewService creates the reconciler.
func NewService(api *storeapi.Client, store sessionstore.Store, sessions *appsession.Service, carts *appcart.Service, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		api:         api,
		store:       store,
		sessions:    sessions,
		carts:       carts,
		logger:      logger,
		successPath: "/order-confirmed",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Verify runs one verification attempt for a payment return. Both outcomes
// are terminal for the attempt. The backend verification call runs at most
// once per one-time gateway reference: the latch is claimed before the call
// and never released, so a duplicate trigger replays the stored result.
func (s *Service) Verify(ctx context.Context, p Params) *Result {
	ref := s.reference(p)
	if ref == "" {
		return s.rejected("Missing payment reference, cannot verify this order")
	}

	token, ok := s.sessions.Token(ctx, p.SID)
	if !ok {
		return s.rejected(shared.ErrUnauthorized.Message)
	}

	st := sessionstore.NewShopperState(s.store, p.SID)

	first, err := st.MarkVerificationStarted(ctx, ref)
	if err != nil {
		s.logger.Warn("failed to claim verification latch", zap.String("sid", p.SID), zap.Error(err))
		// Without the latch we cannot guarantee at-most-once; fail closed.
		return s.rejected(shared.ErrVerificationFailed.Message)
	}
	if !first {
		var prior Result
		found, err := st.VerificationResult(ctx, &prior)
		if err == nil && found {
			s.logger.Info("replaying settled verification",
				zap.String("sid", p.SID), zap.String("state", string(prior.State)))
			return &prior
		}
		// The first attempt is still in flight; report it as pending
		// rejection rather than racing a second backend call.
		return &Result{
			State:       StateRejected,
			Message:     "Verification already in progress, check your orders shortly",
			RedirectURL: s.successPath,
		}
	}

	cartID, hasCart, err := st.PendingCartID(ctx)
	if err != nil {
		s.logger.Warn("failed to load pending cart id", zap.String("sid", p.SID), zap.Error(err))
	}
	if !hasCart && !p.IsInstant {
		result := s.rejected("No pending order found for this session")
		s.saveResult(ctx, st, result)
		return result
	}

	resp, err := s.callBackend(ctx, token, cartID, p)
	if err != nil {
		msg := storeapi.BackendMessage(err)
		if msg == "" {
			msg = shared.ErrVerificationFailed.Message
		}
		s.logger.Warn("payment verification rejected",
			zap.String("sid", p.SID), zap.Bool("instant", p.IsInstant), zap.Error(err))
		result := s.rejected(msg)
		s.saveResult(ctx, st, result)
		return result
	}

	s.settle(ctx, st, p)

	result := &Result{
		State:       StateConfirmed,
		OrderID:     resp.OrderID,
		Message:     resp.Message,
		RedirectURL: s.successPath,
	}
	s.saveResult(ctx, st, result)

	if s.celebrate != nil {
		s.celebrate(ctx, p.SID, resp.OrderID)
	}
	s.logger.Info("payment confirmed",
		zap.String("sid", p.SID), zap.Int64("order_id", resp.OrderID), zap.Bool("instant", p.IsInstant))
	return result
}

// reference derives the one-time gateway reference the latch is keyed on.
func (s *Service) reference(p Params) string {
	if p.SessionID != "" {
		return p.SessionID
	}
	if p.Data != "" {
		sum := sha256.Sum256([]byte(p.Data))
		return hex.EncodeToString(sum[:])
	}
	return ""
}

func (s *Service) callBackend(ctx context.Context, token, cartID string, p Params) (*storeapi.VerifyResponse, error) {
	if p.SessionID != "" {
		return s.api.VerifyPayment(ctx, token, storeapi.VerifyPaymentRequest{
			SessionID: p.SessionID,
			CartID:    cartID,
			IsInstant: p.IsInstant,
		})
	}
	return s.api.VerifyEsewa(ctx, token, storeapi.VerifyEsewaRequest{
		Data:      p.Data,
		CartID:    cartID,
		IsInstant: p.IsInstant,
	})
}

// settle clears cart state after a confirmed payment. An instant purchase
// never touched the cart, so it must not clear it.
func (s *Service) settle(ctx context.Context, st *sessionstore.ShopperState, p Params) {
	if !p.IsInstant {
		if err := s.carts.ClearLocal(ctx, p.SID); err != nil {
			s.logger.Warn("failed to clear cart after payment", zap.String("sid", p.SID), zap.Error(err))
		}
		if _, err := s.carts.Sync(ctx, p.SID); err != nil {
			s.logger.Warn("cart re-sync after payment failed", zap.String("sid", p.SID), zap.Error(err))
		}
	}
	// Loyalty points change server-side on a completed order. Failure here
	// is diagnostic only; the snapshot catches up on the next refresh.
	if _, err := s.sessions.RefreshProfile(ctx, p.SID); err != nil {
		s.logger.Warn("profile refresh after payment failed", zap.String("sid", p.SID), zap.Error(err))
	}
}

// rejected builds a rejected result. Pre-latch rejections are not persisted
// so they can never shadow a settled outcome on replay.
func (s *Service) rejected(msg string) *Result {
	return &Result{
		State:       StateRejected,
		Message:     msg,
		RedirectURL: s.successPath,
	}
}

func (s *Service) saveResult(ctx context.Context, st *sessionstore.ShopperState, result *Result) {
	if err := st.SaveVerificationResult(ctx, result); err != nil {
		s.logger.Warn("failed to persist verification result", zap.Error(err))
	}
}
