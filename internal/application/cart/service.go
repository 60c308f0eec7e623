// Package cart is the storefront cart service. It mirrors the authoritative
// cart (guest snapshot or server cart depending on auth state), guards
// mutations against known stock, and reconciles the ghost pending-payment
// cart left behind by an abandoned or completed checkout.
package cart

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	appsession "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/domain/cart"
	"github.com/jerseyarena/storefront/internal/domain/shared"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

// syncState is the per-session in-memory mirror of the cart plus the
// generation counters that make concurrent syncs last-response-wins.
type syncState struct {
	mu      sync.Mutex
	started uint64
	applied uint64
	lines   []cart.Line
	cartID  string
	synced  bool
}

// Service owns cart state for shopper sessions.
type Service struct {
	api      *storeapi.Client
	store    sessionstore.Store
	sessions *appsession.Service
	logger   *zap.Logger

	mu    sync.Mutex
	syncs map[string]*syncState
}

// NewService creates the cart service.
func NewService(api *storeapi.Client, store sessionstore.Store, sessions *appsession.Service, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:      api,
		store:    store,
		sessions: sessions,
		logger:   logger,
		syncs:    make(map[string]*syncState),
	}
}

// AuthSubscriber returns the subscriber that keeps the cart service in step
// with auth-state transitions. Wire it once at composition time.
func (s *Service) AuthSubscriber() appsession.Subscriber {
	return func(ctx context.Context, ev appsession.Event) {
		switch ev.Type {
		case appsession.EventLogin:
			s.onLogin(ctx, ev.SID)
		case appsession.EventLogout:
			s.onLogout(ev.SID)
		}
	}
}

// onLogin merges the guest snapshot into the server cart, then re-syncs and
// runs the ghost-cart check for the fresh login.
func (s *Service) onLogin(ctx context.Context, sid string) {
	s.dropSync(sid)

	st := s.state(sid)
	guest, err := st.GuestCart(ctx)
	if err != nil {
		s.logger.Warn("failed to load guest cart for merge", zap.String("sid", sid), zap.Error(err))
		guest = nil
	}

	if len(guest) > 0 {
		token, ok := s.sessions.Token(ctx, sid)
		if ok {
			merged := true
			for _, line := range guest {
				err := s.api.AddItem(ctx, token, storeapi.AddItemRequest{
					SKUID:        line.Variant.ID,
					Quantity:     line.Quantity,
					CustomName:   line.CustomName,
					CustomNumber: line.CustomNumber,
				})
				if err != nil {
					// Leave the snapshot intact so nothing is lost; the
					// remaining lines stay guest-local.
					s.logger.Warn("failed to merge guest line into server cart",
						zap.String("sid", sid), zap.String("sku", line.Variant.ID), zap.Error(err))
					merged = false
					break
				}
			}
			if merged {
				if err := st.ClearGuestCart(ctx); err != nil {
					s.logger.Warn("failed to clear guest cart after merge", zap.String("sid", sid), zap.Error(err))
				}
			}
		}
	}

	if _, err := s.Sync(ctx, sid); err != nil {
		s.logger.Warn("cart sync after login failed", zap.String("sid", sid), zap.Error(err))
	}
	if err := s.CleanupGhostCart(ctx, sid); err != nil {
		s.logger.Warn("ghost cart cleanup failed", zap.String("sid", sid), zap.Error(err))
	}
}

func (s *Service) onLogout(sid string) {
	// The session store guard and token are already cleared; dropping the
	// mirror makes the next read fall back to the guest snapshot.
	s.dropSync(sid)
}

func (s *Service) state(sid string) *sessionstore.ShopperState {
	return sessionstore.NewShopperState(s.store, sid)
}

func (s *Service) syncFor(sid string) *syncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	ss, ok := s.syncs[sid]
	if !ok {
		ss = &syncState{}
		s.syncs[sid] = ss
	}
	return ss
}

func (s *Service) dropSync(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.syncs, sid)
}

// backendFor selects the cart backend from the session's auth state.
func (s *Service) backendFor(ctx context.Context, sid string) Backend {
	if token, ok := s.sessions.Token(ctx, sid); ok {
		return &remoteBackend{api: s.api, token: token}
	}
	return &localBackend{st: s.state(sid)}
}

// Lines returns the current cart lines, syncing first when the session has
// no mirror yet.
func (s *Service) Lines(ctx context.Context, sid string) ([]cart.Line, error) {
	ss := s.syncFor(sid)
	ss.mu.Lock()
	if ss.synced {
		lines := ss.lines
		ss.mu.Unlock()
		return lines, nil
	}
	ss.mu.Unlock()
	return s.Sync(ctx, sid)
}

// Totals computes the monetary breakdown for the session's current cart and
// loyalty tier.
func (s *Service) Totals(ctx context.Context, sid string) (cart.Totals, []cart.Line, error) {
	lines, err := s.Lines(ctx, sid)
	if err != nil {
		return cart.Totals{}, nil, err
	}
	state := s.sessions.Current(ctx, sid)
	return cart.Compute(lines, state.Tier()), lines, nil
}

// AddItem applies a quantity delta to the cart. Customization is normalized
// before line matching. A positive delta that would push the line past the
// variant's known stock is rejected before any backend call.
func (s *Service) AddItem(ctx context.Context, sid string, variant cart.Variant, delta int, customName, customNumber string) ([]cart.Line, error) {
	customName, customNumber = cart.NormalizeCustomization(customName, customNumber)

	current, err := s.Lines(ctx, sid)
	if err != nil {
		return nil, err
	}
	if delta > 0 && variant.Stock != nil {
		if cart.QuantityOf(current, variant.ID, customName, customNumber)+delta > *variant.Stock {
			return nil, shared.ErrStockExceeded
		}
	}

	backend := s.backendFor(ctx, sid)
	lines, cartID, err := backend.AddItem(ctx, variant, delta, customName, customNumber)
	if err != nil {
		return nil, s.mapBackendError(ctx, sid, err)
	}
	s.apply(sid, lines, cartID)
	if cartID != "" {
		if err := s.state(sid).SetPendingCartID(ctx, cartID); err != nil {
			s.logger.Warn("failed to persist pending cart id", zap.String("sid", sid), zap.Error(err))
		}
	}
	return lines, nil
}

// RemoveItem drops a line entirely.
func (s *Service) RemoveItem(ctx context.Context, sid, lineID string) ([]cart.Line, error) {
	backend := s.backendFor(ctx, sid)
	lines, cartID, err := backend.RemoveItem(ctx, lineID)
	if err != nil {
		return nil, s.mapBackendError(ctx, sid, err)
	}
	s.apply(sid, lines, cartID)
	return lines, nil
}

// Sync loads the authoritative cart into the mirror. Concurrent invocations
// are safe: each sync claims a generation before fetching, and a response is
// applied only if no later sync has already applied its own.
func (s *Service) Sync(ctx context.Context, sid string) ([]cart.Line, error) {
	ss := s.syncFor(sid)
	ss.mu.Lock()
	ss.started++
	gen := ss.started
	ss.mu.Unlock()

	token, authenticated := s.sessions.Token(ctx, sid)
	st := s.state(sid)

	var (
		lines  []cart.Line
		cartID string
	)
	if !authenticated {
		var err error
		lines, err = st.GuestCart(ctx)
		if err != nil {
			return nil, err
		}
	} else {
		remote, err := s.api.MyCart(ctx, token)
		switch {
		case err == nil:
			lines = remote.Lines()
			cartID = remote.CartID()
			if err := st.SetPendingCartID(ctx, cartID); err != nil {
				s.logger.Warn("failed to persist pending cart id", zap.String("sid", sid), zap.Error(err))
			}
		case errors.Is(err, storeapi.ErrNotFound):
			// No active server cart. Whatever pending id we remembered is
			// stale.
			lines = []cart.Line{}
			if err := st.ClearPendingCartID(ctx); err != nil {
				s.logger.Warn("failed to clear pending cart id", zap.String("sid", sid), zap.Error(err))
			}
		default:
			return nil, s.mapBackendError(ctx, sid, err)
		}
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()
	if gen < ss.applied {
		// A later sync already applied a fresher response.
		return ss.lines, nil
	}
	ss.applied = gen
	ss.lines = lines
	ss.cartID = cartID
	ss.synced = true
	return lines, nil
}

// apply overwrites the mirror with the result of a mutation, claiming a
// fresh generation so in-flight syncs cannot clobber it.
func (s *Service) apply(sid string, lines []cart.Line, cartID string) {
	ss := s.syncFor(sid)
	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.started++
	ss.applied = ss.started
	ss.lines = lines
	ss.cartID = cartID
	ss.synced = true
}

// PendingCartID returns the persisted pending cart id, if any.
func (s *Service) PendingCartID(ctx context.Context, sid string) (string, bool, error) {
	return s.state(sid).PendingCartID(ctx)
}

// ClearLocal clears the pending cart id and guest snapshot. The reconciler
// calls this after a confirmed standard checkout, before re-syncing.
func (s *Service) ClearLocal(ctx context.Context, sid string) error {
	st := s.state(sid)
	if err := st.ClearPendingCartID(ctx); err != nil {
		return err
	}
	if err := st.ClearGuestCart(ctx); err != nil {
		return err
	}
	s.dropSync(sid)
	return nil
}

// CleanupGhostCart checks whether the persisted pending cart id refers to a
// cart that has since been converted to an order (or deleted), and clears it
// if so. It runs at most once per login transition: the guard advances
// idle -> in_progress -> done, resets to idle when the check fails so a
// retry is possible, and is reset entirely on logout.
func (s *Service) CleanupGhostCart(ctx context.Context, sid string) error {
	token, ok := s.sessions.Token(ctx, sid)
	if !ok {
		return nil
	}
	st := s.state(sid)

	guard, err := st.CleanupGuard(ctx)
	if err != nil {
		return err
	}
	if guard != sessionstore.GuardIdle {
		return nil
	}
	if err := st.SetCleanupGuard(ctx, sessionstore.GuardInProgress); err != nil {
		return err
	}

	done := func() error { return st.SetCleanupGuard(ctx, sessionstore.GuardDone) }
	reset := func() {
		if err := st.SetCleanupGuard(ctx, sessionstore.GuardIdle); err != nil {
			s.logger.Warn("failed to reset cleanup guard", zap.String("sid", sid), zap.Error(err))
		}
	}

	pendingID, present, err := st.PendingCartID(ctx)
	if err != nil {
		reset()
		return err
	}
	if !present {
		return done()
	}

	status, err := s.api.CheckCartStatus(ctx, token, pendingID)
	switch {
	case errors.Is(err, storeapi.ErrNotFound):
		// The cart is gone server-side; the remembered id is a ghost.
	case err != nil:
		reset()
		return s.mapBackendError(ctx, sid, err)
	case !status.Converted():
		// Still a live cart, nothing to clean.
		return done()
	}

	s.logger.Info("clearing ghost pending cart", zap.String("sid", sid), zap.String("cart_id", pendingID))
	if err := st.ClearPendingCartID(ctx); err != nil {
		reset()
		return err
	}
	if _, err := s.Sync(ctx, sid); err != nil {
		s.logger.Warn("re-sync after ghost cleanup failed", zap.String("sid", sid), zap.Error(err))
	}
	return done()
}

// mapBackendError converts transport errors to the domain taxonomy. A token
// the backend rejects forces a logout so the cart falls back to guest state.
func (s *Service) mapBackendError(ctx context.Context, sid string, err error) error {
	if errors.Is(err, storeapi.ErrUnauthorized) {
		if logoutErr := s.sessions.Logout(ctx, sid); logoutErr != nil {
			s.logger.Warn("forced logout failed", zap.String("sid", sid), zap.Error(logoutErr))
		}
		return shared.ErrAuthInvalid
	}
	var apiErr *storeapi.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, apiErr.Message)
	}
	return err
}
