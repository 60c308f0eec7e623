// Package session manages shopper authentication state: the bearer token
// exchange with the store backend, the cached profile snapshot, and the
// auth-change notifications other services key their behavior from.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	domain "github.com/jerseyarena/storefront/internal/domain/session"
	"github.com/jerseyarena/storefront/internal/domain/shared"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

// EventType is an auth-state transition kind.
type EventType string

const (
	EventLogin  EventType = "login"
	EventLogout EventType = "logout"
)

// Event notifies subscribers of an auth-state transition for one session.
type Event struct {
	SID  string
	Type EventType
}

// Subscriber receives auth-state transitions. Subscribers run synchronously
// on the transition path and must not block.
type Subscriber func(ctx context.Context, ev Event)

// Service owns authentication for shopper sessions.
type Service struct {
	api    *storeapi.Client
	store  sessionstore.Store
	logger *zap.Logger

	mu          sync.RWMutex
	subscribers []Subscriber
}

// NewService creates the session service.
func NewService(api *storeapi.Client, store sessionstore.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: api, store: store, logger: logger}
}

// Subscribe registers a subscriber for auth-state transitions.
func (s *Service) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Service) notify(ctx context.Context, ev Event) {
	s.mu.RLock()
	subs := make([]Subscriber, len(s.subscribers))
	copy(subs, s.subscribers)
	s.mu.RUnlock()

	for _, fn := range subs {
		fn(ctx, ev)
	}
}

func (s *Service) state(sid string) *sessionstore.ShopperState {
	return sessionstore.NewShopperState(s.store, sid)
}

// Login exchanges credentials for a bearer token and caches the profile.
// On failure the session stays unauthenticated and the backend's reason is
// surfaced to the caller.
func (s *Service) Login(ctx context.Context, sid, username, password string) (*domain.Profile, error) {
	tok, err := s.api.CreateToken(ctx, username, password)
	if err != nil {
		if errors.Is(err, storeapi.ErrUnauthorized) {
			msg := storeapi.BackendMessage(err)
			if msg == "" {
				msg = "Invalid username or password"
			}
			return nil, shared.NewDomainError(shared.ErrUnauthorized.Code, msg)
		}
		return nil, err
	}

	st := s.state(sid)
	if err := st.SetToken(ctx, tok.Access); err != nil {
		return nil, err
	}

	profile, err := s.api.FetchProfile(ctx, tok.Access)
	switch {
	case err == nil:
		if err := st.SaveProfile(ctx, profile); err != nil {
			return nil, err
		}
	case errors.Is(err, storeapi.ErrUnauthorized):
		// A token the backend immediately rejects is unusable.
		s.logout(ctx, st)
		return nil, shared.ErrAuthInvalid
	default:
		// The token is good; the profile snapshot catches up on the next
		// refresh.
		s.logger.Warn("profile fetch after login failed",
			zap.String("sid", sid), zap.Error(err))
	}

	s.notify(ctx, Event{SID: sid, Type: EventLogin})
	s.logger.Info("shopper logged in", zap.String("sid", sid), zap.String("username", username))
	return profile, nil
}

// Register creates an account on the store backend. The shopper signs in
// separately afterwards.
func (s *Service) Register(ctx context.Context, sid, email, password string) error {
	if err := s.api.Register(ctx, email, password); err != nil {
		var apiErr *storeapi.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 {
			return shared.NewDomainError(shared.ErrInvalidInput.Code, apiErr.Message)
		}
		return err
	}
	s.logger.Info("shopper registered", zap.String("sid", sid))
	return nil
}

// Logout clears the token and profile synchronously and notifies
// subscribers, so anything that depends on auth state resets before the
// call returns.
func (s *Service) Logout(ctx context.Context, sid string) error {
	st := s.state(sid)
	s.logout(ctx, st)
	s.notify(ctx, Event{SID: sid, Type: EventLogout})
	s.logger.Info("shopper logged out", zap.String("sid", sid))
	return nil
}

func (s *Service) logout(ctx context.Context, st *sessionstore.ShopperState) {
	if err := st.ClearToken(ctx); err != nil {
		s.logger.Warn("failed to clear token", zap.Error(err))
	}
	if err := st.ClearProfile(ctx); err != nil {
		s.logger.Warn("failed to clear profile", zap.Error(err))
	}
	if err := st.SetCleanupGuard(ctx, sessionstore.GuardIdle); err != nil {
		s.logger.Warn("failed to reset cleanup guard", zap.Error(err))
	}
}

// Token returns the session's bearer token if present and not locally
// expired. An expired token triggers a logout so the shopper re-enters an
// unauthenticated session instead of issuing doomed backend calls.
func (s *Service) Token(ctx context.Context, sid string) (string, bool) {
	st := s.state(sid)
	tok, ok, err := st.Token(ctx)
	if err != nil {
		s.logger.Warn("failed to load token", zap.String("sid", sid), zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}
	if tokenExpired(tok) {
		s.logger.Info("token expired locally, clearing session", zap.String("sid", sid))
		s.logout(ctx, st)
		s.notify(ctx, Event{SID: sid, Type: EventLogout})
		return "", false
	}
	return tok, true
}

// IsAuthenticated reports whether the session holds a usable token.
func (s *Service) IsAuthenticated(ctx context.Context, sid string) bool {
	_, ok := s.Token(ctx, sid)
	return ok
}

// Current returns the session's auth state: token plus cached profile.
func (s *Service) Current(ctx context.Context, sid string) domain.State {
	tok, ok := s.Token(ctx, sid)
	if !ok {
		return domain.State{}
	}
	profile, _, err := s.state(sid).Profile(ctx)
	if err != nil {
		s.logger.Warn("failed to load profile snapshot", zap.String("sid", sid), zap.Error(err))
	}
	return domain.State{Token: tok, Profile: profile}
}

// Profile returns the cached profile, fetching it from the backend when the
// snapshot is missing.
func (s *Service) Profile(ctx context.Context, sid string) (*domain.Profile, error) {
	tok, ok := s.Token(ctx, sid)
	if !ok {
		return nil, shared.ErrUnauthorized
	}
	profile, found, err := s.state(sid).Profile(ctx)
	if err == nil && found {
		return profile, nil
	}
	return s.refresh(ctx, sid, tok)
}

// RefreshProfile re-fetches the profile from the backend. Loyalty tier and
// points change server-side after a completed order, so the reconciler calls
// this after every confirmed payment.
func (s *Service) RefreshProfile(ctx context.Context, sid string) (*domain.Profile, error) {
	tok, ok := s.Token(ctx, sid)
	if !ok {
		return nil, shared.ErrUnauthorized
	}
	return s.refresh(ctx, sid, tok)
}

func (s *Service) refresh(ctx context.Context, sid, token string) (*domain.Profile, error) {
	profile, err := s.api.FetchProfile(ctx, token)
	if err != nil {
		if errors.Is(err, storeapi.ErrUnauthorized) {
			// The backend no longer honors the token. Force a logout so the
			// rest of the storefront sees a clean unauthenticated session.
			st := s.state(sid)
			s.logout(ctx, st)
			s.notify(ctx, Event{SID: sid, Type: EventLogout})
			return nil, shared.ErrAuthInvalid
		}
		return nil, err
	}
	if err := s.state(sid).SaveProfile(ctx, profile); err != nil {
		s.logger.Warn("failed to cache profile", zap.String("sid", sid), zap.Error(err))
	}
	return profile, nil
}

// tokenExpired inspects the token's exp claim without verifying the
// signature. Verification is the backend's job; this only avoids sending
// requests that are certain to come back 401.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		// Opaque tokens pass through; the backend decides.
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
