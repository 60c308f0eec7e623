package sessionstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jerseyarena/storefront/internal/domain/cart"
	"github.com/jerseyarena/storefront/internal/domain/session"
)

// Storage keys. These mirror the keys the storefront persists per shopper:
// the bearer token, the pending cart id that must survive the payment
// redirect, the guest cart snapshot and the ghost-cleanup guard.
const (
	keyToken        = "access_token"
	keyProfile      = "profile"
	keyPendingCart  = "active_cart_id"
	keyGuestCart    = "guest_cart"
	keyCleanupGuard = "ghost_cleanup"
	keyLastVerify   = "last_verification"

	verifyMarkerPrefix = "verified:"
	verifyMarkerTTL    = 24 * time.Hour
)

// GuardState is the ghost-cleanup latch. Unlike the verification latch it is
// reversible: a failed check resets it to idle so a later attempt can retry,
// and logout resets it entirely.
type GuardState string

const (
	GuardIdle       GuardState = "idle"
	GuardInProgress GuardState = "in_progress"
	GuardDone       GuardState = "done"
)

// ShopperState is a typed view over one shopper's entries in the Store.
// It filters the legacy "null"/"undefined" string sentinels that a browser
// client historically persisted in place of an absent value.
type ShopperState struct {
	store Store
	sid   string
}

// NewShopperState returns the typed state accessor for a session id.
func NewShopperState(store Store, sid string) *ShopperState {
	return &ShopperState{store: store, sid: sid}
}

// SID returns the session id this state is scoped to.
func (s *ShopperState) SID() string {
	return s.sid
}

func isSentinel(v string) bool {
	return v == "" || v == "null" || v == "undefined"
}

// Token returns the persisted bearer token, if any.
func (s *ShopperState) Token(ctx context.Context) (string, bool, error) {
	v, ok, err := s.store.Get(ctx, s.sid, keyToken)
	if err != nil || !ok || isSentinel(v) {
		return "", false, err
	}
	return v, true, nil
}

// SetToken persists the bearer token.
func (s *ShopperState) SetToken(ctx context.Context, token string) error {
	return s.store.Set(ctx, s.sid, keyToken, token)
}

// ClearToken removes the bearer token.
func (s *ShopperState) ClearToken(ctx context.Context) error {
	return s.store.Delete(ctx, s.sid, keyToken)
}

// Profile returns the cached profile snapshot, if any.
func (s *ShopperState) Profile(ctx context.Context) (*session.Profile, bool, error) {
	v, ok, err := s.store.Get(ctx, s.sid, keyProfile)
	if err != nil || !ok {
		return nil, false, err
	}
	var p session.Profile
	if err := json.Unmarshal([]byte(v), &p); err != nil {
		return nil, false, fmt.Errorf("corrupt profile snapshot: %w", err)
	}
	return &p, true, nil
}

// SaveProfile persists the profile snapshot.
func (s *ShopperState) SaveProfile(ctx context.Context, p *session.Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode profile: %w", err)
	}
	return s.store.Set(ctx, s.sid, keyProfile, string(data))
}

// ClearProfile removes the profile snapshot.
func (s *ShopperState) ClearProfile(ctx context.Context) error {
	return s.store.Delete(ctx, s.sid, keyProfile)
}

// PendingCartID returns the persisted pending cart id. Sentinel values are
// treated as absent.
func (s *ShopperState) PendingCartID(ctx context.Context) (string, bool, error) {
	v, ok, err := s.store.Get(ctx, s.sid, keyPendingCart)
	if err != nil || !ok || isSentinel(v) {
		return "", false, err
	}
	return v, true, nil
}

// SetPendingCartID persists the pending cart id. Persisting a sentinel value
// clears the entry instead.
func (s *ShopperState) SetPendingCartID(ctx context.Context, id string) error {
	if isSentinel(id) {
		return s.ClearPendingCartID(ctx)
	}
	return s.store.Set(ctx, s.sid, keyPendingCart, id)
}

// ClearPendingCartID removes the pending cart id.
func (s *ShopperState) ClearPendingCartID(ctx context.Context) error {
	return s.store.Delete(ctx, s.sid, keyPendingCart)
}

// GuestCart returns the persisted guest cart snapshot. A missing or corrupt
// snapshot yields an empty cart.
func (s *ShopperState) GuestCart(ctx context.Context) ([]cart.Line, error) {
	v, ok, err := s.store.Get(ctx, s.sid, keyGuestCart)
	if err != nil || !ok {
		return nil, err
	}
	var lines []cart.Line
	if err := json.Unmarshal([]byte(v), &lines); err != nil {
		// A snapshot that fails to decode is unrecoverable local state.
		return nil, nil
	}
	return lines, nil
}

// SaveGuestCart persists the guest cart snapshot.
func (s *ShopperState) SaveGuestCart(ctx context.Context, lines []cart.Line) error {
	if lines == nil {
		lines = []cart.Line{}
	}
	data, err := json.Marshal(lines)
	if err != nil {
		return fmt.Errorf("failed to encode guest cart: %w", err)
	}
	return s.store.Set(ctx, s.sid, keyGuestCart, string(data))
}

// ClearGuestCart removes the guest cart snapshot.
func (s *ShopperState) ClearGuestCart(ctx context.Context) error {
	return s.store.Delete(ctx, s.sid, keyGuestCart)
}

// CleanupGuard returns the ghost-cleanup latch state, defaulting to idle.
func (s *ShopperState) CleanupGuard(ctx context.Context) (GuardState, error) {
	v, ok, err := s.store.Get(ctx, s.sid, keyCleanupGuard)
	if err != nil || !ok {
		return GuardIdle, err
	}
	switch GuardState(v) {
	case GuardInProgress, GuardDone:
		return GuardState(v), nil
	default:
		return GuardIdle, nil
	}
}

// SetCleanupGuard stores the ghost-cleanup latch state. Setting GuardIdle
// removes the entry.
func (s *ShopperState) SetCleanupGuard(ctx context.Context, g GuardState) error {
	if g == GuardIdle {
		return s.store.Delete(ctx, s.sid, keyCleanupGuard)
	}
	return s.store.Set(ctx, s.sid, keyCleanupGuard, string(g))
}

// MarkVerificationStarted records that post-payment verification has begun
// for the given one-time gateway reference. Returns true only for the first
// caller; the marker is never removed, making the latch irreversible.
func (s *ShopperState) MarkVerificationStarted(ctx context.Context, ref string) (bool, error) {
	return s.store.SetNX(ctx, s.sid, verifyMarkerPrefix+ref, "1", verifyMarkerTTL)
}

// SaveVerificationResult persists the terminal result of the most recent
// verification attempt so duplicate triggers can replay it.
func (s *ShopperState) SaveVerificationResult(ctx context.Context, result any) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode verification result: %w", err)
	}
	return s.store.Set(ctx, s.sid, keyLastVerify, string(data))
}

// VerificationResult loads the most recent verification result into out.
func (s *ShopperState) VerificationResult(ctx context.Context, out any) (bool, error) {
	v, ok, err := s.store.Get(ctx, s.sid, keyLastVerify)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(v), out); err != nil {
		return false, fmt.Errorf("corrupt verification result: %w", err)
	}
	return true, nil
}
