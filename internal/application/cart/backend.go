package cart

import (
	"context"
	"errors"

	"github.com/jerseyarena/storefront/internal/domain/cart"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

// Backend is the capability a cart mutation needs: where the lines live.
// The service selects the implementation per call from the session's auth
// state, so the mutation methods never branch on it themselves.
type Backend interface {
	// Fetch returns the authoritative lines and, for a server-backed cart,
	// the active cart id.
	Fetch(ctx context.Context) ([]cart.Line, string, error)

	// AddItem applies a quantity delta and returns the resulting lines.
	AddItem(ctx context.Context, variant cart.Variant, delta int, customName, customNumber string) ([]cart.Line, string, error)

	// RemoveItem removes a line entirely and returns the resulting lines.
	RemoveItem(ctx context.Context, lineID string) ([]cart.Line, string, error)
}

// localBackend keeps the guest cart as a snapshot in the session store.
type localBackend struct {
	st *sessionstore.ShopperState
}

func (b *localBackend) Fetch(ctx context.Context) ([]cart.Line, string, error) {
	lines, err := b.st.GuestCart(ctx)
	return lines, "", err
}

func (b *localBackend) AddItem(ctx context.Context, variant cart.Variant, delta int, customName, customNumber string) ([]cart.Line, string, error) {
	lines, err := b.st.GuestCart(ctx)
	if err != nil {
		return nil, "", err
	}
	lines = cart.Merge(lines, variant, delta, customName, customNumber)
	if err := b.st.SaveGuestCart(ctx, lines); err != nil {
		return nil, "", err
	}
	return lines, "", nil
}

func (b *localBackend) RemoveItem(ctx context.Context, lineID string) ([]cart.Line, string, error) {
	lines, err := b.st.GuestCart(ctx)
	if err != nil {
		return nil, "", err
	}
	lines = cart.Remove(lines, lineID)
	if err := b.st.SaveGuestCart(ctx, lines); err != nil {
		return nil, "", err
	}
	return lines, "", nil
}

// remoteBackend delegates to the store backend. Mutations are never
// optimistic: every mutation re-fetches the authoritative cart so
// server-only fields (stock, price) stay correct.
type remoteBackend struct {
	api   *storeapi.Client
	token string
}

func (b *remoteBackend) Fetch(ctx context.Context) ([]cart.Line, string, error) {
	remote, err := b.api.MyCart(ctx, b.token)
	if err != nil {
		if errors.Is(err, storeapi.ErrNotFound) {
			return []cart.Line{}, "", nil
		}
		return nil, "", err
	}
	return remote.Lines(), remote.CartID(), nil
}

func (b *remoteBackend) AddItem(ctx context.Context, variant cart.Variant, delta int, customName, customNumber string) ([]cart.Line, string, error) {
	err := b.api.AddItem(ctx, b.token, storeapi.AddItemRequest{
		SKUID:        variant.ID,
		Quantity:     delta,
		CustomName:   customName,
		CustomNumber: customNumber,
	})
	if err != nil {
		return nil, "", err
	}
	return b.Fetch(ctx)
}

func (b *remoteBackend) RemoveItem(ctx context.Context, lineID string) ([]cart.Line, string, error) {
	if err := b.api.DeleteCartItem(ctx, b.token, lineID); err != nil && !errors.Is(err, storeapi.ErrNotFound) {
		return nil, "", err
	}
	return b.Fetch(ctx)
}
