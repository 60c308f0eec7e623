// Package sessionstore is the durable per-shopper key/value store. It plays
// the role browser local storage plays for a single-page storefront: the one
// piece of state that survives the full-page round trip to a payment gateway.
package sessionstore

import (
	"context"
	"time"
)

// Store persists string values scoped to a shopper session id. All values for
// a session share the session's lifetime; SetNX entries carry their own TTL
// and are used as one-shot markers.
type Store interface {
	// Get returns the value for the key, reporting whether it was present.
	Get(ctx context.Context, sid, key string) (string, bool, error)

	// Set stores the value for the key.
	Set(ctx context.Context, sid, key, value string) error

	// Delete removes the key. Deleting an absent key is not an error.
	Delete(ctx context.Context, sid, key string) error

	// SetNX stores the value only if the key is absent, returning true when
	// the value was newly set. Used for irreversible one-shot latches.
	SetNX(ctx context.Context, sid, key, value string, ttl time.Duration) (bool, error)

	// Close releases any resources held by the store.
	Close() error
}
