package handler

import (
	"errors"

	"github.com/jerseyarena/storefront/internal/domain/shared"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

// mapBackendError translates store backend errors into the domain taxonomy
// for handlers that proxy the backend directly.
func mapBackendError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storeapi.ErrUnauthorized):
		return shared.ErrAuthInvalid
	case errors.Is(err, storeapi.ErrNotFound):
		return shared.ErrNotFound
	default:
		if msg := storeapi.BackendMessage(err); msg != "" {
			return shared.NewDomainError("INVALID_INPUT", msg)
		}
		return err
	}
}
