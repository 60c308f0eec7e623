package checkout

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcart "github.com/jerseyarena/storefront/internal/application/cart"
	appsession "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/domain/shared"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

type fixture struct {
	svc      *Service
	sessions *appsession.Service
	carts    *appcart.Service
	store    *sessionstore.MemoryStore

	mu            sync.Mutex
	sessionCalls  int
	esewaCalls    int
	gatewayStatus int
	emptyCart     bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	token := header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."

	f := &fixture{store: sessionstore.NewMemoryStore()}
	t.Cleanup(func() { f.store.Close() })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		switch r.URL.Path {
		case "/auth/jwt/create/":
			json.NewEncoder(w).Encode(map[string]string{"access": token})
		case "/api/me/":
			fmt.Fprint(w, `{"id":1,"username":"alice","email":"a@example.com","profile":{"tier":"Silver","loyalty_points":0}}`)
		case "/api/cart/my_cart/":
			if f.emptyCart {
				fmt.Fprint(w, `{"id":42,"items":[]}`)
				return
			}
			fmt.Fprint(w, `{"id":42,"items":[{"id":1,"sku":{"id":9,"name":"Home Jersey","price":"120.00","custom_printing_cost":"15.00","stock_quantity":5},"quantity":1,"custom_name":"","custom_number":""}]}`)
		case "/api/payment/create-checkout-session/":
			f.sessionCalls++
			if f.gatewayStatus != 0 {
				w.WriteHeader(f.gatewayStatus)
				json.NewEncoder(w).Encode(map[string]string{"error": "gateway refused"})
				return
			}
			json.NewEncoder(w).Encode(map[string]string{"url": "https://checkout.example.com/s/abc"})
		case "/api/payment/process-esewa/":
			f.esewaCalls++
			fmt.Fprint(w, `{"esewa_url":"https://gateway.example.com/pay","amount":"130","signature":"c2ln"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	api, err := storeapi.NewClient(&storeapi.Config{BaseURL: srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	f.sessions = appsession.NewService(api, f.store, nil)
	f.carts = appcart.NewService(api, f.store, f.sessions, nil)
	f.sessions.Subscribe(f.carts.AuthSubscriber())
	f.svc = NewService(api, f.store, f.sessions, f.carts, nil)
	return f
}

func (f *fixture) login(t *testing.T, sid string) {
	t.Helper()
	_, err := f.sessions.Login(context.Background(), sid, "alice", "pw")
	require.NoError(t, err)
}

func (f *fixture) backendCalls() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sessionCalls, f.esewaCalls
}

func TestCheckout_HostedGateway(t *testing.T) {
	f := newFixture(t)
	f.login(t, "sid-1")

	dispatch, err := f.svc.Checkout(context.Background(), "sid-1", GatewayStripe)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/s/abc", dispatch.RedirectURL)
	assert.Empty(t, dispatch.FormHTML)

	// The pending cart id survives for the reconciler.
	id, present, err := f.carts.PendingCartID(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "42", id)
}

func TestCheckout_FormGateway(t *testing.T) {
	f := newFixture(t)
	f.login(t, "sid-1")

	dispatch, err := f.svc.Checkout(context.Background(), "sid-1", GatewayEsewa)
	require.NoError(t, err)
	assert.Empty(t, dispatch.RedirectURL)
	assert.Contains(t, dispatch.FormHTML, `action="https://gateway.example.com/pay"`)
	assert.Contains(t, dispatch.FormHTML, `name="signature"`)
	assert.NotContains(t, dispatch.FormHTML, "esewa_url")
}

func TestCheckout_Unauthenticated(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), "sid-1", GatewayStripe)
	assert.ErrorIs(t, err, shared.ErrUnauthorized)

	sessions, esewa := f.backendCalls()
	assert.Zero(t, sessions+esewa)
}

func TestCheckout_EmptyCart(t *testing.T) {
	f := newFixture(t)
	f.mu.Lock()
	f.emptyCart = true
	f.mu.Unlock()
	f.login(t, "sid-1")

	before, _ := f.backendCalls()
	_, err := f.svc.Checkout(context.Background(), "sid-1", GatewayStripe)
	assert.ErrorIs(t, err, shared.ErrCartEmpty)

	after, _ := f.backendCalls()
	assert.Equal(t, before, after)
}

func TestCheckout_NullSentinelPendingID_NoBackendCall(t *testing.T) {
	f := newFixture(t)
	f.login(t, "sid-1")
	ctx := context.Background()

	// A browser client historically persisted the literal string "null".
	// Write it raw, bypassing the typed accessor's filtering.
	require.NoError(t, f.store.Set(ctx, "sid-1", "active_cart_id", "null"))

	before, _ := f.backendCalls()
	_, err := f.svc.Checkout(ctx, "sid-1", GatewayStripe)
	assert.ErrorIs(t, err, shared.ErrCartSessionExpired)

	after, _ := f.backendCalls()
	assert.Equal(t, before, after, "an expired cart session must not reach the gateway")
}

func TestCheckout_GatewayRejection(t *testing.T) {
	f := newFixture(t)
	f.login(t, "sid-1")

	f.mu.Lock()
	f.gatewayStatus = http.StatusBadRequest
	f.mu.Unlock()

	_, err := f.svc.Checkout(context.Background(), "sid-1", GatewayStripe)
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, shared.ErrGatewayError.Code, derr.Code)
	assert.Contains(t, derr.Message, "gateway refused")
}

func TestCheckout_UnknownGateway(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Checkout(context.Background(), "sid-1", Gateway("paypal"))
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, shared.ErrInvalidInput.Code, derr.Code)
}

func TestBuyNow_InstantCheckout(t *testing.T) {
	f := newFixture(t)
	f.login(t, "sid-1")

	dispatch, err := f.svc.BuyNow(context.Background(), "sid-1", "9", 1)
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example.com/s/abc", dispatch.RedirectURL)
}

func TestBuyNow_Validation(t *testing.T) {
	f := newFixture(t)
	f.login(t, "sid-1")

	_, err := f.svc.BuyNow(context.Background(), "sid-1", "", 1)
	assert.Error(t, err)
	_, err = f.svc.BuyNow(context.Background(), "sid-1", "9", 0)
	assert.Error(t, err)
}
