package cart

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsession "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/domain/cart"
	"github.com/jerseyarena/storefront/internal/domain/shared"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
)

func intPtr(v int) *int { return &v }

func testVariant(id string, price int64, stock *int) cart.Variant {
	return cart.Variant{
		ID:          id,
		Name:        "Jersey " + id,
		Price:       decimal.NewFromInt(price),
		PrintingFee: decimal.NewFromInt(15),
		Stock:       stock,
	}
}

func longLivedToken(t *testing.T) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(map[string]any{"exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)
	return header + "." + base64.RawURLEncoding.EncodeToString(payload) + "."
}

// fakeBackend is a minimal stateful store backend: one server cart per
// bearer token, plus call counters for the at-most-once assertions.
type fakeBackend struct {
	mu sync.Mutex

	cartID     int64
	items      []map[string]any
	nextItemID int64

	addCalls    int
	myCartCalls int
	statusCalls int

	cartStatus    *storeapi.CartStatus
	statusErrCode int
	myCartMissing bool

	srv *httptest.Server
}

func newFakeBackend(t *testing.T, token string) *fakeBackend {
	t.Helper()
	f := &fakeBackend{cartID: 42, nextItemID: 1}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.URL.Path == "/auth/jwt/create/":
			json.NewEncoder(w).Encode(map[string]string{"access": token})
		case r.URL.Path == "/api/me/":
			fmt.Fprint(w, `{"id":1,"username":"alice","email":"a@example.com","profile":{"tier":"Gold","loyalty_points":0}}`)
		case r.URL.Path == "/api/cart/my_cart/":
			f.myCartCalls++
			if f.myCartMissing {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"id": f.cartID, "items": f.items})
		case r.URL.Path == "/api/cart/add_item/":
			f.addCalls++
			var req map[string]any
			json.NewDecoder(r.Body).Decode(&req)
			skuID, _ := strconv.Atoi(fmt.Sprintf("%v", req["sku_id"]))
			f.items = append(f.items, map[string]any{
				"id": f.nextItemID,
				"sku": map[string]any{
					"id":                   skuID,
					"name":                 "Jersey",
					"price":                "120.00",
					"custom_printing_cost": "15.00",
					"stock_quantity":       10,
				},
				"quantity":      req["quantity"],
				"custom_name":   req["custom_name"],
				"custom_number": req["custom_number"],
			})
			f.nextItemID++
			w.WriteHeader(http.StatusCreated)
		case strings.Contains(r.URL.Path, "/check-status/"):
			f.statusCalls++
			if f.statusErrCode != 0 {
				w.WriteHeader(f.statusErrCode)
				return
			}
			json.NewEncoder(w).Encode(f.cartStatus)
		case strings.HasPrefix(r.URL.Path, "/api/cart_items/"):
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

type cartFixture struct {
	svc      *Service
	sessions *appsession.Service
	store    *sessionstore.MemoryStore
	backend  *fakeBackend
	token    string
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	token := longLivedToken(t)
	fb := newFakeBackend(t, token)

	api, err := storeapi.NewClient(&storeapi.Config{BaseURL: fb.srv.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)

	store := sessionstore.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	sessions := appsession.NewService(api, store, nil)
	svc := NewService(api, store, sessions, nil)
	sessions.Subscribe(svc.AuthSubscriber())

	return &cartFixture{svc: svc, sessions: sessions, store: store, backend: fb, token: token}
}

func TestGuestAddItem_MatchesReferenceSimulation(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	v1 := testVariant("1", 120, intPtr(10))
	v2 := testVariant("2", 80, intPtr(10))

	// Reference: map keyed by (variant, customName, customNumber).
	type key struct{ id, name, num string }
	ref := map[key]int{}
	apply := func(id string, v cart.Variant, delta int, name, num string) {
		name, num = cart.NormalizeCustomization(name, num)
		k := key{v.ID, name, num}
		ref[k] += delta
		if ref[k] <= 0 {
			delete(ref, k)
		}
		if delta != 0 {
			f.svc.AddItem(ctx, id, v, delta, name, num)
		}
	}

	apply("sid-1", v1, 1, "", "")
	apply("sid-1", v1, 2, "", "")
	apply("sid-1", v1, 1, "ronaldo ", "9")
	apply("sid-1", v2, 1, "", "")
	apply("sid-1", v1, -1, "", "")
	apply("sid-1", v2, -5, "", "")

	lines, err := f.svc.Lines(ctx, "sid-1")
	require.NoError(t, err)
	require.Len(t, lines, len(ref))
	for _, l := range lines {
		assert.Equal(t, ref[key{l.Variant.ID, l.CustomName, l.CustomNumber}], l.Quantity)
	}
}

func TestGuestAddItem_DistinctCustomizationIsDistinctLine(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	v1 := testVariant("1", 120, intPtr(10))

	_, err := f.svc.AddItem(ctx, "sid-1", v1, 1, "", "")
	require.NoError(t, err)
	lines, err := f.svc.AddItem(ctx, "sid-1", v1, 1, "RONALDO", "9")
	require.NoError(t, err)

	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Quantity)
	assert.Equal(t, 1, lines[1].Quantity)
	assert.NotEqual(t, lines[0].ID, lines[1].ID)
}

func TestGuestAddItem_NormalizesCustomization(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	v1 := testVariant("1", 120, intPtr(10))

	_, err := f.svc.AddItem(ctx, "sid-1", v1, 1, "ronaldo", " 9 ")
	require.NoError(t, err)
	lines, err := f.svc.AddItem(ctx, "sid-1", v1, 1, " RONALDO ", "9")
	require.NoError(t, err)

	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "RONALDO", lines[0].CustomName)
	assert.Equal(t, "9", lines[0].CustomNumber)
}

func TestAddItem_StockExceeded_NoBackendCall(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	v1 := testVariant("1", 120, intPtr(3))

	_, err := f.svc.AddItem(ctx, "sid-1", v1, 2, "", "")
	require.NoError(t, err)

	_, err = f.svc.AddItem(ctx, "sid-1", v1, 2, "", "")
	assert.ErrorIs(t, err, shared.ErrStockExceeded)
	assert.Zero(t, f.backend.addCalls)

	// The rejected mutation left the cart untouched.
	lines, err := f.svc.Lines(ctx, "sid-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestAddItem_Authenticated_DelegatesAndRefetches(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Login(ctx, "sid-1", "alice", "pw")
	require.NoError(t, err)

	lines, err := f.svc.AddItem(ctx, "sid-1", testVariant("7", 120, intPtr(10)), 2, "messi", "10")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "1", lines[0].ID, "line id must come from the server, not be minted locally")
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "MESSI", lines[0].CustomName)

	id, present, err := f.svc.PendingCartID(ctx, "sid-1")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "42", id)
}

func TestSync_NotFoundClearsPendingCartID(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Login(ctx, "sid-1", "alice", "pw")
	require.NoError(t, err)

	st := sessionstore.NewShopperState(f.store, "sid-1")
	require.NoError(t, st.SetPendingCartID(ctx, "42"))

	f.backend.mu.Lock()
	f.backend.myCartMissing = true
	f.backend.mu.Unlock()

	lines, err := f.svc.Sync(ctx, "sid-1")
	require.NoError(t, err)
	assert.Empty(t, lines)

	_, present, err := st.PendingCartID(ctx)
	require.NoError(t, err)
	assert.False(t, present)
}

func TestSync_Idempotent(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	v1 := testVariant("1", 120, intPtr(10))

	_, err := f.svc.AddItem(ctx, "sid-1", v1, 2, "", "")
	require.NoError(t, err)

	first, err := f.svc.Sync(ctx, "sid-1")
	require.NoError(t, err)
	second, err := f.svc.Sync(ctx, "sid-1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.Sync(ctx, "sid-1")
		}()
	}
	wg.Wait()

	lines, err := f.svc.Lines(ctx, "sid-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestCleanupGhostCart_AtMostOncePerLogin(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Login(ctx, "sid-1", "alice", "pw")
	require.NoError(t, err)

	st := sessionstore.NewShopperState(f.store, "sid-1")
	require.NoError(t, st.SetCleanupGuard(ctx, sessionstore.GuardIdle))
	require.NoError(t, st.SetPendingCartID(ctx, "42"))

	f.backend.mu.Lock()
	f.backend.cartStatus = &storeapi.CartStatus{Status: "active", IsConverted: false}
	f.backend.statusCalls = 0
	f.backend.mu.Unlock()

	require.NoError(t, f.svc.CleanupGhostCart(ctx, "sid-1"))
	require.NoError(t, f.svc.CleanupGhostCart(ctx, "sid-1"))

	f.backend.mu.Lock()
	calls := f.backend.statusCalls
	f.backend.mu.Unlock()
	assert.Equal(t, 1, calls, "guard must hold across repeated invocations")
}

func TestCleanupGhostCart_GuardResetsOnFailure(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Login(ctx, "sid-1", "alice", "pw")
	require.NoError(t, err)

	st := sessionstore.NewShopperState(f.store, "sid-1")
	require.NoError(t, st.SetCleanupGuard(ctx, sessionstore.GuardIdle))
	require.NoError(t, st.SetPendingCartID(ctx, "42"))

	f.backend.mu.Lock()
	f.backend.statusErrCode = http.StatusInternalServerError
	f.backend.statusCalls = 0
	f.backend.mu.Unlock()

	require.Error(t, f.svc.CleanupGhostCart(ctx, "sid-1"))

	guard, err := st.CleanupGuard(ctx)
	require.NoError(t, err)
	assert.Equal(t, sessionstore.GuardIdle, guard)

	// A later attempt retries the check.
	f.backend.mu.Lock()
	f.backend.statusErrCode = 0
	f.backend.cartStatus = &storeapi.CartStatus{Status: "completed", IsConverted: true}
	f.backend.mu.Unlock()

	require.NoError(t, f.svc.CleanupGhostCart(ctx, "sid-1"))

	f.backend.mu.Lock()
	calls := f.backend.statusCalls
	f.backend.mu.Unlock()
	assert.Equal(t, 2, calls)

	_, present, err := st.PendingCartID(ctx)
	require.NoError(t, err)
	assert.False(t, present, "converted ghost cart id must be cleared")
}

func TestCleanupGhostCart_CartGoneClearsPendingID(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Login(ctx, "sid-1", "alice", "pw")
	require.NoError(t, err)

	st := sessionstore.NewShopperState(f.store, "sid-1")
	require.NoError(t, st.SetCleanupGuard(ctx, sessionstore.GuardIdle))
	require.NoError(t, st.SetPendingCartID(ctx, "999"))

	f.backend.mu.Lock()
	f.backend.statusErrCode = http.StatusNotFound
	f.backend.mu.Unlock()

	require.NoError(t, f.svc.CleanupGhostCart(ctx, "sid-1"))

	_, present, err := st.PendingCartID(ctx)
	require.NoError(t, err)
	assert.False(t, present)

	guard, err := st.CleanupGuard(ctx)
	require.NoError(t, err)
	assert.Equal(t, sessionstore.GuardDone, guard)
}

func TestLogin_MergesGuestCartIntoServerCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.svc.AddItem(ctx, "sid-1", testVariant("1", 120, intPtr(10)), 2, "", "")
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "sid-1", testVariant("2", 80, intPtr(10)), 1, "MESSI", "10")
	require.NoError(t, err)

	_, err = f.sessions.Login(ctx, "sid-1", "alice", "pw")
	require.NoError(t, err)

	f.backend.mu.Lock()
	adds := f.backend.addCalls
	f.backend.mu.Unlock()
	assert.Equal(t, 2, adds, "each guest line is pushed to the server cart")

	guest, err := sessionstore.NewShopperState(f.store, "sid-1").GuestCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, guest, "guest snapshot cleared after a successful merge")

	lines, err := f.svc.Lines(ctx, "sid-1")
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestLogout_FallsBackToGuestCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	_, err := f.sessions.Login(ctx, "sid-1", "alice", "pw")
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "sid-1", testVariant("7", 120, intPtr(10)), 1, "", "")
	require.NoError(t, err)

	require.NoError(t, f.sessions.Logout(ctx, "sid-1"))

	lines, err := f.svc.Lines(ctx, "sid-1")
	require.NoError(t, err)
	assert.Empty(t, lines, "server cart is not visible to the guest session")
}

func TestTotals_GoldDiscountAndShipping(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()

	// Guest, subtotal 140 (not above threshold): shipping applies.
	_, err := f.svc.AddItem(ctx, "sid-1", testVariant("1", 140, intPtr(10)), 1, "", "")
	require.NoError(t, err)

	totals, lines, err := f.svc.Totals(ctx, "sid-1")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.True(t, totals.Grand.Equal(decimal.NewFromInt(150)), "got %s", totals.Grand)

	// Authenticated Gold shopper, subtotal 160: free shipping, 10% off.
	_, err = f.sessions.Login(ctx, "sid-2", "alice", "pw")
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, "sid-2", testVariant("2", 160, intPtr(10)), 1, "", "")
	require.NoError(t, err)

	f.backend.mu.Lock()
	f.backend.items[len(f.backend.items)-1]["sku"].(map[string]any)["price"] = "160.00"
	f.backend.mu.Unlock()
	_, err = f.svc.Sync(ctx, "sid-2")
	require.NoError(t, err)

	totals, _, err = f.svc.Totals(ctx, "sid-2")
	require.NoError(t, err)
	assert.True(t, totals.Grand.Equal(decimal.NewFromInt(144)), "got %s", totals.Grand)
}
