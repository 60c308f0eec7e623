package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	cartapp "github.com/jerseyarena/storefront/internal/application/cart"
	checkoutapp "github.com/jerseyarena/storefront/internal/application/checkout"
	reconcileapp "github.com/jerseyarena/storefront/internal/application/reconcile"
	sessionapp "github.com/jerseyarena/storefront/internal/application/session"
	"github.com/jerseyarena/storefront/internal/infrastructure/sessionstore"
	"github.com/jerseyarena/storefront/internal/infrastructure/storeapi"
	"github.com/jerseyarena/storefront/internal/interfaces/http/dto"
	"github.com/jerseyarena/storefront/internal/interfaces/http/middleware"
	"github.com/jerseyarena/storefront/internal/interfaces/http/router"
)

const testCookie = "storefront_sid"

// fakeStore is a minimal in-memory rendition of the store backend REST API.
type fakeStore struct {
	mu          sync.Mutex
	srv         *httptest.Server
	cartID      int64
	nextItemID  int64
	items       []map[string]any
	verifyCalls int
	orders      []map[string]any
}

func newFakeStore(t *testing.T) *fakeStore {
	t.Helper()
	fs := &fakeStore{cartID: 42, nextItemID: 1}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /auth/jwt/create/", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] == "wrong" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"detail": "No active account found"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access": "token-" + req["username"]})
	})
	mux.HandleFunc("POST /auth/users/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": 1})
	})
	mux.HandleFunc("GET /api/me/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id": 7, "username": "casey", "email": "casey@example.com",
			"profile": map[string]any{"tier": "Gold", "loyalty_points": 120},
		})
	})
	mux.HandleFunc("GET /api/cart/my_cart/", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"id": fs.cartID, "items": fs.items})
	})
	mux.HandleFunc("POST /api/cart/add_item/", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		fs.mu.Lock()
		defer fs.mu.Unlock()
		skuID, _ := strconv.Atoi(fmt.Sprintf("%v", req["sku_id"]))
		item := map[string]any{
			"id": fs.nextItemID,
			"sku": map[string]any{
				"id": skuID, "name": "Home Jersey", "price": "60.00",
				"custom_printing_cost": "15.00", "stock_quantity": 10,
			},
			"quantity":      req["quantity"],
			"custom_name":   req["custom_name"],
			"custom_number": req["custom_number"],
		}
		fs.nextItemID++
		fs.items = append(fs.items, item)
		_ = json.NewEncoder(w).Encode(map[string]any{"id": fs.cartID, "items": fs.items})
	})
	mux.HandleFunc("DELETE /api/cart_items/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /api/payment/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "active", "is_converted": false})
	})
	mux.HandleFunc("POST /api/payment/create-checkout-session/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"url": "https://checkout.stripe.test/cs_123"})
	})
	mux.HandleFunc("POST /api/payment/process-esewa/", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"esewa_url": "https://rc.esewa.test/api/epay/main",
			"amount":    "150.00",
			"signature": "c2ln",
		})
	})
	mux.HandleFunc("POST /api/payments/verify-payment/", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		fs.verifyCalls++
		fs.items = nil
		fs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"order_id": 77, "message": "Payment confirmed"})
	})
	mux.HandleFunc("GET /api/orders/", func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		defer fs.mu.Unlock()
		if strings.TrimPrefix(r.URL.Path, "/api/orders/") != "" {
			_ = json.NewEncoder(w).Encode(fs.orders[0])
			return
		}
		_ = json.NewEncoder(w).Encode(fs.orders)
	})

	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

// rig is a full HTTP stack against the fake backend: real middleware, real
// services, an in-memory session store.
type rig struct {
	engine  *gin.Engine
	backend *fakeStore
	store   sessionstore.Store
	sid     string
}

func newRig(t *testing.T) *rig {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()

	backend := newFakeStore(t)
	api, err := storeapi.NewClient(&storeapi.Config{BaseURL: backend.srv.URL})
	require.NoError(t, err)

	store := sessionstore.NewMemoryStore()
	t.Cleanup(func() { _ = store.Close() })

	sessions := sessionapp.NewService(api, store, nil)
	carts := cartapp.NewService(api, store, sessions, nil)
	sessions.Subscribe(carts.AuthSubscriber())
	checkouts := checkoutapp.NewService(api, store, sessions, carts, nil)
	reconciler := reconcileapp.NewService(api, store, sessions, carts, nil,
		reconcileapp.WithSuccessPath("/order-confirmed"))

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Session(middleware.SessionConfig{CookieName: testCookie}))
	system := NewSystemHandler("storefront", "test", store)
	engine.GET("/health", system.Health)
	engine.GET("/ready", system.Ready)

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(NewAuthHandler(sessions)).
		Register(NewCartHandler(carts, sessions)).
		Register(NewCheckoutHandler(checkouts)).
		Register(NewPaymentReturnHandler(reconciler)).
		Register(NewOrderHandler(api, sessions))
	r.Setup()

	return &rig{engine: engine, backend: backend, store: store, sid: uuid.NewString()}
}

func (rg *rig) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: testCookie, Value: rg.sid})
	w := httptest.NewRecorder()
	rg.engine.ServeHTTP(w, req)
	return w
}

func (rg *rig) login(t *testing.T) {
	t.Helper()
	w := rg.do(t, http.MethodPost, "/api/v1/auth/login",
		gin.H{"username": "casey", "password": "secret"})
	require.Equal(t, http.StatusOK, w.Code)
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}
