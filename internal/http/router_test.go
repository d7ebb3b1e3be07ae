package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/diagnostics"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
)

type testEnv struct {
	products *fakeProducts
	orders   *fakeOrders
	placer   *fakePlacer
	idem     *fakeIdem
	carts    *fakeCarts
	router   http.Handler
}

func newTestEnv() *testEnv {
	env := &testEnv{
		products: newFakeProducts(catalog.Product{ID: 1, Name: "Mug", Price: decimal.RequireFromString("3.5"), StockQuantity: 10}),
		orders:   &fakeOrders{},
		placer:   &fakePlacer{id: 99},
		idem:     newFakeIdem(),
	}
	env.carts = newFakeCarts(env.products)
	env.router = NewRouter(NewHandler(Deps{
		Products:    env.products,
		Orders:      env.orders,
		Checkout:    env.placer,
		Carts:       env.carts,
		Idempotency: env.idem,
		Diagnostics: diagnostics.Default(time.Now(), nil),
	}))
	return env
}

type reqOpt func(*http.Request)

func asUser(id int64) reqOpt {
	return func(r *http.Request) { r.Header.Set(HeaderUserID, fmt.Sprint(id)) }
}

func asAdmin(id int64) reqOpt {
	return func(r *http.Request) {
		r.Header.Set(HeaderUserID, fmt.Sprint(id))
		r.Header.Set(HeaderUserRole, RoleAdmin)
	}
}

func withHeader(k, v string) reqOpt {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (e *testEnv) do(t *testing.T, method, path, body string, opts ...reqOpt) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, o := range opts {
		o(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "storefront-service", decode(t, rec)["service"])
}

func TestProducts_PublicReads(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	require.Equal(t, "3.50", list[0]["price"])

	rec = env.do(t, http.MethodGet, "/api/products/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Mug", decode(t, rec)["name"])

	rec = env.do(t, http.MethodGet, "/api/products/404", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/products/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProducts_AdminWrites(t *testing.T) {
	env := newTestEnv()
	body := `{"name":"Teapot","description":"cast iron","price":"19.99","stock_quantity":4}`

	rec := env.do(t, http.MethodPost, "/api/products", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", body, asUser(2))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", body, asAdmin(1))
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode(t, rec)
	require.Equal(t, "19.99", created["price"])
	require.EqualValues(t, 4, created["stock_quantity"])

	rec = env.do(t, http.MethodPost, "/api/products", `{"name":"","price":"1"}`, asAdmin(1))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", `{"name":"x","price":"-1"}`, asAdmin(1))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/products", `{"name":"x","price":"3.555"}`, asAdmin(1))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/products/1", `{"name":"Big Mug","price":4,"stock_quantity":3}`, asAdmin(1))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "4.00", decode(t, rec)["price"])

	rec = env.do(t, http.MethodPut, "/api/products/77", body, asAdmin(1))
	require.Equal(t, http.StatusNotFound, rec.Code)

	env.products.inUse[1] = true
	rec = env.do(t, http.MethodDelete, "/api/products/1", "", asAdmin(1))
	require.Equal(t, http.StatusConflict, rec.Code)

	env.products.inUse[1] = false
	rec = env.do(t, http.MethodDelete, "/api/products/1", "", asAdmin(1))
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPlaceOrder_RequiresIdentity(t *testing.T) {
	env := newTestEnv()
	body := `{"items":[{"product_id":1,"quantity":2}]}`

	rec := env.do(t, http.MethodPost, "/api/orders", body)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/orders", body, withHeader(HeaderUserID, "bob"))
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	require.Zero(t, env.placer.calls)
}

func TestPlaceOrder_Success(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodPost, "/api/orders",
		`{"items":[{"product_id":1,"quantity":2,"price":"0.01"},{"product_id":3,"quantity":1}]}`, asUser(5))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.EqualValues(t, 99, decode(t, rec)["order_id"])

	require.Equal(t, int64(5), env.placer.userID)
	require.Equal(t, []checkout.CartLine{{ProductID: 1, Quantity: 2}, {ProductID: 3, Quantity: 1}}, env.placer.lines)
}

func TestPlaceOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"empty", checkout.ErrEmptyCart, http.StatusBadRequest, "cart is empty"},
		{"invalid line", &checkout.InvalidLineError{Index: 1, ProductID: 1, Quantity: 0}, http.StatusBadRequest, "invalid cart line"},
		{"not found", &checkout.ProductNotFoundError{ProductID: 4}, http.StatusBadRequest, "product not found"},
		{"stock", &checkout.InsufficientStockError{ProductID: 1, ProductName: "Mug", Available: 1, Requested: 2}, http.StatusBadRequest, "insufficient stock"},
		{"tx", fmt.Errorf("%w: %w", checkout.ErrTransactionFailed, errors.New("conn reset")), http.StatusInternalServerError, "failed to place order"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv()
			env.placer.err = tc.err

			rec := env.do(t, http.MethodPost, "/api/orders", `{"items":[]}`, asUser(5))
			require.Equal(t, tc.status, rec.Code)
			body := decode(t, rec)
			require.Equal(t, tc.msg, body["error"])
			require.NotContains(t, rec.Body.String(), "conn reset")
		})
	}
}

func TestPlaceOrder_InsufficientStockDetail(t *testing.T) {
	env := newTestEnv()
	env.placer.err = &checkout.InsufficientStockError{ProductID: 1, ProductName: "Mug", Available: 1, Requested: 2}

	rec := env.do(t, http.MethodPost, "/api/orders", `{"items":[{"product_id":1,"quantity":2}]}`, asUser(5))
	body := decode(t, rec)
	require.EqualValues(t, 1, body["product_id"])
	require.EqualValues(t, 1, body["available"])
	require.EqualValues(t, 2, body["requested"])
	require.Equal(t, "Mug", body["product_name"])
}

func TestPlaceOrder_MalformedBody(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodPost, "/api/orders", `{"items":`, asUser(5))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Zero(t, env.placer.calls)
}

func TestPlaceOrder_IdempotencyKey(t *testing.T) {
	env := newTestEnv()
	body := `{"items":[{"product_id":1,"quantity":1}]}`

	rec := env.do(t, http.MethodPost, "/api/orders", body, asUser(5), withHeader(HeaderIdempotencyKey, "k1"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/orders", body, asUser(5), withHeader(HeaderIdempotencyKey, "k1"))
	require.Equal(t, http.StatusOK, rec.Code)
	replay := decode(t, rec)
	require.EqualValues(t, 99, replay["order_id"])
	require.Equal(t, true, replay["replayed"])
	require.Equal(t, 1, env.placer.calls)

	env.idem.pending["k2"] = true
	rec = env.do(t, http.MethodPost, "/api/orders", body, asUser(5), withHeader(HeaderIdempotencyKey, "k2"))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, 1, env.placer.calls)
}

func TestPlaceOrder_FailedAttemptReleasesKey(t *testing.T) {
	env := newTestEnv()
	env.placer.err = &checkout.InsufficientStockError{ProductID: 1, Available: 0, Requested: 1}

	rec := env.do(t, http.MethodPost, "/api/orders", `{"items":[{"product_id":1,"quantity":1}]}`,
		asUser(5), withHeader(HeaderIdempotencyKey, "k3"))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, []string{"k3"}, env.idem.released)
	require.False(t, env.idem.pending["k3"])
}

func sampleOrders() []order.Order {
	price := decimal.RequireFromString("3.50")
	return []order.Order{
		{ID: 2, UserID: 5, Total: decimal.RequireFromString("7"), Status: order.StatusPlaced, Items: []order.LineItem{
			{ProductID: 1, ProductName: "Mug", Quantity: 2, UnitPrice: price},
		}},
		{ID: 1, UserID: 6, Total: price, Status: order.StatusPlaced, Items: []order.LineItem{
			{ProductID: 1, ProductName: "Mug", Quantity: 1, UnitPrice: price},
		}},
	}
}

func TestListOrders_ScopedByRole(t *testing.T) {
	env := newTestEnv()
	env.orders.orders = sampleOrders()

	rec := env.do(t, http.MethodGet, "/api/orders", "", asUser(5))
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	require.Equal(t, "7.00", mine[0].Total)
	require.Equal(t, "7.00", mine[0].Items[0].Subtotal)
	require.Equal(t, "Mug", mine[0].Items[0].ProductName)

	rec = env.do(t, http.MethodGet, "/api/orders", "", asAdmin(1))
	var all []orderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 2)
}

func TestGetOrder_Ownership(t *testing.T) {
	env := newTestEnv()
	env.orders.orders = sampleOrders()

	rec := env.do(t, http.MethodGet, "/api/orders/2", "", asUser(5))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/orders/1", "", asUser(5))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/orders/1", "", asAdmin(9))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/orders/123", "", asAdmin(9))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiagnostics(t *testing.T) {
	env := newTestEnv()

	rec := env.do(t, http.MethodGet, "/api/admin/diagnostics", "", asUser(5))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/diagnostics", "", asAdmin(1))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "uptime")

	rec = env.do(t, http.MethodPost, "/api/admin/diagnostics", `{"command":"uptime"}`, asAdmin(1))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "uptime", decode(t, rec)["command"])

	rec = env.do(t, http.MethodPost, "/api/admin/diagnostics", `{"command":"require('child_process')"}`, asAdmin(1))
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "unknown command", decode(t, rec)["error"])
}

func TestCorrelationIDReachesCheckout(t *testing.T) {
	var got string
	placer := placerFunc(func(ctx context.Context, _ int64, _ []checkout.CartLine) (int64, error) {
		got = events.CorrelationIDFrom(ctx)
		return 1, nil
	})
	router := NewRouter(NewHandler(Deps{Products: newFakeProducts(), Orders: &fakeOrders{}, Checkout: placer}))

	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte(`{"items":[{"product_id":1,"quantity":1}]}`)))
	req.Header.Set(HeaderUserID, "3")
	req.Header.Set(HeaderCorrelationID, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "req-42", got)
	require.Equal(t, "req-42", rec.Header().Get(HeaderCorrelationID))
}

func TestCorrelationIDGeneratedWhenMissing(t *testing.T) {
	env := newTestEnv()
	rec := env.do(t, http.MethodGet, "/health", "")
	require.NotEmpty(t, rec.Header().Get(HeaderCorrelationID))
}

func TestCORS(t *testing.T) {
	router := NewRouter(NewHandler(Deps{
		Products:         newFakeProducts(),
		Orders:           &fakeOrders{},
		Checkout:         &fakePlacer{},
		CORSAllowOrigins: []string{"https://shop.example"},
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/orders", nil)
	req.Header.Set("Origin", "https://shop.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://shop.example", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "Idempotency-Key")

	req = httptest.NewRequest(http.MethodGet, "/api/products", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
