package httpx_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-core/internal/app"
	"github.com/ariefcatur/go-shop-core/internal/config"
	"github.com/ariefcatur/go-shop-core/internal/httpx"
	"github.com/ariefcatur/go-shop-core/internal/orders"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		ServiceName:    "test",
		StoreBackend:   config.BackendMemory,
		CacheBackend:   config.BackendMemory,
		EntityCacheTTL: time.Hour,
	}
	a, err := app.Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	r := httpx.NewRouter()
	(&httpx.OrdersHandler{Service: a.Orders, Log: zap.NewNop()}).Register(r)
	(&httpx.CatalogHandler{Catalog: a.Catalog, Log: zap.NewNop()}).Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any, out any) int {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

type errBody struct {
	Error     string `json:"error"`
	Requested int    `json:"requested"`
	Available *int   `json:"available"`
}

func seed(t *testing.T, srv *httptest.Server, stock int) (orders.User, orders.Product) {
	t.Helper()
	var u orders.User
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/users", map[string]any{"email": "b@example.com", "name": "B"}, &u))
	var p orders.Product
	require.Equal(t, http.StatusCreated, do(t, srv, http.MethodPost, "/products", map[string]any{
		"name": "Lamp", "price": "20.00", "stock": stock, "is_available": true,
	}, &p))
	return u, p
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	srv := newServer(t)
	u, p := seed(t, srv, 10)

	var o orders.Order
	code := do(t, srv, http.MethodPost, "/orders", map[string]any{
		"user_id": u.ID, "product_id": p.ID, "quantity": 3,
		"shipping": map[string]string{"recipient": "B", "city": "Bandung"},
	}, &o)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, orders.StatusPending, o.Status)
	assert.True(t, o.TotalPrice.Equal(decimal.NewFromInt(60)))
	assert.Equal(t, "Bandung", o.Shipping.City)

	var prod orders.Product
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/products/"+p.ID, nil, &prod))
	assert.Equal(t, 7, prod.Stock)

	var got orders.Order
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPatch, "/orders/"+o.ID+"/status", map[string]string{"status": "confirmed"}, &got))
	assert.Equal(t, orders.StatusConfirmed, got.Status)

	var eb errBody
	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPatch, "/orders/"+o.ID+"/status", map[string]string{"status": "delivered"}, &eb))
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPatch, "/orders/"+o.ID+"/status", map[string]string{"status": "lost"}, &eb))

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/orders/"+o.ID+"/cancel", nil, &got))
	assert.Equal(t, orders.StatusCancelled, got.Status)

	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/products/"+p.ID, nil, &prod))
	assert.Equal(t, 10, prod.Stock)

	assert.Equal(t, http.StatusConflict, do(t, srv, http.MethodPost, "/orders/"+o.ID+"/cancel", nil, &eb))
	assert.Contains(t, eb.Error, "order already cancelled")

	var list []orders.Order
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodGet, "/users/"+u.ID+"/orders", nil, &list))
	assert.Len(t, list, 1)
}

func TestCreateOrderErrorsOverHTTP(t *testing.T) {
	srv := newServer(t)
	u, p := seed(t, srv, 2)

	var eb errBody
	code := do(t, srv, http.MethodPost, "/orders", map[string]any{"user_id": u.ID, "product_id": p.ID, "quantity": 5}, &eb)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 5, eb.Requested)
	require.NotNil(t, eb.Available)
	assert.Equal(t, 2, *eb.Available)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/orders", map[string]any{"user_id": u.ID, "product_id": p.ID, "quantity": 0}, &eb))
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/orders", map[string]any{"user_id": u.ID}, &eb))
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/orders", map[string]any{"user_id": u.ID, "product_id": p.ID, "quantity": 1, "coupon": "x"}, &eb))
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodPost, "/orders", map[string]any{"user_id": "ghost", "product_id": p.ID, "quantity": 1}, &eb))
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/orders/missing", nil, &eb))
}

func TestCatalogOverHTTP(t *testing.T) {
	srv := newServer(t)
	u, p := seed(t, srv, 1)

	var adj struct {
		ProductID string `json:"product_id"`
		Stock     int    `json:"stock"`
	}
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/products/"+p.ID+"/stock", map[string]int{"delta": 4}, &adj))
	assert.Equal(t, 5, adj.Stock)
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPost, "/products/"+p.ID+"/stock", map[string]int{"delta": -9}, &adj))
	assert.Equal(t, 0, adj.Stock)

	var prod orders.Product
	require.Equal(t, http.StatusOK, do(t, srv, http.MethodPatch, "/products/"+p.ID, map[string]any{"name": "Desk lamp"}, &prod))
	assert.Equal(t, "Desk lamp", prod.Name)

	var eb errBody
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/products", map[string]any{"name": "", "price": "1"}, &eb))

	assert.Equal(t, http.StatusNoContent, do(t, srv, http.MethodDelete, "/users/"+u.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, do(t, srv, http.MethodGet, "/users/"+u.ID, nil, &eb))
}

func TestHealthz(t *testing.T) {
	srv := newServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
