package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shop-orders/internal/domain/order"
	"github.com/xenking/shop-orders/internal/domain/product"
	"github.com/xenking/shop-orders/internal/domain/user"
	"github.com/xenking/shop-orders/internal/handler"
	"github.com/xenking/shop-orders/internal/storage/memory"
)

const (
	testSecret = "test-secret"

	userID    = "6f1c2a4e-6b1f-4c1e-9a53-2d3c9c1b0a01"
	productA  = "0b8f4d6c-1d3e-4f5a-8b7c-9d0e1f2a3b01"
	productB  = "0b8f4d6c-1d3e-4f5a-8b7c-9d0e1f2a3b02"
	missingID = "11111111-2222-4333-8444-555555555555"
)

type testServer struct {
	t     *testing.T
	store *memory.Store
	auth  *handler.Auth
	srv   *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store := memory.New()
	store.PutUser(user.User{ID: userID, Email: "buyer@example.com", Name: "Buyer", Role: user.RoleUser})
	store.PutProduct(
		product.Product{ID: productA, Name: "Mug", Price: decimal.RequireFromString("10.00"), Stock: 5, ImageURL: "/img/mug.png"},
		product.Product{ID: productB, Name: "Cup", Price: decimal.RequireFromString("20.00"), Stock: 1},
	)

	svc, err := order.NewService(store, order.DefaultConfig())
	require.NoError(t, err)

	auth := handler.NewAuth(testSecret, false)
	h := handler.NewHandler(handler.HandlerConfig{ImageBaseURL: "https://cdn.example.com"}, svc, store.Catalog())
	srv := httptest.NewServer(h.Routes(auth))
	t.Cleanup(srv.Close)

	return &testServer{t: t, store: store, auth: auth, srv: srv}
}

func (s *testServer) token(role user.Role) string {
	s.t.Helper()
	tok, err := s.auth.IssueToken(userID, role, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) (*http.Response, []byte) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.srv.URL+path, &buf)
	require.NoError(s.t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer func() { _ = resp.Body.Close() }()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(s.t, err)
	return resp, out.Bytes()
}

func decodeError(t *testing.T, body []byte) handler.ErrorResponse {
	t.Helper()
	var e handler.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &e))
	return e
}

func (s *testServer) placeOrder(products ...string) handler.OrderResponse {
	s.t.Helper()
	resp, body := s.do(http.MethodPost, "/orders", s.token(user.RoleUser), map[string]any{
		"userId":   userID,
		"products": products,
	})
	require.Equal(s.t, http.StatusCreated, resp.StatusCode, string(body))

	var o handler.OrderResponse
	require.NoError(s.t, json.Unmarshal(body, &o))
	return o
}

func TestPlaceOrder(t *testing.T) {
	s := newTestServer(t)

	o := s.placeOrder(productA, productB)
	assert.Equal(t, userID, o.UserID)
	assert.Equal(t, "pending", o.Status)
	assert.InDelta(t, 79.99, o.Total, 1e-9)
	assert.InDelta(t, 49.99, o.Shipping, 1e-9)
	require.Len(t, o.Details, 2)
	assert.Equal(t, 1, o.Details[0].Quantity)

	p, _ := s.store.Product(productB)
	assert.Zero(t, p.Stock)
}

func TestPlaceOrder_WithDiscountAndShipping(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(http.MethodPost, "/orders", s.token(user.RoleAdmin), map[string]any{
		"userId":          userID,
		"products":        []string{productA},
		"shipping":        5,
		"generalDiscount": 50,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var o handler.OrderResponse
	require.NoError(t, json.Unmarshal(body, &o))
	assert.InDelta(t, 10.0, o.Total, 1e-9)
	require.NotNil(t, o.GeneralDiscount)
	assert.InDelta(t, 50.0, *o.GeneralDiscount, 1e-9)
}

func TestPlaceOrder_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   map[string]any
		status int
		code   string
	}{
		{
			name:   "OutOfStock",
			body:   map[string]any{"userId": userID, "products": []string{productB, productB}},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "UnknownProduct",
			body:   map[string]any{"userId": userID, "products": []string{missingID}},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "UnknownUser",
			body:   map[string]any{"userId": missingID, "products": []string{productA}},
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "EmptyProducts",
			body:   map[string]any{"userId": userID, "products": []string{}},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "MalformedProductID",
			body:   map[string]any{"userId": userID, "products": []string{"nope"}},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "DiscountOutOfRange",
			body:   map[string]any{"userId": userID, "products": []string{productA}, "generalDiscount": 120},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
		{
			name:   "UnknownField",
			body:   map[string]any{"userId": userID, "products": []string{productA}, "coupon": "X"},
			status: http.StatusBadRequest,
			code:   "invalid_request",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			resp, body := s.do(http.MethodPost, "/orders", s.token(user.RoleUser), tt.body)
			require.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Equal(t, tt.code, decodeError(t, body).Code)

			p, _ := s.store.Product(productA)
			assert.Equal(t, 5, p.Stock)
			assert.Zero(t, s.store.OrderCount())
		})
	}
}

func TestPlaceOrder_OutOfStockMessage(t *testing.T) {
	s := newTestServer(t)
	s.placeOrder(productB)

	resp, body := s.do(http.MethodPost, "/orders", s.token(user.RoleUser), map[string]any{
		"userId": userID, "products": []string{productB},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "one or more items out of stock", decodeError(t, body).Message)
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)
	o := s.placeOrder(productA)

	t.Run("MissingToken", func(t *testing.T) {
		resp, body := s.do(http.MethodGet, "/orders/"+o.ID, "", nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, "unauthorized", decodeError(t, body).Code)
	})
	t.Run("BadSignature", func(t *testing.T) {
		other := handler.NewAuth("other-secret", false)
		tok, err := other.IssueToken(userID, user.RoleAdmin, time.Hour)
		require.NoError(t, err)
		resp, _ := s.do(http.MethodGet, "/orders/"+o.ID, tok, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("Expired", func(t *testing.T) {
		tok, err := s.auth.IssueToken(userID, user.RoleAdmin, -time.Minute)
		require.NoError(t, err)
		resp, _ := s.do(http.MethodGet, "/orders/"+o.ID, tok, nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
	t.Run("UserCannotAdminister", func(t *testing.T) {
		resp, body := s.do(http.MethodPut, "/orders/status/"+o.ID, s.token(user.RoleUser), map[string]any{"status": "shipped"})
		require.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, "forbidden", decodeError(t, body).Code)
	})
	t.Run("UserCanRead", func(t *testing.T) {
		resp, _ := s.do(http.MethodGet, "/orders/"+o.ID, s.token(user.RoleUser), nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
	t.Run("Disabled", func(t *testing.T) {
		svc, err := order.NewService(s.store, order.DefaultConfig())
		require.NoError(t, err)
		h := handler.NewHandler(handler.HandlerConfig{}, svc, s.store.Catalog())
		srv := httptest.NewServer(h.Routes(handler.NewAuth("", true)))
		defer srv.Close()

		resp, err := http.Get(srv.URL + "/orders/" + o.ID)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestGetOrder(t *testing.T) {
	s := newTestServer(t)
	o := s.placeOrder(productA)

	resp, body := s.do(http.MethodGet, "/orders/"+o.ID, s.token(user.RoleAdmin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got handler.OrderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.Len(t, got.Details, 1)
	require.NotNil(t, got.Details[0].Product)
	assert.Equal(t, "Mug", got.Details[0].Product.Name)
	assert.Equal(t, "https://cdn.example.com/img/mug.png", got.Details[0].Product.ImageURL)

	resp, body = s.do(http.MethodGet, "/orders/"+missingID, s.token(user.RoleAdmin), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Order ID: "+missingID+", not found.", decodeError(t, body).Message)

	resp, body = s.do(http.MethodGet, "/orders/not-a-uuid", s.token(user.RoleAdmin), nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", decodeError(t, body).Code)
}

func TestListOrders(t *testing.T) {
	s := newTestServer(t)
	s.placeOrder(productA)
	s.placeOrder(productA)
	s.placeOrder(productA)

	resp, body := s.do(http.MethodGet, "/orders?page=1&limit=2", s.token(user.RoleSuperAdmin), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var page []handler.OrderResponse
	require.NoError(t, json.Unmarshal(body, &page))
	assert.Len(t, page, 2)

	resp, _ = s.do(http.MethodGet, "/orders?page=zero", s.token(user.RoleSuperAdmin), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/orders", s.token(user.RoleUser), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUpdateDetail(t *testing.T) {
	s := newTestServer(t)
	o := s.placeOrder(productA)
	detailID := o.Details[0].ID

	resp, body := s.do(http.MethodPut, "/detail/"+detailID, s.token(user.RoleAdmin), map[string]any{
		"quantity": 3,
		"discount": 10,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var d handler.DetailResponse
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, 3, d.Quantity)
	assert.InDelta(t, 27.0, d.Price, 1e-9)

	p, _ := s.store.Product(productA)
	assert.Equal(t, 2, p.Stock)

	resp, body = s.do(http.MethodGet, "/detail/"+detailID, s.token(user.RoleUser), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &d))
	assert.Equal(t, 3, d.Quantity)
}

func TestUpdateDetail_Errors(t *testing.T) {
	s := newTestServer(t)
	o := s.placeOrder(productA)
	detailID := o.Details[0].ID

	resp, _ := s.do(http.MethodPut, "/detail/"+detailID, s.token(user.RoleAdmin), map[string]any{"quantity": 50})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPut, "/detail/"+detailID, s.token(user.RoleAdmin), map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = s.do(http.MethodPut, "/detail/"+detailID, s.token(user.RoleAdmin), map[string]any{"newProduct": missingID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodPut, "/detail/"+missingID, s.token(user.RoleAdmin), map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	p, _ := s.store.Product(productA)
	assert.Equal(t, 4, p.Stock)
}

func TestUpdateStatus(t *testing.T) {
	s := newTestServer(t)
	o := s.placeOrder(productA)

	resp, body := s.do(http.MethodPut, "/orders/status/"+o.ID, s.token(user.RoleAdmin), map[string]any{"status": "retunr"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got handler.OrderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "return", got.Status)

	resp, _ = s.do(http.MethodPut, "/orders/status/"+o.ID, s.token(user.RoleAdmin), map[string]any{"status": "lost"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUpdateOrder(t *testing.T) {
	s := newTestServer(t)
	o := s.placeOrder(productA)

	resp, body := s.do(http.MethodPut, "/orders/update/"+o.ID, s.token(user.RoleAdmin), map[string]any{
		"total":    15.5,
		"shipping": 0,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got handler.OrderResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.InDelta(t, 15.5, got.Total, 1e-9)
	assert.Zero(t, got.Shipping)

	resp, _ = s.do(http.MethodPut, "/orders/update/"+o.ID, s.token(user.RoleAdmin), map[string]any{"total": 1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteOrder(t *testing.T) {
	s := newTestServer(t)
	o := s.placeOrder(productA)

	resp, _ := s.do(http.MethodDelete, "/orders/"+o.ID, s.token(user.RoleAdmin), nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(http.MethodGet, "/orders/"+o.ID, s.token(user.RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(http.MethodDelete, "/orders/"+o.ID, s.token(user.RoleAdmin), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProducts(t *testing.T) {
	s := newTestServer(t)

	resp, body := s.do(http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []handler.ProductResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 2)

	resp, body = s.do(http.MethodGet, "/products/"+productB, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var p handler.ProductResponse
	require.NoError(t, json.Unmarshal(body, &p))
	assert.Equal(t, "Cup", p.Name)
	assert.InDelta(t, 20.0, p.Price, 1e-9)
	assert.Empty(t, p.ImageURL)

	resp, _ = s.do(http.MethodGet, "/products/"+missingID, "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
