/*
handlers_test.go - HTTP tests for the checkout mock

Tests drive the full router (auth, envelopes, status codes) against both
store drivers, starting from seed scenarios.
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/ledger"
	"github.com/warp/loyalty-engine/ledger/store"
	"github.com/warp/loyalty-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

type testServer struct {
	t       *testing.T
	handler *Handler
	router  http.Handler
}

type testEnvelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Message   *string         `json:"message"`
	Timestamp string          `json:"timestamp"`
}

func newTestServerWithStore(t *testing.T, st ledger.Store, scenario string) *testServer {
	metrics, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	h := NewHandler(st, Options{
		Clock:   ledger.NewFixedClock(testNow),
		IDs:     &ledger.SequenceGenerator{},
		Metrics: metrics,
	})
	require.NoError(t, h.Seed(context.Background(), scenario))

	return &testServer{t: t, handler: h, router: NewRouter(h, nil)}
}

func newTestServer(t *testing.T, scenario string) *testServer {
	return newTestServerWithStore(t, store.NewMemory(), scenario)
}

var memberHeaders = map[string]string{
	"Authorization": auth.DefaultToken,
	"User-ID":       "user_12345",
}

func (s *testServer) do(method, path string, body any, headers map[string]string) (int, testEnvelope) {
	s.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env testEnvelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env testEnvelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

func message(env testEnvelope) string {
	if env.Message == nil {
		return ""
	}
	return *env.Message
}

func (s *testServer) state() StateDTO {
	s.t.Helper()
	code, env := s.do(http.MethodGet, "/admin/state", nil, nil)
	require.Equal(s.t, http.StatusOK, code)
	return decodeData[StateDTO](s.t, env)
}

// =============================================================================
// ENVELOPE AND ROUTING
// =============================================================================

func TestHealth(t *testing.T) {
	s := newTestServer(t, "default")

	code, env := s.do(http.MethodGet, "/health", nil, nil)

	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Nil(t, env.Message)
	_, err := time.Parse(time.RFC3339, env.Timestamp)
	assert.NoError(t, err)
	assert.Equal(t, "healthy", decodeData[HealthDTO](t, env).Status)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, "default")

	code, env := s.do(http.MethodGet, "/nope", nil, memberHeaders)

	assert.Equal(t, http.StatusNotFound, code)
	assert.False(t, env.Success)
	assert.Equal(t, "null", string(env.Data))
	assert.Equal(t, "Endpoint not found", message(env))
}

func TestWrongMethod(t *testing.T) {
	s := newTestServer(t, "default")

	code, env := s.do(http.MethodPost, "/health", nil, nil)

	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.False(t, env.Success)
}

func TestRecoverer_PanicBecomes500Envelope(t *testing.T) {
	h := recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "Internal server error", message(env))
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestInvalidJSONBody(t *testing.T) {
	s := newTestServer(t, "checkout-ready")

	code, env := s.do(http.MethodPost, "/checkout/apply-points", "{not json", memberHeaders)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid request body", message(env))
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuth_Rejections(t *testing.T) {
	s := newTestServer(t, "default")

	tests := []struct {
		name    string
		path    string
		headers map[string]string
		status  int
		message string
	}{
		{"no headers", "/user/loyalty-balance", nil, http.StatusUnauthorized, "Missing user ID or authorization token"},
		{"no token", "/wallet/balance", map[string]string{"User-ID": "user_12345"}, http.StatusUnauthorized, "Missing user ID or authorization token"},
		{"invalid token", "/user/loyalty-balance", map[string]string{"User-ID": "user_12345", "Authorization": "Bearer invalid_token"}, http.StatusUnauthorized, "Invalid authentication token"},
		{"guest loyalty", "/user/loyalty-balance", map[string]string{"User-ID": auth.DefaultGuestID, "Authorization": auth.DefaultToken}, http.StatusForbidden, "Guest users do not have access to loyalty points"},
		{"guest wallet", "/wallet/balance", map[string]string{"User-ID": auth.DefaultGuestID, "Authorization": auth.DefaultToken}, http.StatusForbidden, "Guest users do not have access to wallet balance"},
		{"transactions without token", "/wallet/transactions", map[string]string{"User-ID": "user_12345"}, http.StatusUnauthorized, "Missing user ID or authorization token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := s.do(http.MethodGet, tt.path, nil, tt.headers)
			assert.Equal(t, tt.status, code)
			assert.False(t, env.Success)
			assert.Equal(t, tt.message, message(env))
		})
	}
}

func TestAuth_GuestWalletBalanceUnchanged(t *testing.T) {
	// GIVEN: The default wallet (250.50)
	s := newTestServer(t, "default")
	before := s.state()

	// WHEN: A guest reads the wallet balance
	code, _ := s.do(http.MethodGet, "/wallet/balance", nil, map[string]string{
		"User-ID": auth.DefaultGuestID, "Authorization": auth.DefaultToken,
	})

	// THEN: Forbidden and nothing changed, not even the timestamp
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, before.Wallet, s.state().Wallet)
}

func TestAuth_UserIDFromBody(t *testing.T) {
	s := newTestServer(t, "checkout-ready")

	code, env := s.do(http.MethodPost, "/checkout/apply-points", map[string]any{
		"userId": "user_12345", "orderId": "order_12345", "pointsToUse": 100, "orderTotal": 299.00,
	}, map[string]string{"Authorization": auth.DefaultToken})

	assert.Equal(t, http.StatusOK, code, message(env))
	assert.Equal(t, int64(100), decodeData[ApplyPointsDTO](t, env).PointsApplied)
}

func TestAuth_GuestCanCheckout(t *testing.T) {
	s := newTestServer(t, "checkout-ready")

	code, _ := s.do(http.MethodPost, "/checkout/use-wallet", map[string]any{
		"orderId": "order_12345", "walletAmount": 20, "orderTotal": 299,
	}, map[string]string{"User-ID": auth.DefaultGuestID, "Authorization": auth.DefaultToken})

	assert.Equal(t, http.StatusOK, code)
}

// =============================================================================
// BALANCES
// =============================================================================

func TestGetLoyaltyBalance(t *testing.T) {
	s := newTestServer(t, "default")

	code, env := s.do(http.MethodGet, "/user/loyalty-balance", nil, memberHeaders)

	require.Equal(t, http.StatusOK, code)
	dto := decodeData[LoyaltyBalanceDTO](t, env)
	assert.Equal(t, "user_12345", dto.UserID)
	assert.Equal(t, int64(1500), dto.AvailablePoints)
	assert.Equal(t, int64(2500), dto.TotalEarned)
	assert.Equal(t, "SAR", dto.Currency)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", dto.LastUpdated)
}

func TestGetWalletBalance(t *testing.T) {
	s := newTestServer(t, "default")

	code, env := s.do(http.MethodGet, "/wallet/balance", nil, memberHeaders)

	require.Equal(t, http.StatusOK, code)
	dto := decodeData[WalletBalanceDTO](t, env)
	assert.Equal(t, 250.5, dto.AvailableBalance)
	assert.Equal(t, 10.0, dto.MinimumThreshold)
	assert.Equal(t, "2025-03-01T12:00:00.000Z", dto.LastTransactionDate)
}

// =============================================================================
// CHECKOUT FLOW
// =============================================================================

func TestCheckoutFlow(t *testing.T) {
	drivers := map[string]func(t *testing.T) ledger.Store{
		"memory": func(t *testing.T) ledger.Store { return store.NewMemory() },
		"sqlite": func(t *testing.T) ledger.Store {
			st, err := sqlite.New(":memory:")
			require.NoError(t, err)
			t.Cleanup(func() { st.Close() })
			return st
		},
	}

	for name, newStore := range drivers {
		t.Run(name, func(t *testing.T) {
			s := newTestServerWithStore(t, newStore(t), "default")

			// GIVEN: An order created through the helper endpoint
			code, env := s.do(http.MethodPost, "/orders", map[string]any{"orderId": "order_12345", "total": 299.00}, nil)
			require.Equal(t, http.StatusCreated, code)
			order := decodeData[OrderDTO](t, env)
			assert.Equal(t, 299.0, order.Total)
			assert.Equal(t, "SAR", order.Currency)

			// WHEN: Applying 100 points
			code, env = s.do(http.MethodPost, "/checkout/apply-points", map[string]any{
				"orderId": "order_12345", "pointsToUse": 100, "orderTotal": 299.00,
			}, memberHeaders)

			// THEN: 10.00 off, 289.00 left
			require.Equal(t, http.StatusOK, code, message(env))
			points := decodeData[ApplyPointsDTO](t, env)
			assert.Equal(t, 10.0, points.DiscountAmount)
			assert.Equal(t, 289.0, points.UpdatedOrderTotal)
			assert.Equal(t, int64(1400), points.RemainingBalance)
			assert.Equal(t, "KSA", points.Region)

			// WHEN: Paying 50.00 from the wallet
			code, env = s.do(http.MethodPost, "/checkout/use-wallet", map[string]any{
				"orderId": "order_12345", "walletAmount": 50.00, "orderTotal": 299.00,
			}, memberHeaders)

			// THEN: 249.00 left to pay, 200.50 in the wallet
			require.Equal(t, http.StatusOK, code, message(env))
			wallet := decodeData[UseWalletDTO](t, env)
			assert.Equal(t, 249.0, wallet.UpdatedOrderTotal)
			assert.Equal(t, 200.5, wallet.RemainingBalance)
			assert.Equal(t, "wallet", wallet.PaymentType)
			assert.True(t, strings.HasPrefix(wallet.TransactionID, ledger.TransactionIDPrefix))

			// WHEN: Refunding 50.00 to the wallet
			code, env = s.do(http.MethodPost, "/refund/trigger", map[string]any{
				"orderId": "order_12345", "refundAmount": 50.00, "refundReason": "Damaged item",
			}, memberHeaders)

			// THEN: Refund processed and recorded at the head of the ledger
			require.Equal(t, http.StatusOK, code, message(env))
			refund := decodeData[RefundResultDTO](t, env)
			assert.Equal(t, "processed", refund.Status)
			assert.Equal(t, "wallet", refund.RefundType)

			code, env = s.do(http.MethodGet, "/wallet/transactions?limit=1", nil, memberHeaders)
			require.Equal(t, http.StatusOK, code)
			list := decodeData[TransactionListDTO](t, env)
			require.Len(t, list.Transactions, 1)
			assert.Equal(t, "refund", list.Transactions[0].Type)
			assert.Equal(t, 50.0, list.Transactions[0].Amount)
			assert.Equal(t, "Damaged item", list.Transactions[0].Description)
			assert.Equal(t, 4, list.Pagination.Total)

			code, env = s.do(http.MethodGet, "/refund/"+refund.RefundID, nil, memberHeaders)
			require.Equal(t, http.StatusOK, code)
			assert.Equal(t, "Damaged item", decodeData[RefundDTO](t, env).RefundReason)

			state := s.state()
			assert.Equal(t, 250.5, state.Wallet.AvailableBalance)
			assert.Equal(t, int64(1400), state.Loyalty.AvailablePoints)
		})
	}
}

func TestCheckout_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    map[string]any
		status  int
		message string
	}{
		{"points missing fields", "/checkout/apply-points", map[string]any{}, http.StatusBadRequest, "Missing required fields"},
		{"points unknown order", "/checkout/apply-points", map[string]any{"orderId": "order_x", "pointsToUse": 10, "orderTotal": 299}, http.StatusNotFound, "Order not found"},
		{"points insufficient", "/checkout/apply-points", map[string]any{"orderId": "order_12345", "pointsToUse": 2000, "orderTotal": 299}, http.StatusBadRequest, "Insufficient loyalty points"},
		{"points max percentage", "/checkout/apply-points", map[string]any{"orderId": "order_12345", "pointsToUse": 600, "orderTotal": 50}, http.StatusBadRequest, "exceed maximum allowed percentage"},
		{"points negative", "/checkout/apply-points", map[string]any{"orderId": "order_12345", "pointsToUse": -5, "orderTotal": 50}, http.StatusBadRequest, "Amount must be positive"},
		{"wallet insufficient", "/checkout/use-wallet", map[string]any{"orderId": "order_12345", "walletAmount": 300, "orderTotal": 500}, http.StatusBadRequest, "Insufficient wallet balance"},
		{"wallet below threshold", "/checkout/use-wallet", map[string]any{"orderId": "order_12345", "walletAmount": 5, "orderTotal": 299}, http.StatusBadRequest, "below minimum threshold"},
		{"wallet exceeds total", "/checkout/use-wallet", map[string]any{"orderId": "order_12345", "walletAmount": 100, "orderTotal": 50}, http.StatusBadRequest, "Wallet amount cannot exceed order total"},
		{"refund exceeds total", "/refund/trigger", map[string]any{"orderId": "order_12345", "refundAmount": 1000, "refundReason": "r"}, http.StatusBadRequest, "Refund amount cannot exceed order total"},
		{"refund unknown type", "/refund/trigger", map[string]any{"orderId": "order_12345", "refundAmount": 10, "refundReason": "r", "refundType": "voucher"}, http.StatusBadRequest, "Invalid refund type"},
		{"refund missing reason", "/refund/trigger", map[string]any{"orderId": "order_12345", "refundAmount": 10}, http.StatusBadRequest, "Missing required fields"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "checkout-ready")
			before := s.state()

			code, env := s.do(http.MethodPost, tt.path, tt.body, memberHeaders)

			assert.Equal(t, tt.status, code)
			assert.False(t, env.Success)
			assert.Contains(t, message(env), tt.message)
			assert.Equal(t, before, s.state())
		})
	}
}

func TestApplyPoints_WholeNumberFloat(t *testing.T) {
	// GIVEN: An order ready for checkout
	s := newTestServer(t, "checkout-ready")

	// WHEN: pointsToUse is sent as 100.0
	code, env := s.do(http.MethodPost, "/checkout/apply-points",
		`{"orderId":"order_12345","pointsToUse":100.0,"orderTotal":299}`, memberHeaders)

	// THEN: It is treated as 100 points
	require.Equal(t, http.StatusOK, code, message(env))
	result := decodeData[ApplyPointsDTO](t, env)
	assert.Equal(t, int64(100), result.PointsApplied)
	assert.Equal(t, int64(1400), result.RemainingBalance)
}

func TestApplyPoints_FractionalPointsRejected(t *testing.T) {
	s := newTestServer(t, "checkout-ready")
	before := s.state()

	code, env := s.do(http.MethodPost, "/checkout/apply-points",
		`{"orderId":"order_12345","pointsToUse":100.5,"orderTotal":299}`, memberHeaders)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Points must be a whole number", message(env))
	assert.Equal(t, before, s.state())
}

func TestGetRefund_NotFound(t *testing.T) {
	s := newTestServer(t, "default")

	code, env := s.do(http.MethodGet, "/refund/refund_missing", nil, memberHeaders)

	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Refund not found", message(env))
}

func TestCreateOrder_MissingFields(t *testing.T) {
	s := newTestServer(t, "default")

	code, env := s.do(http.MethodPost, "/orders", map[string]any{"total": 10}, nil)

	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Missing required fields", message(env))
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

func TestListTransactions(t *testing.T) {
	s := newTestServer(t, "default")

	code, env := s.do(http.MethodGet, "/wallet/transactions", nil, memberHeaders)

	require.Equal(t, http.StatusOK, code)
	list := decodeData[TransactionListDTO](t, env)
	assert.Equal(t, "user_12345", list.UserID)
	assert.Equal(t, "SAR", list.Currency)
	assert.Equal(t, PaginationDTO{Limit: 10, Offset: 0, Total: 3}, list.Pagination)
	require.Len(t, list.Transactions, 3)
	assert.Equal(t, "txn_001", list.Transactions[0].TransactionID)
	assert.Equal(t, "2024-12-15T09:15:00.000Z", list.Transactions[0].Date)
	assert.Equal(t, -25.0, list.Transactions[1].Amount)
}

func TestListTransactions_Filters(t *testing.T) {
	s := newTestServer(t, "default")

	tests := []struct {
		query string
		ids   []string
		total int
	}{
		{"?type=earned", []string{"txn_001"}, 1},
		{"?startDate=2024-12-14", []string{"txn_001", "txn_002"}, 2},
		{"?endDate=2024-12-14", []string{"txn_002", "txn_003"}, 2},
		{"?limit=1&offset=1", []string{"txn_002"}, 3},
		{"?offset=5", []string{}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			code, env := s.do(http.MethodGet, "/wallet/transactions"+tt.query, nil, memberHeaders)
			require.Equal(t, http.StatusOK, code, message(env))

			list := decodeData[TransactionListDTO](t, env)
			ids := make([]string, len(list.Transactions))
			for i, tx := range list.Transactions {
				ids[i] = tx.TransactionID
			}
			assert.Equal(t, tt.ids, ids)
			assert.Equal(t, tt.total, list.Pagination.Total)
		})
	}
}

func TestListTransactions_BadParams(t *testing.T) {
	s := newTestServer(t, "default")

	for _, q := range []string{"?limit=abc", "?offset=-1", "?type=gift", "?startDate=nope"} {
		t.Run(q, func(t *testing.T) {
			code, env := s.do(http.MethodGet, "/wallet/transactions"+q, nil, memberHeaders)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.False(t, env.Success)
		})
	}
}

// =============================================================================
// METRICS
// =============================================================================

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, "checkout-ready")
	s.do(http.MethodGet, "/user/loyalty-balance", nil, memberHeaders)
	s.do(http.MethodPost, "/checkout/apply-points", map[string]any{}, memberHeaders)
	s.do(http.MethodGet, "/refund/refund_missing", nil, memberHeaders)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "loyalty_mock_http_requests_total")
	assert.Contains(t, body, `route="/user/loyalty-balance"`)
	assert.Contains(t, body, `loyalty_mock_operations_total{operation="apply_points",outcome="missing_fields"} 1`)
	assert.Contains(t, body, `loyalty_mock_operations_total{operation="get_refund",outcome="not_found"} 1`)
}

func TestNewMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()

	first, err := NewMetrics(reg)
	require.NoError(t, err)
	second, err := NewMetrics(reg)
	require.NoError(t, err)

	first.RecordOperation("refund", nil)
	second.RecordOperation("refund", nil)

	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() == "loyalty_mock_operations_total" {
			assert.Equal(t, 2.0, f.GetMetric()[0].GetCounter().GetValue())
			return
		}
	}
	t.Fatal("operations counter not gathered")
}
