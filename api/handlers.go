/*
handlers.go - HTTP API handlers for the loyalty and wallet checkout mock

PURPOSE:
  Exposes the checkout, refund and query engines via REST API. Handles HTTP
  request/response, JSON serialization, and caller identity, and delegates
  every decision to the engines.

ENDPOINTS:
  Balances (member only, guests get 403):
    GET    /user/loyalty-balance        Loyalty points account
    GET    /wallet/balance              Wallet account

  Checkout:
    POST   /checkout/apply-points       Redeem points against an order
    POST   /checkout/use-wallet         Pay part of an order from the wallet

  Ledger and refunds:
    GET    /wallet/transactions         Filtered, paginated ledger
    POST   /refund/trigger              Refund an order
    GET    /refund/{refundId}           Stored refund record

  Test helpers (no auth):
    POST   /orders                      Create an order
    GET    /health                      Liveness

IDENTITY:
  The caller identity is the User-ID header, or the userId field of a JSON
  body when the header is absent. The credential is the Authorization
  header. requireAuth resolves both before any handler runs and stores the
  identity in the request context.

ERROR HANDLING:
  Every response uses Envelope. Engine errors are mapped by ledger.KindOf:
  - 400: Missing fields, validation failures, malformed body
  - 401: Missing or invalid credential
  - 403: Guest on a member-only endpoint
  - 404: Unknown order or refund
  - 500: Anything else (logged, rendered without detail)

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Seed scenario and admin endpoints
  - server.go: Router setup and middleware
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/checkout"
	"github.com/warp/loyalty-engine/ledger"
	"github.com/warp/loyalty-engine/query"
	"github.com/warp/loyalty-engine/refund"
	"github.com/warp/loyalty-engine/seed"
)

const maxBodyBytes = 1 << 20

var errInvalidBody = errors.New("invalid request body")

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Options configures a Handler. Zero values get defaults.
type Options struct {
	Clock    ledger.Clock
	IDs      ledger.IDGenerator
	Defaults ledger.Defaults
	Checker  *auth.Checker
	Catalog  *seed.Catalog
	Metrics  *Metrics
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    ledger.Store
	Checkout *checkout.Engine
	Refunds  *refund.Engine
	Query    *query.Service
	Checker  *auth.Checker
	Catalog  *seed.Catalog
	Metrics  *Metrics
	Defaults ledger.Defaults

	// Track currently loaded scenario
	mu              sync.RWMutex
	currentScenario string
}

// NewHandler creates a new handler with engines bound to store.
func NewHandler(store ledger.Store, opts Options) *Handler {
	if opts.Clock == nil {
		opts.Clock = ledger.SystemClock{}
	}
	if opts.IDs == nil {
		opts.IDs = ledger.UUIDGenerator{}
	}
	if opts.Checker == nil {
		opts.Checker = auth.NewChecker("", "")
	}
	if opts.Catalog == nil {
		opts.Catalog = seed.Builtin()
	}
	defaults := opts.Defaults.WithFallbacks()

	return &Handler{
		Store:    store,
		Checkout: checkout.NewEngine(store, opts.Clock, opts.IDs, defaults),
		Refunds:  refund.NewEngine(store, opts.Clock, opts.IDs, defaults),
		Query:    query.NewService(store, opts.Clock),
		Checker:  opts.Checker,
		Catalog:  opts.Catalog,
		Metrics:  opts.Metrics,
		Defaults: defaults,
	}
}

// =============================================================================
// IDENTITY
// =============================================================================

type identityKey struct{}

// Identity returns the authenticated caller stored by requireAuth.
func Identity(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

// requireAuth rejects requests the checker does not authenticate for scope.
// resource names the data in the guest rejection message.
func (h *Handler) requireAuth(scope auth.Scope, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := r.Header.Get("User-ID")
			if identity == "" {
				identity = peekBodyUserID(r)
			}

			decision := h.Checker.Check(identity, r.Header.Get("Authorization"), scope, resource)
			if err := decision.Err(); err != nil {
				h.respondError(w, r, err)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey{}, decision.Identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// peekBodyUserID reads the userId field of a JSON body and restores the body
// for the handler.
func peekBodyUserID(r *http.Request) string {
	if r.Body == nil || r.Body == http.NoBody {
		return ""
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return ""
	}

	var probe struct {
		UserID string `json:"userId"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return ""
	}
	return probe.UserID
}

// =============================================================================
// BALANCE HANDLERS
// =============================================================================

// GetLoyaltyBalance returns the loyalty account.
func (h *Handler) GetLoyaltyBalance(w http.ResponseWriter, r *http.Request) {
	account, err := h.Query.LoyaltyBalance(r.Context())
	h.Metrics.RecordOperation("loyalty_balance", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toLoyaltyDTO(account))
}

// GetWalletBalance returns the wallet account.
func (h *Handler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	account, err := h.Query.WalletBalance(r.Context())
	h.Metrics.RecordOperation("wallet_balance", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toWalletDTO(account))
}

// =============================================================================
// CHECKOUT HANDLERS
// =============================================================================

// ApplyPoints redeems loyalty points against an order.
func (h *Handler) ApplyPoints(w http.ResponseWriter, r *http.Request) {
	var req ApplyPointsRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}
	// Whole-number floats such as 100.0 are accepted.
	if !req.PointsToUse.IsInteger() {
		h.Metrics.RecordOperation("apply_points", ledger.ErrFractionalPoints)
		h.respondError(w, r, ledger.ErrFractionalPoints)
		return
	}

	result, err := h.Checkout.ApplyPoints(r.Context(), checkout.ApplyPointsInput{
		OrderID:          req.OrderID,
		PointsToUse:      req.PointsToUse.IntPart(),
		OrderTotal:       req.OrderTotal,
		Currency:         req.Currency,
		Region:           req.Region,
		UseExpiredPoints: req.UseExpiredPoints,
	})
	h.Metrics.RecordOperation("apply_points", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	zap.L().Info("points applied",
		zap.String("user_id", Identity(r.Context())),
		zap.String("order_id", result.OrderID),
		zap.Int64("points", result.PointsApplied),
		zap.Int64("remaining", result.RemainingBalance))

	writeData(w, http.StatusOK, toApplyPointsDTO(result))
}

// UseWallet spends wallet funds toward an order.
func (h *Handler) UseWallet(w http.ResponseWriter, r *http.Request) {
	var req UseWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Checkout.UseWallet(r.Context(), checkout.UseWalletInput{
		OrderID:      req.OrderID,
		WalletAmount: req.WalletAmount,
		OrderTotal:   req.OrderTotal,
		Currency:     req.Currency,
		Region:       req.Region,
		PaymentType:  req.PaymentType,
	})
	h.Metrics.RecordOperation("use_wallet", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	zap.L().Info("wallet used",
		zap.String("user_id", Identity(r.Context())),
		zap.String("order_id", result.OrderID),
		zap.String("transaction_id", result.TransactionID),
		zap.String("amount", result.WalletAmountUsed.StringFixed(2)))

	writeData(w, http.StatusOK, toUseWalletDTO(result))
}

// CreateOrder registers an order so checkout and refunds can find it.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	order, err := h.Checkout.CreateOrder(r.Context(), checkout.CreateOrderInput{
		OrderID:  req.OrderID,
		Total:    req.Total,
		Currency: req.Currency,
	})
	h.Metrics.RecordOperation("create_order", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	dto := toOrderDTO(order)
	dto.Status = ""
	writeData(w, http.StatusCreated, dto)
}

// =============================================================================
// LEDGER AND REFUND HANDLERS
// =============================================================================

// ListTransactions returns one page of the filtered ledger.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := query.ParseFilter(q.Get("limit"), q.Get("offset"), q.Get("type"), q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		h.Metrics.RecordOperation("list_transactions", err)
		h.respondError(w, r, err)
		return
	}

	page, err := h.Query.ListTransactions(r.Context(), filter)
	h.Metrics.RecordOperation("list_transactions", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	writeData(w, http.StatusOK, toTransactionListDTO(Identity(r.Context()), h.Defaults.Currency, page))
}

// TriggerRefund refunds (part of) an order.
func (h *Handler) TriggerRefund(w http.ResponseWriter, r *http.Request) {
	var req RefundRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	result, err := h.Refunds.Trigger(r.Context(), refund.TriggerInput{
		UserID:       Identity(r.Context()),
		OrderID:      req.OrderID,
		RefundAmount: req.RefundAmount,
		RefundReason: req.RefundReason,
		RefundType:   req.RefundType,
		Currency:     req.Currency,
		Region:       req.Region,
	})
	h.Metrics.RecordOperation("refund", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	zap.L().Info("refund processed",
		zap.String("refund_id", result.RefundID),
		zap.String("order_id", result.OrderID),
		zap.String("type", string(result.RefundType)),
		zap.String("amount", result.RefundAmount.StringFixed(2)))

	writeData(w, http.StatusOK, toRefundResultDTO(result))
}

// GetRefund returns a stored refund.
func (h *Handler) GetRefund(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Refunds.Get(r.Context(), chi.URLParam(r, "refundId"))
	h.Metrics.RecordOperation("get_refund", err)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, toRefundDTO(rec))
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, HealthDTO{
		Status:    "healthy",
		Timestamp: formatTime(time.Now()),
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Envelope{
		Success:   true,
		Data:      data,
		Timestamp: formatTime(time.Now()),
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Envelope{
		Success:   false,
		Message:   &message,
		Timestamp: formatTime(time.Now()),
	})
}

// respondError maps err to a status and envelope message.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errInvalidBody) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	kind := ledger.KindOf(err)
	status := statusForKind(kind)
	if kind == ledger.KindInternal {
		zap.L().Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeError(w, status, "Internal server error")
		return
	}
	writeError(w, status, capitalize(err.Error()))
}

func statusForKind(k ledger.Kind) int {
	switch k {
	case ledger.KindUnauthorized:
		return http.StatusUnauthorized
	case ledger.KindForbidden:
		return http.StatusForbidden
	case ledger.KindMissingFields, ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON decodes the body into v. An empty body decodes as {}.
func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return errInvalidBody
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
