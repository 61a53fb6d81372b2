/*
Package checkout implements the checkout rules: applying loyalty points and
spending wallet funds against an order.

PURPOSE:
  Each operation validates its input against the current accounts, then
  mutates exactly one account, all inside one Store.WithTx call. Validation
  is split into pure Check* functions so the rule order can be tested
  without a store.

RULE ORDER (first failure wins):
  ApplyPoints:
    1. orderId, pointsToUse, orderTotal present (non-zero)  -> ErrMissingFields
       negative pointsToUse or orderTotal                   -> ErrNonPositiveAmount
    2. order exists                                          -> ErrOrderNotFound
    3. pointsToUse <= availablePoints                        -> InsufficientPointsError
    4. pointsToUse <= floor(orderTotal * 10)                 -> MaxPercentageError
    5. not (useExpiredPoints && expiredPoints > 0)           -> ErrExpiredPointsForbidden

  UseWallet:
    1. orderId, walletAmount, orderTotal present             -> ErrMissingFields
    2. order exists                                          -> ErrOrderNotFound
    3. walletAmount <= availableBalance                      -> InsufficientBalanceError
    4. walletAmount >= minimumThreshold                      -> ThresholdError
    5. walletAmount <= orderTotal                            -> ExceedsOrderTotalError

  CreateOrder is the test helper that makes orders exist. It validates
  presence and sign only.

LEDGER:
  Neither operation appends a ledger transaction. Only wallet refunds do
  (see refund/). UseWallet still returns a fresh transaction id.

SEE ALSO:
  - ledger/errors.go: Error types
  - refund/refund.go: The other mutating engine
*/
package checkout

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/ledger"
)

// PointValue is the currency value of one loyalty point.
var PointValue = decimal.New(1, -1)

// pointsPerUnit is 1 / PointValue: how many points make one currency unit.
var pointsPerUnit = decimal.NewFromInt(10)

// Engine runs checkout operations against a store.
type Engine struct {
	Store    ledger.Store
	Clock    ledger.Clock
	IDs      ledger.IDGenerator
	Defaults ledger.Defaults
}

// NewEngine creates an engine. A nil clock or id generator gets the default.
func NewEngine(store ledger.Store, clock ledger.Clock, ids ledger.IDGenerator, defaults ledger.Defaults) *Engine {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if ids == nil {
		ids = ledger.UUIDGenerator{}
	}
	return &Engine{Store: store, Clock: clock, IDs: ids, Defaults: defaults.WithFallbacks()}
}

// =============================================================================
// APPLY POINTS
// =============================================================================

type ApplyPointsInput struct {
	OrderID          string
	PointsToUse      int64
	OrderTotal       decimal.Decimal
	Currency         string
	Region           string
	UseExpiredPoints bool
}

type ApplyPointsResult struct {
	OrderID           string
	PointsApplied     int64
	DiscountAmount    decimal.Decimal
	RemainingBalance  int64
	UpdatedOrderTotal decimal.Decimal
	Currency          string
	Region            string
}

// MaxRedeemablePoints returns floor(orderTotal * 10): the points that
// discount the whole order.
func MaxRedeemablePoints(orderTotal decimal.Decimal) int64 {
	return orderTotal.Mul(pointsPerUnit).Floor().IntPart()
}

// CheckApplyPoints validates in against the order (nil if missing) and the
// loyalty account.
func CheckApplyPoints(in ApplyPointsInput, order *ledger.Order, account ledger.LoyaltyAccount) error {
	if in.OrderID == "" || in.PointsToUse == 0 || in.OrderTotal.IsZero() {
		return ledger.ErrMissingFields
	}
	if in.PointsToUse < 0 || in.OrderTotal.IsNegative() {
		return ledger.ErrNonPositiveAmount
	}
	if order == nil {
		return ledger.ErrOrderNotFound
	}
	if in.PointsToUse > account.AvailablePoints {
		return &ledger.InsufficientPointsError{Available: account.AvailablePoints, Requested: in.PointsToUse}
	}
	if maxPoints := MaxRedeemablePoints(in.OrderTotal); in.PointsToUse > maxPoints {
		return &ledger.MaxPercentageError{MaxPoints: maxPoints, Requested: in.PointsToUse}
	}
	if in.UseExpiredPoints && account.ExpiredPoints > 0 {
		return ledger.ErrExpiredPointsForbidden
	}
	return nil
}

// ApplyPoints redeems points as a discount on an order.
func (e *Engine) ApplyPoints(ctx context.Context, in ApplyPointsInput) (ApplyPointsResult, error) {
	var result ApplyPointsResult

	err := e.Store.WithTx(ctx, func(tx ledger.Tx) error {
		account, err := tx.Loyalty(ctx)
		if err != nil {
			return err
		}
		var order *ledger.Order
		if in.OrderID != "" {
			if order, err = tx.Order(ctx, in.OrderID); err != nil {
				return err
			}
		}
		if err := CheckApplyPoints(in, order, account); err != nil {
			return err
		}

		discount := decimal.NewFromInt(in.PointsToUse).Mul(PointValue)

		account.AvailablePoints -= in.PointsToUse
		account.TotalRedeemed += in.PointsToUse
		account.LastUpdated = e.Clock.Now()
		if err := tx.PutLoyalty(ctx, account); err != nil {
			return err
		}

		result = ApplyPointsResult{
			OrderID:           in.OrderID,
			PointsApplied:     in.PointsToUse,
			DiscountAmount:    discount,
			RemainingBalance:  account.AvailablePoints,
			UpdatedOrderTotal: in.OrderTotal.Sub(discount),
			Currency:          ledger.Or(in.Currency, e.Defaults.Currency),
			Region:            ledger.Or(in.Region, e.Defaults.Region),
		}
		return nil
	})

	return result, err
}

// =============================================================================
// USE WALLET
// =============================================================================

type UseWalletInput struct {
	OrderID      string
	WalletAmount decimal.Decimal
	OrderTotal   decimal.Decimal
	Currency     string
	Region       string
	PaymentType  string
}

type UseWalletResult struct {
	OrderID           string
	WalletAmountUsed  decimal.Decimal
	RemainingBalance  decimal.Decimal
	UpdatedOrderTotal decimal.Decimal
	Currency          string
	TransactionID     string
	PaymentType       string
}

// CheckUseWallet validates in against the order (nil if missing) and the
// wallet account.
func CheckUseWallet(in UseWalletInput, order *ledger.Order, wallet ledger.WalletAccount) error {
	if in.OrderID == "" || in.WalletAmount.IsZero() || in.OrderTotal.IsZero() {
		return ledger.ErrMissingFields
	}
	if in.WalletAmount.IsNegative() || in.OrderTotal.IsNegative() {
		return ledger.ErrNonPositiveAmount
	}
	if order == nil {
		return ledger.ErrOrderNotFound
	}
	if in.WalletAmount.GreaterThan(wallet.AvailableBalance) {
		return &ledger.InsufficientBalanceError{Available: wallet.AvailableBalance, Requested: in.WalletAmount}
	}
	if in.WalletAmount.LessThan(wallet.MinimumThreshold) {
		return &ledger.ThresholdError{Minimum: wallet.MinimumThreshold, Requested: in.WalletAmount}
	}
	if in.WalletAmount.GreaterThan(in.OrderTotal) {
		return &ledger.ExceedsOrderTotalError{Subject: "wallet amount", Requested: in.WalletAmount, OrderTotal: in.OrderTotal}
	}
	return nil
}

// UseWallet spends wallet funds toward an order.
func (e *Engine) UseWallet(ctx context.Context, in UseWalletInput) (UseWalletResult, error) {
	var result UseWalletResult

	err := e.Store.WithTx(ctx, func(tx ledger.Tx) error {
		wallet, err := tx.Wallet(ctx)
		if err != nil {
			return err
		}
		var order *ledger.Order
		if in.OrderID != "" {
			if order, err = tx.Order(ctx, in.OrderID); err != nil {
				return err
			}
		}
		if err := CheckUseWallet(in, order, wallet); err != nil {
			return err
		}

		wallet.AvailableBalance = wallet.AvailableBalance.Sub(in.WalletAmount)
		wallet.TotalSpent = wallet.TotalSpent.Add(in.WalletAmount)
		wallet.LastTransactionDate = e.Clock.Now()
		if err := tx.PutWallet(ctx, wallet); err != nil {
			return err
		}

		result = UseWalletResult{
			OrderID:           in.OrderID,
			WalletAmountUsed:  in.WalletAmount,
			RemainingBalance:  wallet.AvailableBalance,
			UpdatedOrderTotal: in.OrderTotal.Sub(in.WalletAmount),
			Currency:          ledger.Or(in.Currency, e.Defaults.Currency),
			TransactionID:     e.IDs.NewTransactionID(),
			PaymentType:       ledger.Or(in.PaymentType, e.Defaults.PaymentType),
		}
		return nil
	})

	return result, err
}

// =============================================================================
// ORDERS - Test helper
// =============================================================================

type CreateOrderInput struct {
	OrderID  string
	Total    decimal.Decimal
	Currency string
}

// CreateOrder records an order in pending status. An existing order with the
// same id is replaced.
func (e *Engine) CreateOrder(ctx context.Context, in CreateOrderInput) (ledger.Order, error) {
	if in.OrderID == "" || in.Total.IsZero() {
		return ledger.Order{}, ledger.ErrMissingFields
	}
	if in.Total.IsNegative() {
		return ledger.Order{}, ledger.ErrNonPositiveAmount
	}

	order := ledger.Order{
		ID:       in.OrderID,
		Total:    in.Total,
		Currency: ledger.Or(in.Currency, e.Defaults.Currency),
		Status:   ledger.OrderPending,
	}
	err := e.Store.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.PutOrder(ctx, order)
	})
	if err != nil {
		return ledger.Order{}, err
	}
	return order, nil
}
