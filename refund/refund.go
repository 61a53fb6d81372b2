/*
Package refund implements refund processing against recorded orders.

PURPOSE:
  A refund is validated against the order it names, recorded once, and, for
  wallet refunds, credited back to the wallet with a ledger entry. Refunds
  are processed immediately; there is no pending state.

RULE ORDER (first failure wins):
  1. orderId, refundAmount, refundReason present   -> ErrMissingFields
     negative refundAmount                         -> ErrNonPositiveAmount
     refundType not wallet|other                   -> ErrInvalidRefundType
  2. order exists                                  -> ErrOrderNotFound
  3. refundAmount <= order total                   -> ExceedsOrderTotalError

  The comparison is against the stored order total. Checkout compares
  against the total supplied in the request.

EFFECTS:
  wallet: availableBalance += amount, totalDeposited += amount,
          one "refund" transaction prepended to the ledger
  other:  refund record only
*/
package refund

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/ledger"
)

type Engine struct {
	Store    ledger.Store
	Clock    ledger.Clock
	IDs      ledger.IDGenerator
	Defaults ledger.Defaults
}

func NewEngine(store ledger.Store, clock ledger.Clock, ids ledger.IDGenerator, defaults ledger.Defaults) *Engine {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	if ids == nil {
		ids = ledger.UUIDGenerator{}
	}
	return &Engine{Store: store, Clock: clock, IDs: ids, Defaults: defaults.WithFallbacks()}
}

// TriggerInput is a refund request. UserID is the authenticated caller and
// is recorded on the ledger entry.
type TriggerInput struct {
	UserID       string
	OrderID      string
	RefundAmount decimal.Decimal
	RefundReason string
	RefundType   string
	Currency     string
	Region       string
}

type TriggerResult struct {
	RefundID     string
	OrderID      string
	RefundAmount decimal.Decimal
	RefundType   ledger.RefundType
	Status       ledger.RefundStatus
	Currency     string
	ProcessedAt  time.Time
}

// Check validates in against the order (nil if missing) and returns the
// parsed refund type.
func Check(in TriggerInput, order *ledger.Order) (ledger.RefundType, error) {
	if in.OrderID == "" || in.RefundAmount.IsZero() || in.RefundReason == "" {
		return "", ledger.ErrMissingFields
	}
	if in.RefundAmount.IsNegative() {
		return "", ledger.ErrNonPositiveAmount
	}
	refundType, err := ledger.ParseRefundType(in.RefundType)
	if err != nil {
		return "", err
	}
	if order == nil {
		return "", ledger.ErrOrderNotFound
	}
	if in.RefundAmount.GreaterThan(order.Total) {
		return "", &ledger.ExceedsOrderTotalError{Subject: "refund amount", Requested: in.RefundAmount, OrderTotal: order.Total}
	}
	return refundType, nil
}

// Trigger processes a refund.
func (e *Engine) Trigger(ctx context.Context, in TriggerInput) (TriggerResult, error) {
	var result TriggerResult

	err := e.Store.WithTx(ctx, func(tx ledger.Tx) error {
		var (
			order *ledger.Order
			err   error
		)
		if in.OrderID != "" {
			if order, err = tx.Order(ctx, in.OrderID); err != nil {
				return err
			}
		}
		refundType, err := Check(in, order)
		if err != nil {
			return err
		}

		now := e.Clock.Now()
		currency := ledger.Or(in.Currency, e.Defaults.Currency)

		if refundType == ledger.RefundToWallet {
			wallet, err := tx.Wallet(ctx)
			if err != nil {
				return err
			}
			wallet.AvailableBalance = wallet.AvailableBalance.Add(in.RefundAmount)
			wallet.TotalDeposited = wallet.TotalDeposited.Add(in.RefundAmount)
			wallet.LastTransactionDate = now
			if err := tx.PutWallet(ctx, wallet); err != nil {
				return err
			}

			if err := tx.Prepend(ctx, ledger.Transaction{
				ID:          e.IDs.NewTransactionID(),
				UserID:      in.UserID,
				Type:        ledger.TxRefund,
				Amount:      in.RefundAmount,
				Points:      0,
				Description: in.RefundReason,
				Timestamp:   now,
				Currency:    currency,
			}); err != nil {
				return err
			}
		}

		refund := ledger.Refund{
			ID:          e.IDs.NewRefundID(),
			OrderID:     in.OrderID,
			Amount:      in.RefundAmount,
			Reason:      in.RefundReason,
			Type:        refundType,
			Status:      ledger.RefundProcessed,
			ProcessedAt: now,
			Currency:    currency,
			Region:      ledger.Or(in.Region, e.Defaults.Region),
		}
		if err := tx.PutRefund(ctx, refund); err != nil {
			return err
		}

		result = TriggerResult{
			RefundID:     refund.ID,
			OrderID:      refund.OrderID,
			RefundAmount: refund.Amount,
			RefundType:   refund.Type,
			Status:       refund.Status,
			Currency:     refund.Currency,
			ProcessedAt:  refund.ProcessedAt,
		}
		return nil
	})

	return result, err
}

// Get returns a stored refund.
func (e *Engine) Get(ctx context.Context, refundID string) (ledger.Refund, error) {
	var refund ledger.Refund
	err := e.Store.WithTx(ctx, func(tx ledger.Tx) error {
		r, err := tx.Refund(ctx, refundID)
		if err != nil {
			return err
		}
		if r == nil {
			return ledger.ErrRefundNotFound
		}
		refund = *r
		return nil
	})
	return refund, err
}
