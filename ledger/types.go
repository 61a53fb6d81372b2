/*
Package ledger provides the core state model for the loyalty and wallet engine.

PURPOSE:
  This package holds the types every rules engine works on: one loyalty
  points account, one wallet account, an ordered transaction ledger, and the
  order and refund records checkout flows refer to. It knows nothing about
  HTTP or about the individual checkout rules.

KEY CONCEPTS IN THIS FILE (types.go):
  - LoyaltyAccount: Redeemable points, plus lifetime earned/redeemed/expired
  - WalletAccount:  Stored-value balance with a minimum spend threshold
  - Transaction:    Immutable ledger entry (most-recent-first)
  - Order / Refund: Records created by the test helper and the refund engine

DESIGN PRINCIPLES:
  1. Precision: money is decimal.Decimal, points are int64
  2. Closed enums: TxType, RefundType and RefundStatus reject unknown values
  3. Immutability: Transactions and Refunds are never modified after creation

SEE ALSO:
  - store.go:  Store / Tx interfaces (the atomic boundary)
  - errors.go: Error kinds shared by all rules engines
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// LoyaltyAccount is the single points account shared by every caller.
type LoyaltyAccount struct {
	UserID             string
	AvailablePoints    int64
	TotalEarned        int64
	TotalRedeemed      int64
	ExpiredPoints      int64
	PointsExpiringSoon int64
	Currency           string
	Region             string
	LastUpdated        time.Time
}

// Consistent reports whether available = earned - redeemed - expired.
func (a LoyaltyAccount) Consistent() bool {
	return a.AvailablePoints == a.TotalEarned-a.TotalRedeemed-a.ExpiredPoints
}

// WalletAccount is the single stored-value account shared by every caller.
type WalletAccount struct {
	UserID              string
	AvailableBalance    decimal.Decimal
	TotalDeposited      decimal.Decimal
	TotalSpent          decimal.Decimal
	LastTransactionDate time.Time
	Currency            string
	Region              string
	MinimumThreshold    decimal.Decimal
}

// =============================================================================
// TRANSACTION - Ledger entry
// =============================================================================

type TxType string

const (
	TxEarned   TxType = "earned"
	TxRedeemed TxType = "redeemed"
	TxRefund   TxType = "refund"
	TxOther    TxType = "other"
)

// ParseTxType maps a wire value onto the closed set of transaction types.
func ParseTxType(s string) (TxType, error) {
	switch t := TxType(s); t {
	case TxEarned, TxRedeemed, TxRefund, TxOther:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidTransactionType, s)
	}
}

// Transaction is an immutable ledger entry. Amount and Points are signed.
type Transaction struct {
	ID          string
	UserID      string
	Type        TxType
	Amount      decimal.Decimal
	Points      int64
	Description string
	Timestamp   time.Time
	Currency    string
}

// =============================================================================
// ORDERS AND REFUNDS
// =============================================================================

type OrderStatus string

const OrderPending OrderStatus = "pending"

// Order is created by the test helper endpoint and only read by the engines.
type Order struct {
	ID       string
	Total    decimal.Decimal
	Currency string
	Status   OrderStatus
}

type RefundType string

const (
	RefundToWallet RefundType = "wallet"
	RefundOther    RefundType = "other"
)

// ParseRefundType maps a wire value onto the closed set of refund types.
// An empty value means wallet.
func ParseRefundType(s string) (RefundType, error) {
	switch t := RefundType(s); t {
	case "":
		return RefundToWallet, nil
	case RefundToWallet, RefundOther:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRefundType, s)
	}
}

// RefundStatus has a single terminal value; refunds are processed immediately.
type RefundStatus string

const RefundProcessed RefundStatus = "processed"

// Refund is stored once per refund request and never mutated.
type Refund struct {
	ID          string
	OrderID     string
	Amount      decimal.Decimal
	Reason      string
	Type        RefundType
	Status      RefundStatus
	ProcessedAt time.Time
	Currency    string
	Region      string
}
