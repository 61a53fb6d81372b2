// Package storetest is the behavioral contract every ledger.Store driver
// must satisfy. Driver packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/ledger"
)

// Factory returns an empty store. The store is closed by the caller's cleanup.
type Factory func(t *testing.T) ledger.Store

var errRule = errors.New("rule rejected")

func at(day int) time.Time {
	return time.Date(2024, time.December, day, 10, 0, 0, 0, time.UTC)
}

func sampleState() ledger.State {
	return ledger.State{
		Loyalty: ledger.LoyaltyAccount{
			UserID: "user_12345", AvailablePoints: 1500, TotalEarned: 2500, TotalRedeemed: 1000,
			PointsExpiringSoon: 200, Currency: "SAR", Region: "KSA", LastUpdated: at(15),
		},
		Wallet: ledger.WalletAccount{
			UserID: "user_12345", AvailableBalance: decimal.RequireFromString("250.50"),
			TotalDeposited: decimal.RequireFromString("500"), TotalSpent: decimal.RequireFromString("249.50"),
			LastTransactionDate: at(15), Currency: "SAR", Region: "KSA",
			MinimumThreshold: decimal.RequireFromString("10"),
		},
		Transactions: []ledger.Transaction{
			{ID: "txn_002", UserID: "user_12345", Type: ledger.TxRedeemed, Amount: decimal.RequireFromString("-25"), Points: -50, Description: "redeemed", Timestamp: at(14), Currency: "SAR"},
			{ID: "txn_001", UserID: "user_12345", Type: ledger.TxEarned, Amount: decimal.RequireFromString("50"), Points: 100, Description: "earned", Timestamp: at(13), Currency: "SAR"},
		},
		Orders: []ledger.Order{
			{ID: "order_1", Total: decimal.RequireFromString("299"), Currency: "SAR", Status: ledger.OrderPending},
		},
	}
}

// Run executes the contract against stores produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("RestoreThenSnapshot", func(t *testing.T) { testRestoreSnapshot(t, newStore(t)) })
	t.Run("CommitPersistsWrites", func(t *testing.T) { testCommit(t, newStore(t)) })
	t.Run("ErrorRollsBackEverything", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("PrependKeepsMostRecentFirst", func(t *testing.T) { testPrependOrder(t, newStore(t)) })
	t.Run("DuplicateIDsRejected", func(t *testing.T) { testDuplicates(t, newStore(t)) })
	t.Run("MissingRecordsAreNil", func(t *testing.T) { testMissing(t, newStore(t)) })
}

func testRestoreSnapshot(t *testing.T, st ledger.Store) {
	ctx := context.Background()
	require.NoError(t, st.Restore(ctx, sampleState()))

	got, err := st.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(1500), got.Loyalty.AvailablePoints)
	assert.True(t, got.Loyalty.LastUpdated.Equal(at(15)))
	assert.True(t, decimal.RequireFromString("250.50").Equal(got.Wallet.AvailableBalance))
	require.Len(t, got.Transactions, 2)
	assert.Equal(t, "txn_002", got.Transactions[0].ID)
	assert.True(t, decimal.RequireFromString("-25").Equal(got.Transactions[0].Amount))
	require.Len(t, got.Orders, 1)
	assert.Equal(t, ledger.OrderPending, got.Orders[0].Status)
	assert.Empty(t, got.Refunds)

	// Restore replaces rather than merges.
	empty := sampleState()
	empty.Transactions = nil
	empty.Orders = nil
	require.NoError(t, st.Restore(ctx, empty))
	got, err = st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Transactions)
	assert.Empty(t, got.Orders)
}

func testCommit(t *testing.T, st ledger.Store) {
	ctx := context.Background()
	require.NoError(t, st.Restore(ctx, sampleState()))

	err := st.WithTx(ctx, func(tx ledger.Tx) error {
		w, err := tx.Wallet(ctx)
		if err != nil {
			return err
		}
		w.AvailableBalance = w.AvailableBalance.Add(decimal.NewFromInt(10))
		if err := tx.PutWallet(ctx, w); err != nil {
			return err
		}
		return tx.PutRefund(ctx, ledger.Refund{
			ID: "refund_1", OrderID: "order_1", Amount: decimal.NewFromInt(10), Reason: "r",
			Type: ledger.RefundToWallet, Status: ledger.RefundProcessed, ProcessedAt: at(16),
			Currency: "SAR", Region: "KSA",
		})
	})
	require.NoError(t, err)

	got, err := st.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("260.50").Equal(got.Wallet.AvailableBalance))
	require.Len(t, got.Refunds, 1)
	assert.Equal(t, "refund_1", got.Refunds[0].ID)
	assert.Equal(t, ledger.RefundToWallet, got.Refunds[0].Type)
}

func testRollback(t *testing.T, st ledger.Store) {
	ctx := context.Background()
	require.NoError(t, st.Restore(ctx, sampleState()))
	before, err := st.Snapshot(ctx)
	require.NoError(t, err)

	err = st.WithTx(ctx, func(tx ledger.Tx) error {
		a, err := tx.Loyalty(ctx)
		if err != nil {
			return err
		}
		a.AvailablePoints = 0
		if err := tx.PutLoyalty(ctx, a); err != nil {
			return err
		}
		if err := tx.Prepend(ctx, ledger.Transaction{ID: "txn_new", Type: ledger.TxOther, Timestamp: at(16), Currency: "SAR"}); err != nil {
			return err
		}
		if err := tx.PutOrder(ctx, ledger.Order{ID: "order_2", Total: decimal.NewFromInt(1), Currency: "SAR", Status: ledger.OrderPending}); err != nil {
			return err
		}
		return errRule
	})
	require.ErrorIs(t, err, errRule)

	after, err := st.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Loyalty.AvailablePoints, after.Loyalty.AvailablePoints)
	assert.Len(t, after.Transactions, len(before.Transactions))
	assert.Len(t, after.Orders, len(before.Orders))
}

func testPrependOrder(t *testing.T, st ledger.Store) {
	ctx := context.Background()
	require.NoError(t, st.Restore(ctx, sampleState()))

	for _, id := range []string{"txn_003", "txn_004"} {
		require.NoError(t, st.WithTx(ctx, func(tx ledger.Tx) error {
			return tx.Prepend(ctx, ledger.Transaction{ID: id, Type: ledger.TxRefund, Amount: decimal.NewFromInt(1), Timestamp: at(16), Currency: "SAR"})
		}))
	}

	var ids []string
	require.NoError(t, st.WithTx(ctx, func(tx ledger.Tx) error {
		txs, err := tx.Transactions(ctx)
		for _, x := range txs {
			ids = append(ids, x.ID)
		}
		return err
	}))
	assert.Equal(t, []string{"txn_004", "txn_003", "txn_002", "txn_001"}, ids)
}

func testDuplicates(t *testing.T, st ledger.Store) {
	ctx := context.Background()
	require.NoError(t, st.Restore(ctx, sampleState()))

	err := st.WithTx(ctx, func(tx ledger.Tx) error {
		return tx.Prepend(ctx, ledger.Transaction{ID: "txn_001", Type: ledger.TxOther, Timestamp: at(16), Currency: "SAR"})
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateID)

	refund := ledger.Refund{ID: "refund_1", OrderID: "order_1", Amount: decimal.NewFromInt(1), Reason: "r",
		Type: ledger.RefundOther, Status: ledger.RefundProcessed, ProcessedAt: at(16), Currency: "SAR", Region: "KSA"}
	require.NoError(t, st.WithTx(ctx, func(tx ledger.Tx) error { return tx.PutRefund(ctx, refund) }))
	err = st.WithTx(ctx, func(tx ledger.Tx) error { return tx.PutRefund(ctx, refund) })
	assert.ErrorIs(t, err, ledger.ErrDuplicateID)

	bad := sampleState()
	bad.Transactions = append(bad.Transactions, bad.Transactions[0])
	assert.Error(t, st.Restore(ctx, bad))
}

func testMissing(t *testing.T, st ledger.Store) {
	ctx := context.Background()
	require.NoError(t, st.Restore(ctx, sampleState()))

	require.NoError(t, st.WithTx(ctx, func(tx ledger.Tx) error {
		o, err := tx.Order(ctx, "order_missing")
		require.NoError(t, err)
		assert.Nil(t, o)

		r, err := tx.Refund(ctx, "refund_missing")
		require.NoError(t, err)
		assert.Nil(t, r)

		found, err := tx.Order(ctx, "order_1")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.True(t, decimal.NewFromInt(299).Equal(found.Total))
		return nil
	}))
}
