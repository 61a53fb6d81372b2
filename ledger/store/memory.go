// Package store provides Store implementations.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/loyalty-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (default driver)
// =============================================================================

type Memory struct {
	mu           sync.Mutex
	loyalty      ledger.LoyaltyAccount
	wallet       ledger.WalletAccount
	transactions []ledger.Transaction // most-recent-first
	txIDs        map[string]bool
	orders       map[string]ledger.Order
	refunds      map[string]ledger.Refund
}

func NewMemory() *Memory {
	return &Memory{
		txIDs:   make(map[string]bool),
		orders:  make(map[string]ledger.Order),
		refunds: make(map[string]ledger.Refund),
	}
}

// WithTx executes fn under the store lock.
// On error the state captured before fn ran is restored.
func (m *Memory) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.snapshotLocked()
	if err := fn(&memoryTx{parent: m}); err != nil {
		m.restoreLocked(snapshot)
		return err
	}
	return nil
}

func (m *Memory) Snapshot(_ context.Context) (ledger.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(), nil
}

func (m *Memory) Restore(_ context.Context, state ledger.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]bool, len(state.Transactions))
	for _, tx := range state.Transactions {
		if seen[tx.ID] {
			return fmt.Errorf("%w: transaction %s", ledger.ErrDuplicateID, tx.ID)
		}
		seen[tx.ID] = true
	}
	m.restoreLocked(state)
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) snapshotLocked() ledger.State {
	s := ledger.State{
		Loyalty:      m.loyalty,
		Wallet:       m.wallet,
		Transactions: append([]ledger.Transaction(nil), m.transactions...),
		Orders:       make([]ledger.Order, 0, len(m.orders)),
		Refunds:      make([]ledger.Refund, 0, len(m.refunds)),
	}
	for _, o := range m.orders {
		s.Orders = append(s.Orders, o)
	}
	for _, r := range m.refunds {
		s.Refunds = append(s.Refunds, r)
	}
	sort.Slice(s.Orders, func(i, j int) bool { return s.Orders[i].ID < s.Orders[j].ID })
	sort.Slice(s.Refunds, func(i, j int) bool { return s.Refunds[i].ID < s.Refunds[j].ID })
	return s
}

func (m *Memory) restoreLocked(s ledger.State) {
	m.loyalty = s.Loyalty
	m.wallet = s.Wallet
	m.transactions = append([]ledger.Transaction(nil), s.Transactions...)
	m.txIDs = make(map[string]bool, len(s.Transactions))
	for _, tx := range s.Transactions {
		m.txIDs[tx.ID] = true
	}
	m.orders = make(map[string]ledger.Order, len(s.Orders))
	for _, o := range s.Orders {
		m.orders[o.ID] = o
	}
	m.refunds = make(map[string]ledger.Refund, len(s.Refunds))
	for _, r := range s.Refunds {
		m.refunds[r.ID] = r
	}
}

// =============================================================================
// TRANSACTIONAL VIEW - Only valid while the parent lock is held
// =============================================================================

type memoryTx struct {
	parent *Memory
}

func (tx *memoryTx) Loyalty(_ context.Context) (ledger.LoyaltyAccount, error) {
	return tx.parent.loyalty, nil
}

func (tx *memoryTx) PutLoyalty(_ context.Context, account ledger.LoyaltyAccount) error {
	tx.parent.loyalty = account
	return nil
}

func (tx *memoryTx) Wallet(_ context.Context) (ledger.WalletAccount, error) {
	return tx.parent.wallet, nil
}

func (tx *memoryTx) PutWallet(_ context.Context, account ledger.WalletAccount) error {
	tx.parent.wallet = account
	return nil
}

func (tx *memoryTx) Order(_ context.Context, id string) (*ledger.Order, error) {
	o, ok := tx.parent.orders[id]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (tx *memoryTx) PutOrder(_ context.Context, order ledger.Order) error {
	tx.parent.orders[order.ID] = order
	return nil
}

func (tx *memoryTx) Refund(_ context.Context, id string) (*ledger.Refund, error) {
	r, ok := tx.parent.refunds[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (tx *memoryTx) PutRefund(_ context.Context, refund ledger.Refund) error {
	if _, exists := tx.parent.refunds[refund.ID]; exists {
		return fmt.Errorf("%w: refund %s", ledger.ErrDuplicateID, refund.ID)
	}
	tx.parent.refunds[refund.ID] = refund
	return nil
}

func (tx *memoryTx) Prepend(_ context.Context, t ledger.Transaction) error {
	if tx.parent.txIDs[t.ID] {
		return fmt.Errorf("%w: transaction %s", ledger.ErrDuplicateID, t.ID)
	}
	txs := make([]ledger.Transaction, 0, len(tx.parent.transactions)+1)
	txs = append(txs, t)
	tx.parent.transactions = append(txs, tx.parent.transactions...)
	tx.parent.txIDs[t.ID] = true
	return nil
}

func (tx *memoryTx) Transactions(_ context.Context) ([]ledger.Transaction, error) {
	result := make([]ledger.Transaction, len(tx.parent.transactions))
	copy(result, tx.parent.transactions)
	return result, nil
}
