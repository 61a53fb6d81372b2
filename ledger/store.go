/*
store.go - Persistence interface for accounts, ledger, orders and refunds

PURPOSE:
  Defines the boundary between the rules engines and state. Every engine
  operation runs inside Store.WithTx, which is the single atomic unit:
  validate -> mutate -> return happens with no other request interleaved.

KEY INTERFACES:
  Store: WithTx plus whole-state Snapshot/Restore (for seeds and admin)
  Tx:    Reads and writes visible inside one atomic unit

APPEND-ONLY CONTRACT:
  - Prepend() is the only ledger write; there is no update or delete
  - PutRefund() rejects an id that already exists
  - Transactions() returns most-recent-first

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory, one mutex, snapshot rollback
  - store/sqlite/sqlite.go: SQLite (":memory:" by default)

SEE ALSO:
  - checkout/, refund/, query/: The only callers of WithTx
*/
package ledger

import "context"

// =============================================================================
// STORE - Atomic access to all engine state
// =============================================================================

// Store owns the loyalty account, wallet account, ledger, orders and refunds.
type Store interface {
	// WithTx executes fn atomically. If fn returns an error, every write
	// made through the Tx is discarded.
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Snapshot returns a copy of the full state.
	Snapshot(ctx context.Context) (State, error)

	// Restore replaces the full state (used by seeds and resets).
	Restore(ctx context.Context, state State) error

	Close() error
}

// Tx is the view of the store inside one WithTx call.
type Tx interface {
	Loyalty(ctx context.Context) (LoyaltyAccount, error)
	PutLoyalty(ctx context.Context, account LoyaltyAccount) error

	Wallet(ctx context.Context) (WalletAccount, error)
	PutWallet(ctx context.Context, account WalletAccount) error

	// Order returns nil if the order does not exist.
	Order(ctx context.Context, id string) (*Order, error)
	PutOrder(ctx context.Context, order Order) error

	// Refund returns nil if the refund does not exist.
	Refund(ctx context.Context, id string) (*Refund, error)
	PutRefund(ctx context.Context, refund Refund) error

	// Prepend adds a transaction at the head of the ledger.
	Prepend(ctx context.Context, tx Transaction) error

	// Transactions returns the ledger, most-recent-first.
	Transactions(ctx context.Context) ([]Transaction, error)
}

// =============================================================================
// STATE - Full copy of the store contents
// =============================================================================

// State is a complete copy of the store. Transactions are most-recent-first.
type State struct {
	Loyalty      LoyaltyAccount
	Wallet       WalletAccount
	Transactions []Transaction
	Orders       []Order
	Refunds      []Refund
}
