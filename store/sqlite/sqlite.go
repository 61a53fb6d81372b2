/*
Package sqlite provides a SQLite-backed implementation of ledger.Store.

PURPOSE:
  Same semantics as the memory store, backed by SQL. The default path is
  ":memory:", so state still lives only as long as the process; a file path
  can be given when an operator wants to inspect state with sqlite3.

KEY TABLES:
  loyalty_account:  Single row (id = 1)
  wallet_account:   Single row (id = 1)
  transactions:     Append-only ledger; seq orders it (newest = highest seq)
  orders:           Test-helper orders keyed by id
  refunds:          Immutable refund records keyed by id

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE on transactions or refunds, except Restore
  - Duplicate ids surface as ledger.ErrDuplicateID

CONCURRENCY:
  One sync.Mutex serializes WithTx, and the pool is pinned to a single
  connection (required for ":memory:"). Inside WithTx every statement runs
  on the sql.Tx, so a failed rule rolls back everything.

MONEY:
  Decimals are stored as TEXT via decimal.String() and parsed back with
  decimal.NewFromString, so no float rounding happens in storage.

USAGE:
  store, err := sqlite.New(":memory:")
  if err != nil {
      return err
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go:        Interface definitions
  - ledger/store/memory.go: In-memory implementation
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS loyalty_account (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		user_id TEXT NOT NULL,
		available_points INTEGER NOT NULL,
		total_earned INTEGER NOT NULL,
		total_redeemed INTEGER NOT NULL,
		expired_points INTEGER NOT NULL,
		points_expiring_soon INTEGER NOT NULL,
		currency TEXT NOT NULL,
		region TEXT NOT NULL,
		last_updated TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS wallet_account (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		user_id TEXT NOT NULL,
		available_balance TEXT NOT NULL,
		total_deposited TEXT NOT NULL,
		total_spent TEXT NOT NULL,
		last_transaction_date TEXT NOT NULL,
		currency TEXT NOT NULL,
		region TEXT NOT NULL,
		minimum_threshold TEXT NOT NULL
	);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		points INTEGER NOT NULL,
		description TEXT,
		occurred_at TEXT NOT NULL,
		currency TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(tx_type);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		total TEXT NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS refunds (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		reason TEXT NOT NULL,
		refund_type TEXT NOT NULL,
		status TEXT NOT NULL,
		processed_at TEXT NOT NULL,
		currency TEXT NOT NULL,
		region TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_refunds_order
		ON refunds(order_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.Store interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{q: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Snapshot returns the full state.
func (s *Store) Snapshot(ctx context.Context) (ledger.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ts := &txStore{q: s.db}
	var (
		state ledger.State
		err   error
	)
	if state.Loyalty, err = ts.Loyalty(ctx); err != nil {
		return ledger.State{}, err
	}
	if state.Wallet, err = ts.Wallet(ctx); err != nil {
		return ledger.State{}, err
	}
	if state.Transactions, err = ts.Transactions(ctx); err != nil {
		return ledger.State{}, err
	}
	if state.Orders, err = ts.orders(ctx); err != nil {
		return ledger.State{}, err
	}
	if state.Refunds, err = ts.refunds(ctx); err != nil {
		return ledger.State{}, err
	}
	return state, nil
}

// Restore replaces all data with state.
func (s *Store) Restore(ctx context.Context, state ledger.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	tables := []string{"transactions", "refunds", "orders", "wallet_account", "loyalty_account"}
	for _, table := range tables {
		if _, err := sqlTx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	ts := &txStore{q: sqlTx}
	if err := ts.PutLoyalty(ctx, state.Loyalty); err != nil {
		return err
	}
	if err := ts.PutWallet(ctx, state.Wallet); err != nil {
		return err
	}
	// Oldest first, so the newest entry gets the highest seq.
	for i := len(state.Transactions) - 1; i >= 0; i-- {
		if err := ts.Prepend(ctx, state.Transactions[i]); err != nil {
			return err
		}
	}
	for _, o := range state.Orders {
		if err := ts.PutOrder(ctx, o); err != nil {
			return err
		}
	}
	for _, r := range state.Refunds {
		if err := ts.PutRefund(ctx, r); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

type txStore struct {
	q queryer
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (ts *txStore) Loyalty(ctx context.Context) (ledger.LoyaltyAccount, error) {
	var (
		a           ledger.LoyaltyAccount
		lastUpdated string
	)
	err := ts.q.QueryRowContext(ctx, `
		SELECT user_id, available_points, total_earned, total_redeemed, expired_points,
		       points_expiring_soon, currency, region, last_updated
		FROM loyalty_account WHERE id = 1
	`).Scan(&a.UserID, &a.AvailablePoints, &a.TotalEarned, &a.TotalRedeemed, &a.ExpiredPoints,
		&a.PointsExpiringSoon, &a.Currency, &a.Region, &lastUpdated)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.LoyaltyAccount{}, nil
	}
	if err != nil {
		return a, fmt.Errorf("failed to load loyalty account: %w", err)
	}
	a.LastUpdated = parseTime(lastUpdated)
	return a, nil
}

func (ts *txStore) PutLoyalty(ctx context.Context, a ledger.LoyaltyAccount) error {
	_, err := ts.q.ExecContext(ctx, `
		INSERT OR REPLACE INTO loyalty_account
		(id, user_id, available_points, total_earned, total_redeemed, expired_points,
		 points_expiring_soon, currency, region, last_updated)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.UserID, a.AvailablePoints, a.TotalEarned, a.TotalRedeemed, a.ExpiredPoints,
		a.PointsExpiringSoon, a.Currency, a.Region, formatTime(a.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to save loyalty account: %w", err)
	}
	return nil
}

func (ts *txStore) Wallet(ctx context.Context) (ledger.WalletAccount, error) {
	var (
		w                                   ledger.WalletAccount
		available, deposited, spent, minimum string
		lastTx                              string
	)
	err := ts.q.QueryRowContext(ctx, `
		SELECT user_id, available_balance, total_deposited, total_spent, last_transaction_date,
		       currency, region, minimum_threshold
		FROM wallet_account WHERE id = 1
	`).Scan(&w.UserID, &available, &deposited, &spent, &lastTx, &w.Currency, &w.Region, &minimum)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.WalletAccount{}, nil
	}
	if err != nil {
		return w, fmt.Errorf("failed to load wallet account: %w", err)
	}
	w.AvailableBalance = parseDecimal(available)
	w.TotalDeposited = parseDecimal(deposited)
	w.TotalSpent = parseDecimal(spent)
	w.MinimumThreshold = parseDecimal(minimum)
	w.LastTransactionDate = parseTime(lastTx)
	return w, nil
}

func (ts *txStore) PutWallet(ctx context.Context, w ledger.WalletAccount) error {
	_, err := ts.q.ExecContext(ctx, `
		INSERT OR REPLACE INTO wallet_account
		(id, user_id, available_balance, total_deposited, total_spent, last_transaction_date,
		 currency, region, minimum_threshold)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?)
	`, w.UserID, w.AvailableBalance.String(), w.TotalDeposited.String(), w.TotalSpent.String(),
		formatTime(w.LastTransactionDate), w.Currency, w.Region, w.MinimumThreshold.String())
	if err != nil {
		return fmt.Errorf("failed to save wallet account: %w", err)
	}
	return nil
}

// =============================================================================
// TRANSACTIONS (append-only)
// =============================================================================

func (ts *txStore) Prepend(ctx context.Context, tx ledger.Transaction) error {
	_, err := ts.q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, user_id, tx_type, amount, points, description, occurred_at, currency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, tx.ID, tx.UserID, string(tx.Type), tx.Amount.String(), tx.Points,
		nullString(tx.Description), formatTime(tx.Timestamp), tx.Currency)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: transaction %s", ledger.ErrDuplicateID, tx.ID)
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}
	return nil
}

func (ts *txStore) Transactions(ctx context.Context) ([]ledger.Transaction, error) {
	rows, err := ts.q.QueryContext(ctx, `
		SELECT id, user_id, tx_type, amount, points, description, occurred_at, currency
		FROM transactions
		ORDER BY seq DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []ledger.Transaction{}
	for rows.Next() {
		var (
			tx          ledger.Transaction
			txType      string
			amount      string
			description sql.NullString
			occurredAt  string
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &txType, &amount, &tx.Points,
			&description, &occurredAt, &tx.Currency); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if tx.Type, err = ledger.ParseTxType(txType); err != nil {
			return nil, err
		}
		tx.Amount = parseDecimal(amount)
		tx.Description = description.String
		tx.Timestamp = parseTime(occurredAt)
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// =============================================================================
// ORDERS
// =============================================================================

func (ts *txStore) Order(ctx context.Context, id string) (*ledger.Order, error) {
	var (
		o      ledger.Order
		total  string
		status string
	)
	err := ts.q.QueryRowContext(ctx,
		"SELECT id, total, currency, status FROM orders WHERE id = ?", id,
	).Scan(&o.ID, &total, &o.Currency, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	o.Total = parseDecimal(total)
	o.Status = ledger.OrderStatus(status)
	return &o, nil
}

func (ts *txStore) PutOrder(ctx context.Context, o ledger.Order) error {
	_, err := ts.q.ExecContext(ctx,
		"INSERT OR REPLACE INTO orders (id, total, currency, status) VALUES (?, ?, ?, ?)",
		o.ID, o.Total.String(), o.Currency, string(o.Status))
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

func (ts *txStore) orders(ctx context.Context) ([]ledger.Order, error) {
	rows, err := ts.q.QueryContext(ctx, "SELECT id, total, currency, status FROM orders ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	orders := []ledger.Order{}
	for rows.Next() {
		var (
			o      ledger.Order
			total  string
			status string
		)
		if err := rows.Scan(&o.ID, &total, &o.Currency, &status); err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		o.Total = parseDecimal(total)
		o.Status = ledger.OrderStatus(status)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// =============================================================================
// REFUNDS
// =============================================================================

const refundColumns = "id, order_id, amount, reason, refund_type, status, processed_at, currency, region"

func (ts *txStore) Refund(ctx context.Context, id string) (*ledger.Refund, error) {
	rows, err := ts.q.QueryContext(ctx, "SELECT "+refundColumns+" FROM refunds WHERE id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	r, err := scanRefund(rows)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (ts *txStore) PutRefund(ctx context.Context, r ledger.Refund) error {
	_, err := ts.q.ExecContext(ctx, "INSERT INTO refunds ("+refundColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		r.ID, r.OrderID, r.Amount.String(), r.Reason, string(r.Type), string(r.Status),
		formatTime(r.ProcessedAt), r.Currency, r.Region)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: refund %s", ledger.ErrDuplicateID, r.ID)
		}
		return fmt.Errorf("failed to save refund: %w", err)
	}
	return nil
}

func (ts *txStore) refunds(ctx context.Context) ([]ledger.Refund, error) {
	rows, err := ts.q.QueryContext(ctx, "SELECT "+refundColumns+" FROM refunds ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	refunds := []ledger.Refund{}
	for rows.Next() {
		r, err := scanRefund(rows)
		if err != nil {
			return nil, err
		}
		refunds = append(refunds, r)
	}
	return refunds, rows.Err()
}

func scanRefund(rows *sql.Rows) (ledger.Refund, error) {
	var (
		r                                ledger.Refund
		amount, refundType, status, done string
	)
	err := rows.Scan(&r.ID, &r.OrderID, &amount, &r.Reason, &refundType, &status, &done, &r.Currency, &r.Region)
	if err != nil {
		return r, fmt.Errorf("failed to scan refund: %w", err)
	}
	if r.Type, err = ledger.ParseRefundType(refundType); err != nil {
		return r, err
	}
	r.Amount = parseDecimal(amount)
	r.Status = ledger.RefundStatus(status)
	r.ProcessedAt = parseTime(done)
	return r, nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
