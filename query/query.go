/*
Package query implements the read side: account balances and the filtered,
paginated transaction ledger.

PURPOSE:
  Balance reads refresh the account's timestamp (the mock reports "as of
  now"), so they go through Store.WithTx like writes. Balances themselves
  are never changed here.

LISTING:
  1. Start from the ledger, most-recent-first
  2. Keep entries matching Type exactly (if set)
  3. Keep entries with Start <= timestamp <= End (each bound optional)
  4. Total = number of entries that survive filtering
  5. Return entries [Offset, Offset+Limit), clamped to the list
*/
package query

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/warp/loyalty-engine/ledger"
)

// DefaultLimit is the page size when the caller gives none.
const DefaultLimit = 10

type Service struct {
	Store ledger.Store
	Clock ledger.Clock
}

func NewService(store ledger.Store, clock ledger.Clock) *Service {
	if clock == nil {
		clock = ledger.SystemClock{}
	}
	return &Service{Store: store, Clock: clock}
}

// =============================================================================
// BALANCES
// =============================================================================

// LoyaltyBalance returns the loyalty account with LastUpdated set to now.
func (s *Service) LoyaltyBalance(ctx context.Context) (ledger.LoyaltyAccount, error) {
	var account ledger.LoyaltyAccount
	err := s.Store.WithTx(ctx, func(tx ledger.Tx) error {
		a, err := tx.Loyalty(ctx)
		if err != nil {
			return err
		}
		a.LastUpdated = s.Clock.Now()
		if err := tx.PutLoyalty(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	return account, err
}

// WalletBalance returns the wallet account with LastTransactionDate set to now.
func (s *Service) WalletBalance(ctx context.Context) (ledger.WalletAccount, error) {
	var account ledger.WalletAccount
	err := s.Store.WithTx(ctx, func(tx ledger.Tx) error {
		a, err := tx.Wallet(ctx)
		if err != nil {
			return err
		}
		a.LastTransactionDate = s.Clock.Now()
		if err := tx.PutWallet(ctx, a); err != nil {
			return err
		}
		account = a
		return nil
	})
	return account, err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Filter selects and pages ledger entries. Nil fields do not filter.
type Filter struct {
	Type   *ledger.TxType
	Start  *time.Time
	End    *time.Time
	Limit  int
	Offset int
}

// Matches reports whether t passes the type and date filters.
func (f Filter) Matches(t ledger.Transaction) bool {
	if f.Type != nil && t.Type != *f.Type {
		return false
	}
	if f.Start != nil && t.Timestamp.Before(*f.Start) {
		return false
	}
	if f.End != nil && t.Timestamp.After(*f.End) {
		return false
	}
	return true
}

type Page struct {
	Transactions []ledger.Transaction
	Limit        int
	Offset       int
	Total        int
}

// ListTransactions returns one page of the filtered ledger.
func (s *Service) ListTransactions(ctx context.Context, f Filter) (Page, error) {
	if f.Limit < 0 || f.Offset < 0 {
		return Page{}, ledger.ErrInvalidPagination
	}

	var all []ledger.Transaction
	err := s.Store.WithTx(ctx, func(tx ledger.Tx) error {
		var err error
		all, err = tx.Transactions(ctx)
		return err
	})
	if err != nil {
		return Page{}, err
	}

	filtered := make([]ledger.Transaction, 0, len(all))
	for _, t := range all {
		if f.Matches(t) {
			filtered = append(filtered, t)
		}
	}

	start := min(f.Offset, len(filtered))
	end := start + min(f.Limit, len(filtered)-start)

	return Page{
		Transactions: filtered[start:end],
		Limit:        f.Limit,
		Offset:       f.Offset,
		Total:        len(filtered),
	}, nil
}

// =============================================================================
// QUERY STRING PARSING
// =============================================================================

const dateOnly = "2006-01-02"

// ParseFilter builds a Filter from raw query-string values. Empty values
// take defaults. An end date without a time covers the whole day.
func ParseFilter(limit, offset, txType, startDate, endDate string) (Filter, error) {
	var (
		f   Filter
		err error
	)
	if f.Limit, err = parseCount("limit", limit, DefaultLimit); err != nil {
		return Filter{}, err
	}
	if f.Offset, err = parseCount("offset", offset, 0); err != nil {
		return Filter{}, err
	}

	if txType != "" {
		t, err := ledger.ParseTxType(txType)
		if err != nil {
			return Filter{}, err
		}
		f.Type = &t
	}

	if startDate != "" {
		t, _, err := parseDate("startDate", startDate)
		if err != nil {
			return Filter{}, err
		}
		f.Start = &t
	}

	if endDate != "" {
		t, isDateOnly, err := parseDate("endDate", endDate)
		if err != nil {
			return Filter{}, err
		}
		if isDateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.End = &t
	}

	return f, nil
}

func parseCount(name, raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer, got %q", ledger.ErrInvalidPagination, name, raw)
	}
	return n, nil
}

func parseDate(name, raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), false, nil
	}
	if t, err := time.Parse(dateOnly, raw); err == nil {
		return t, true, nil
	}
	return time.Time{}, false, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD, got %q", ledger.ErrInvalidDate, name, raw)
}
