/*
Package seed loads declarative starting states for the checkout mock.

PURPOSE:
  Integration tests need the mock to start from a known state and to jump
  between states (empty wallet, expired points) without restarting. A
  scenario is a full ledger.State written in YAML; the catalog shipped with
  the binary is embedded from scenarios.yaml, and an operator can replace it
  with their own file.

HOW SCENARIOS WORK:
  1. Parse YAML into Catalog (every scenario is validated up front)
  2. Scenario.State() returns a fresh copy of the state
  3. Store.Restore(state) replaces everything in the store

FORMAT:
  Field names match the HTTP wire format (userId, availablePoints, ...).
  Money is a quoted decimal string. Times are RFC 3339.

SEE ALSO:
  - scenarios.yaml: Built-in catalog
  - api/scenarios.go: HTTP endpoints for listing and loading scenarios
*/
package seed

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/ledger"
	"gopkg.in/yaml.v3"
)

//go:embed scenarios.yaml
var builtin []byte

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an ordered set of scenarios. The first one is the default.
type Catalog struct {
	scenarios []Scenario
	byID      map[string]int
}

// Scenario is a named starting state.
type Scenario struct {
	ID          string
	Name        string
	Description string
	state       ledger.State
}

// State returns a copy of the scenario state.
func (s Scenario) State() ledger.State {
	st := s.state
	st.Transactions = append([]ledger.Transaction(nil), s.state.Transactions...)
	st.Orders = append([]ledger.Order(nil), s.state.Orders...)
	st.Refunds = append([]ledger.Refund(nil), s.state.Refunds...)
	return st
}

// Builtin returns the embedded catalog.
func Builtin() *Catalog {
	c, err := Parse(builtin)
	if err != nil {
		panic(fmt.Sprintf("seed: embedded scenarios.yaml is invalid: %v", err))
	}
	return c
}

// LoadFile reads a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var doc catalogYAML
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	if len(doc.Scenarios) == 0 {
		return nil, fmt.Errorf("seed catalog has no scenarios")
	}

	c := &Catalog{byID: make(map[string]int, len(doc.Scenarios))}
	for _, sy := range doc.Scenarios {
		if sy.ID == "" {
			return nil, fmt.Errorf("scenario without id")
		}
		if _, dup := c.byID[sy.ID]; dup {
			return nil, fmt.Errorf("duplicate scenario id %q", sy.ID)
		}
		state, err := sy.toState()
		if err != nil {
			return nil, fmt.Errorf("scenario %q: %w", sy.ID, err)
		}
		c.byID[sy.ID] = len(c.scenarios)
		c.scenarios = append(c.scenarios, Scenario{
			ID:          sy.ID,
			Name:        sy.Name,
			Description: sy.Description,
			state:       state,
		})
	}
	return c, nil
}

// Get returns the scenario with the given id.
func (c *Catalog) Get(id string) (Scenario, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Scenario{}, false
	}
	return c.scenarios[i], true
}

// Default returns the first scenario.
func (c *Catalog) Default() Scenario {
	return c.scenarios[0]
}

// List returns scenarios in file order.
func (c *Catalog) List() []Scenario {
	return append([]Scenario(nil), c.scenarios...)
}

// =============================================================================
// YAML SHAPES
// =============================================================================

type catalogYAML struct {
	Scenarios []scenarioYAML `yaml:"scenarios"`
}

type scenarioYAML struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Description  string            `yaml:"description"`
	Loyalty      loyaltyYAML       `yaml:"loyalty"`
	Wallet       walletYAML        `yaml:"wallet"`
	Transactions []transactionYAML `yaml:"transactions"`
	Orders       []orderYAML       `yaml:"orders"`
}

type loyaltyYAML struct {
	UserID             string `yaml:"userId"`
	AvailablePoints    int64  `yaml:"availablePoints"`
	TotalEarned        int64  `yaml:"totalEarned"`
	TotalRedeemed      int64  `yaml:"totalRedeemed"`
	ExpiredPoints      int64  `yaml:"expiredPoints"`
	PointsExpiringSoon int64  `yaml:"pointsExpiringSoon"`
	Currency           string `yaml:"currency"`
	Region             string `yaml:"region"`
	LastUpdated        string `yaml:"lastUpdated"`
}

type walletYAML struct {
	UserID              string `yaml:"userId"`
	AvailableBalance    string `yaml:"availableBalance"`
	TotalDeposited      string `yaml:"totalDeposited"`
	TotalSpent          string `yaml:"totalSpent"`
	LastTransactionDate string `yaml:"lastTransactionDate"`
	Currency            string `yaml:"currency"`
	Region              string `yaml:"region"`
	MinimumThreshold    string `yaml:"minimumThreshold"`
}

type transactionYAML struct {
	ID          string `yaml:"transactionId"`
	UserID      string `yaml:"userId"`
	Type        string `yaml:"type"`
	Amount      string `yaml:"amount"`
	Points      int64  `yaml:"points"`
	Description string `yaml:"description"`
	Date        string `yaml:"date"`
	Currency    string `yaml:"currency"`
}

type orderYAML struct {
	ID       string `yaml:"orderId"`
	Total    string `yaml:"total"`
	Currency string `yaml:"currency"`
}

func (sy scenarioYAML) toState() (ledger.State, error) {
	var (
		st  ledger.State
		err error
	)

	l := sy.Loyalty
	st.Loyalty = ledger.LoyaltyAccount{
		UserID:             l.UserID,
		AvailablePoints:    l.AvailablePoints,
		TotalEarned:        l.TotalEarned,
		TotalRedeemed:      l.TotalRedeemed,
		ExpiredPoints:      l.ExpiredPoints,
		PointsExpiringSoon: l.PointsExpiringSoon,
		Currency:           ledger.Or(l.Currency, ledger.DefaultCurrency),
		Region:             ledger.Or(l.Region, ledger.DefaultRegion),
	}
	if st.Loyalty.AvailablePoints < 0 {
		return st, fmt.Errorf("loyalty.availablePoints must not be negative")
	}
	if st.Loyalty.LastUpdated, err = parseTime("loyalty.lastUpdated", l.LastUpdated); err != nil {
		return st, err
	}

	w := sy.Wallet
	st.Wallet = ledger.WalletAccount{
		UserID:   w.UserID,
		Currency: ledger.Or(w.Currency, ledger.DefaultCurrency),
		Region:   ledger.Or(w.Region, ledger.DefaultRegion),
	}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"wallet.availableBalance", w.AvailableBalance, &st.Wallet.AvailableBalance},
		{"wallet.totalDeposited", w.TotalDeposited, &st.Wallet.TotalDeposited},
		{"wallet.totalSpent", w.TotalSpent, &st.Wallet.TotalSpent},
		{"wallet.minimumThreshold", w.MinimumThreshold, &st.Wallet.MinimumThreshold},
	}
	for _, f := range fields {
		if *f.dst, err = parseDecimal(f.name, f.raw); err != nil {
			return st, err
		}
	}
	if st.Wallet.AvailableBalance.IsNegative() {
		return st, fmt.Errorf("wallet.availableBalance must not be negative")
	}
	if st.Wallet.LastTransactionDate, err = parseTime("wallet.lastTransactionDate", w.LastTransactionDate); err != nil {
		return st, err
	}

	seen := make(map[string]bool, len(sy.Transactions))
	for i, ty := range sy.Transactions {
		if ty.ID == "" || seen[ty.ID] {
			return st, fmt.Errorf("transactions[%d]: missing or duplicate transactionId", i)
		}
		seen[ty.ID] = true

		tx := ledger.Transaction{
			ID:          ty.ID,
			UserID:      ty.UserID,
			Points:      ty.Points,
			Description: ty.Description,
			Currency:    ledger.Or(ty.Currency, ledger.DefaultCurrency),
		}
		if tx.Type, err = ledger.ParseTxType(ty.Type); err != nil {
			return st, fmt.Errorf("transactions[%d]: %w", i, err)
		}
		if tx.Amount, err = parseDecimal(fmt.Sprintf("transactions[%d].amount", i), ty.Amount); err != nil {
			return st, err
		}
		if tx.Timestamp, err = parseTime(fmt.Sprintf("transactions[%d].date", i), ty.Date); err != nil {
			return st, err
		}
		st.Transactions = append(st.Transactions, tx)
	}

	for i, oy := range sy.Orders {
		if oy.ID == "" {
			return st, fmt.Errorf("orders[%d]: missing orderId", i)
		}
		total, err := parseDecimal(fmt.Sprintf("orders[%d].total", i), oy.Total)
		if err != nil {
			return st, err
		}
		st.Orders = append(st.Orders, ledger.Order{
			ID:       oy.ID,
			Total:    total,
			Currency: ledger.Or(oy.Currency, ledger.DefaultCurrency),
			Status:   ledger.OrderPending,
		})
	}

	return st, nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid decimal %q", field, raw)
	}
	return d, nil
}

func parseTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: invalid time %q", field, raw)
	}
	return t.UTC(), nil
}
