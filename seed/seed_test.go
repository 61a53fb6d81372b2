package seed_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/loyalty-engine/ledger"
	"github.com/warp/loyalty-engine/seed"
)

func TestBuiltin_DefaultScenario(t *testing.T) {
	c := seed.Builtin()

	def := c.Default()
	assert.Equal(t, "default", def.ID)

	st := def.State()
	assert.Equal(t, "user_12345", st.Loyalty.UserID)
	assert.Equal(t, int64(1500), st.Loyalty.AvailablePoints)
	assert.True(t, st.Loyalty.Consistent())
	assert.True(t, decimal.RequireFromString("250.50").Equal(st.Wallet.AvailableBalance))
	assert.True(t, decimal.RequireFromString("10").Equal(st.Wallet.MinimumThreshold))

	require.Len(t, st.Transactions, 3)
	assert.Equal(t, "txn_001", st.Transactions[0].ID)
	assert.Equal(t, ledger.TxRedeemed, st.Transactions[1].Type)
	assert.Equal(t, int64(-50), st.Transactions[1].Points)
	assert.Empty(t, st.Orders)
}

func TestBuiltin_MergeKeysOverrideFields(t *testing.T) {
	c := seed.Builtin()

	expired, ok := c.Get("expired-points")
	require.True(t, ok)
	st := expired.State()
	assert.Equal(t, int64(200), st.Loyalty.ExpiredPoints)
	assert.Equal(t, int64(1500), st.Loyalty.AvailablePoints)
	assert.True(t, st.Loyalty.Consistent())

	empty, ok := c.Get("empty-wallet")
	require.True(t, ok)
	w := empty.State().Wallet
	assert.True(t, w.AvailableBalance.IsZero())
	assert.True(t, decimal.RequireFromString("500").Equal(w.TotalSpent))
	assert.Equal(t, "SAR", w.Currency)

	require.Len(t, empty.State().Orders, 1)
	assert.Equal(t, ledger.OrderPending, empty.State().Orders[0].Status)
}

func TestScenario_StateIsACopy(t *testing.T) {
	s, ok := seed.Builtin().Get("checkout-ready")
	require.True(t, ok)

	first := s.State()
	first.Transactions[0].Description = "changed"
	first.Orders[0].ID = "changed"

	second := s.State()
	assert.Equal(t, "Points earned from purchase", second.Transactions[0].Description)
	assert.Equal(t, "order_12345", second.Orders[0].ID)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty catalog", "scenarios: []"},
		{"missing id", "scenarios:\n  - name: x\n"},
		{"duplicate id", "scenarios:\n  - id: a\n  - id: a\n"},
		{"bad decimal", "scenarios:\n  - id: a\n    wallet:\n      availableBalance: abc\n"},
		{"negative balance", "scenarios:\n  - id: a\n    wallet:\n      availableBalance: \"-1\"\n"},
		{"bad time", "scenarios:\n  - id: a\n    loyalty:\n      lastUpdated: yesterday\n"},
		{"bad tx type", "scenarios:\n  - id: a\n    transactions:\n      - transactionId: t1\n        type: gift\n"},
		{"duplicate tx id", "scenarios:\n  - id: a\n    transactions:\n      - transactionId: t1\n        type: earned\n      - transactionId: t1\n        type: earned\n"},
		{"order without id", "scenarios:\n  - id: a\n    orders:\n      - total: \"1\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := seed.Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	body := `scenarios:
  - id: solo
    name: Solo
    loyalty:
      userId: u1
      availablePoints: 10
      totalEarned: 10
    wallet:
      userId: u1
      availableBalance: "5"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	c, err := seed.LoadFile(path)
	require.NoError(t, err)
	require.Len(t, c.List(), 1)

	st := c.Default().State()
	assert.Equal(t, "u1", st.Loyalty.UserID)
	assert.Equal(t, ledger.DefaultCurrency, st.Loyalty.Currency)
	assert.Equal(t, ledger.DefaultRegion, st.Wallet.Region)

	_, err = seed.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
