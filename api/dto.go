/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the wire contract that existing checkout clients
  already depend on (camelCase names, "date" for transaction timestamps,
  numbers for money).

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO:     Response payloads placed in Envelope.Data

MONEY:
  Requests decode money into decimal.Decimal (accepts JSON numbers and
  numeric strings). Responses render money as JSON numbers.

TIMESTAMPS:
  Millisecond RFC 3339 in UTC, e.g. 2024-12-15T10:30:00.000Z.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/loyalty-engine/checkout"
	"github.com/warp/loyalty-engine/ledger"
	"github.com/warp/loyalty-engine/query"
	"github.com/warp/loyalty-engine/refund"
	"github.com/warp/loyalty-engine/seed"
)

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Envelope wraps every response body.
type Envelope struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Message   *string `json:"message"`
	Timestamp string  `json:"timestamp"`
}

// =============================================================================
// REQUESTS
// =============================================================================

type ApplyPointsRequest struct {
	UserID           string          `json:"userId,omitempty"`
	OrderID          string          `json:"orderId"`
	PointsToUse      decimal.Decimal `json:"pointsToUse"`
	OrderTotal       decimal.Decimal `json:"orderTotal"`
	Currency         string          `json:"currency,omitempty"`
	Region           string          `json:"region,omitempty"`
	UseExpiredPoints bool            `json:"useExpiredPoints,omitempty"`
}

type UseWalletRequest struct {
	UserID       string          `json:"userId,omitempty"`
	OrderID      string          `json:"orderId"`
	WalletAmount decimal.Decimal `json:"walletAmount"`
	OrderTotal   decimal.Decimal `json:"orderTotal"`
	Currency     string          `json:"currency,omitempty"`
	Region       string          `json:"region,omitempty"`
	PaymentType  string          `json:"paymentType,omitempty"`
}

type RefundRequest struct {
	UserID       string          `json:"userId,omitempty"`
	OrderID      string          `json:"orderId"`
	RefundAmount decimal.Decimal `json:"refundAmount"`
	RefundReason string          `json:"refundReason"`
	RefundType   string          `json:"refundType,omitempty"`
	Currency     string          `json:"currency,omitempty"`
	Region       string          `json:"region,omitempty"`
}

type CreateOrderRequest struct {
	OrderID  string          `json:"orderId"`
	Total    decimal.Decimal `json:"total"`
	Currency string          `json:"currency,omitempty"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenarioId"`
}

// =============================================================================
// ACCOUNTS
// =============================================================================

type LoyaltyBalanceDTO struct {
	UserID             string `json:"userId"`
	AvailablePoints    int64  `json:"availablePoints"`
	TotalEarned        int64  `json:"totalEarned"`
	TotalRedeemed      int64  `json:"totalRedeemed"`
	ExpiredPoints      int64  `json:"expiredPoints"`
	PointsExpiringSoon int64  `json:"pointsExpiringSoon"`
	Currency           string `json:"currency"`
	Region             string `json:"region"`
	LastUpdated        string `json:"lastUpdated"`
}

type WalletBalanceDTO struct {
	UserID              string  `json:"userId"`
	AvailableBalance    float64 `json:"availableBalance"`
	TotalDeposited      float64 `json:"totalDeposited"`
	TotalSpent          float64 `json:"totalSpent"`
	LastTransactionDate string  `json:"lastTransactionDate"`
	Currency            string  `json:"currency"`
	Region              string  `json:"region"`
	MinimumThreshold    float64 `json:"minimumThreshold"`
}

func toLoyaltyDTO(a ledger.LoyaltyAccount) LoyaltyBalanceDTO {
	return LoyaltyBalanceDTO{
		UserID:             a.UserID,
		AvailablePoints:    a.AvailablePoints,
		TotalEarned:        a.TotalEarned,
		TotalRedeemed:      a.TotalRedeemed,
		ExpiredPoints:      a.ExpiredPoints,
		PointsExpiringSoon: a.PointsExpiringSoon,
		Currency:           a.Currency,
		Region:             a.Region,
		LastUpdated:        formatTime(a.LastUpdated),
	}
}

func toWalletDTO(a ledger.WalletAccount) WalletBalanceDTO {
	return WalletBalanceDTO{
		UserID:              a.UserID,
		AvailableBalance:    money(a.AvailableBalance),
		TotalDeposited:      money(a.TotalDeposited),
		TotalSpent:          money(a.TotalSpent),
		LastTransactionDate: formatTime(a.LastTransactionDate),
		Currency:            a.Currency,
		Region:              a.Region,
		MinimumThreshold:    money(a.MinimumThreshold),
	}
}

// =============================================================================
// CHECKOUT
// =============================================================================

type ApplyPointsDTO struct {
	OrderID           string  `json:"orderId"`
	PointsApplied     int64   `json:"pointsApplied"`
	DiscountAmount    float64 `json:"discountAmount"`
	RemainingBalance  int64   `json:"remainingBalance"`
	UpdatedOrderTotal float64 `json:"updatedOrderTotal"`
	Currency          string  `json:"currency"`
	Region            string  `json:"region"`
}

type UseWalletDTO struct {
	OrderID           string  `json:"orderId"`
	WalletAmountUsed  float64 `json:"walletAmountUsed"`
	RemainingBalance  float64 `json:"remainingBalance"`
	UpdatedOrderTotal float64 `json:"updatedOrderTotal"`
	Currency          string  `json:"currency"`
	TransactionID     string  `json:"transactionId"`
	PaymentType       string  `json:"paymentType"`
}

type OrderDTO struct {
	OrderID  string  `json:"orderId"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
	Status   string  `json:"status,omitempty"`
}

func toApplyPointsDTO(r checkout.ApplyPointsResult) ApplyPointsDTO {
	return ApplyPointsDTO{
		OrderID:           r.OrderID,
		PointsApplied:     r.PointsApplied,
		DiscountAmount:    money(r.DiscountAmount),
		RemainingBalance:  r.RemainingBalance,
		UpdatedOrderTotal: money(r.UpdatedOrderTotal),
		Currency:          r.Currency,
		Region:            r.Region,
	}
}

func toUseWalletDTO(r checkout.UseWalletResult) UseWalletDTO {
	return UseWalletDTO{
		OrderID:           r.OrderID,
		WalletAmountUsed:  money(r.WalletAmountUsed),
		RemainingBalance:  money(r.RemainingBalance),
		UpdatedOrderTotal: money(r.UpdatedOrderTotal),
		Currency:          r.Currency,
		TransactionID:     r.TransactionID,
		PaymentType:       r.PaymentType,
	}
}

func toOrderDTO(o ledger.Order) OrderDTO {
	return OrderDTO{
		OrderID:  o.ID,
		Total:    money(o.Total),
		Currency: o.Currency,
		Status:   string(o.Status),
	}
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

type TransactionDTO struct {
	TransactionID string  `json:"transactionId"`
	UserID        string  `json:"userId"`
	Type          string  `json:"type"`
	Amount        float64 `json:"amount"`
	Points        int64   `json:"points"`
	Description   string  `json:"description"`
	Date          string  `json:"date"`
	Currency      string  `json:"currency"`
}

type PaginationDTO struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

type TransactionListDTO struct {
	UserID       string           `json:"userId"`
	Transactions []TransactionDTO `json:"transactions"`
	Pagination   PaginationDTO    `json:"pagination"`
	Currency     string           `json:"currency"`
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, t := range txs {
		dtos[i] = TransactionDTO{
			TransactionID: t.ID,
			UserID:        t.UserID,
			Type:          string(t.Type),
			Amount:        money(t.Amount),
			Points:        t.Points,
			Description:   t.Description,
			Date:          formatTime(t.Timestamp),
			Currency:      t.Currency,
		}
	}
	return dtos
}

func toTransactionListDTO(userID, currency string, page query.Page) TransactionListDTO {
	return TransactionListDTO{
		UserID:       userID,
		Transactions: toTransactionDTOs(page.Transactions),
		Pagination: PaginationDTO{
			Limit:  page.Limit,
			Offset: page.Offset,
			Total:  page.Total,
		},
		Currency: currency,
	}
}

// =============================================================================
// REFUNDS
// =============================================================================

type RefundResultDTO struct {
	RefundID     string  `json:"refundId"`
	OrderID      string  `json:"orderId"`
	RefundAmount float64 `json:"refundAmount"`
	RefundType   string  `json:"refundType"`
	Status       string  `json:"status"`
	Currency     string  `json:"currency"`
	ProcessedAt  string  `json:"processedAt"`
}

// RefundDTO is the stored refund record.
type RefundDTO struct {
	RefundID     string  `json:"refundId"`
	OrderID      string  `json:"orderId"`
	RefundAmount float64 `json:"refundAmount"`
	RefundReason string  `json:"refundReason"`
	RefundType   string  `json:"refundType"`
	Status       string  `json:"status"`
	ProcessedAt  string  `json:"processedAt"`
	Currency     string  `json:"currency"`
	Region       string  `json:"region"`
}

func toRefundResultDTO(r refund.TriggerResult) RefundResultDTO {
	return RefundResultDTO{
		RefundID:     r.RefundID,
		OrderID:      r.OrderID,
		RefundAmount: money(r.RefundAmount),
		RefundType:   string(r.RefundType),
		Status:       string(r.Status),
		Currency:     r.Currency,
		ProcessedAt:  formatTime(r.ProcessedAt),
	}
}

func toRefundDTO(r ledger.Refund) RefundDTO {
	return RefundDTO{
		RefundID:     r.ID,
		OrderID:      r.OrderID,
		RefundAmount: money(r.Amount),
		RefundReason: r.Reason,
		RefundType:   string(r.Type),
		Status:       string(r.Status),
		ProcessedAt:  formatTime(r.ProcessedAt),
		Currency:     r.Currency,
		Region:       r.Region,
	}
}

// =============================================================================
// CONTROL PLANE
// =============================================================================

// ScenarioDTO represents a seed scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// StateDTO is the full store contents returned by /admin/state.
type StateDTO struct {
	Scenario     string            `json:"scenario"`
	Loyalty      LoyaltyBalanceDTO `json:"loyalty"`
	Wallet       WalletBalanceDTO  `json:"wallet"`
	Transactions []TransactionDTO  `json:"transactions"`
	Orders       []OrderDTO        `json:"orders"`
	Refunds      []RefundDTO       `json:"refunds"`
}

type HealthDTO struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

func toScenarioDTO(s seed.Scenario) ScenarioDTO {
	return ScenarioDTO{ID: s.ID, Name: s.Name, Description: s.Description}
}

func toStateDTO(scenario string, s ledger.State) StateDTO {
	dto := StateDTO{
		Scenario:     scenario,
		Loyalty:      toLoyaltyDTO(s.Loyalty),
		Wallet:       toWalletDTO(s.Wallet),
		Transactions: toTransactionDTOs(s.Transactions),
		Orders:       make([]OrderDTO, len(s.Orders)),
		Refunds:      make([]RefundDTO, len(s.Refunds)),
	}
	for i, o := range s.Orders {
		dto.Orders[i] = toOrderDTO(o)
	}
	for i, r := range s.Refunds {
		dto.Refunds[i] = toRefundDTO(r)
	}
	return dto
}

// =============================================================================
// HELPERS
// =============================================================================

func money(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}
