/*
errors.go - Centralized error types for the loyalty and wallet engine

PURPOSE:
  All rule failures in one place. Rules engines return these (or structured
  types that unwrap to them); the HTTP layer classifies them with KindOf and
  never needs to know which engine produced them.

ERROR KINDS:
  Unauthorized:  missing or invalid credential (auth package)
  Forbidden:     guest restriction (auth package)
  MissingFields: required input absent or zero
  NotFound:      unknown order or refund
  Validation:    balance, threshold, percentage and total checks
  Internal:      anything else (store failures, bugs)

USAGE:
  if errors.Is(err, ledger.ErrInsufficientPoints) { ... }
  switch ledger.KindOf(err) { case ledger.KindValidation: ... }

SEE ALSO:
  - checkout/, refund/, query/: Produce these errors
  - api/handlers.go: Maps kinds to HTTP status codes
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrMissingFields = errors.New("missing required fields")

	// ErrNonPositiveAmount is returned for negative points or money inputs.
	ErrNonPositiveAmount = errors.New("amount must be positive")

	ErrOrderNotFound  = errors.New("order not found")
	ErrRefundNotFound = errors.New("refund not found")

	ErrInsufficientPoints     = errors.New("insufficient loyalty points")
	ErrExceedsMaxPercentage   = errors.New("points exceed maximum allowed percentage")
	ErrExpiredPointsForbidden = errors.New("cannot use expired loyalty points")
	ErrFractionalPoints       = errors.New("points must be a whole number")

	ErrInsufficientBalance   = errors.New("insufficient wallet balance")
	ErrBelowMinimumThreshold = errors.New("wallet amount below minimum threshold")

	// ErrExceedsOrderTotal covers both wallet spends and refunds.
	ErrExceedsOrderTotal = errors.New("amount cannot exceed order total")

	ErrInvalidRefundType      = errors.New("invalid refund type")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrInvalidPagination      = errors.New("invalid pagination parameter")
	ErrInvalidDate            = errors.New("invalid date")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// ErrDuplicateID is returned when a store sees a transaction or refund id twice.
	ErrDuplicateID = errors.New("duplicate identifier")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientPointsError provides details about a points shortage.
type InsufficientPointsError struct {
	Available int64
	Requested int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient loyalty points: available %d, requested %d", e.Available, e.Requested)
}

func (e *InsufficientPointsError) Unwrap() error { return ErrInsufficientPoints }

// MaxPercentageError is returned when points would discount more than the order total.
type MaxPercentageError struct {
	MaxPoints int64
	Requested int64
}

func (e *MaxPercentageError) Error() string {
	return fmt.Sprintf("points exceed maximum allowed percentage: max %d, requested %d", e.MaxPoints, e.Requested)
}

func (e *MaxPercentageError) Unwrap() error { return ErrExceedsMaxPercentage }

// InsufficientBalanceError provides details about a wallet shortage.
type InsufficientBalanceError struct {
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient wallet balance: available %s, requested %s",
		e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ThresholdError is returned when a wallet spend is below the account minimum.
type ThresholdError struct {
	Minimum   decimal.Decimal
	Requested decimal.Decimal
}

func (e *ThresholdError) Error() string {
	return fmt.Sprintf("wallet amount below minimum threshold: minimum %s, requested %s",
		e.Minimum.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *ThresholdError) Unwrap() error { return ErrBelowMinimumThreshold }

// ExceedsOrderTotalError names which amount (wallet or refund) was too large.
type ExceedsOrderTotalError struct {
	Subject    string // "wallet amount", "refund amount"
	Requested  decimal.Decimal
	OrderTotal decimal.Decimal
}

func (e *ExceedsOrderTotalError) Error() string {
	return fmt.Sprintf("%s cannot exceed order total: requested %s, order total %s",
		e.Subject, e.Requested.StringFixed(2), e.OrderTotal.StringFixed(2))
}

func (e *ExceedsOrderTotalError) Unwrap() error { return ErrExceedsOrderTotal }

// =============================================================================
// ERROR KINDS
// =============================================================================

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindForbidden
	KindMissingFields
	KindNotFound
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindMissingFields:
		return "missing_fields"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unknown errors are internal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrMissingFields):
		return KindMissingFields
	case IsNotFound(err):
		return KindNotFound
	case IsClientError(err):
		return KindValidation
	default:
		return KindInternal
	}
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) ||
		errors.Is(err, ErrRefundNotFound)
}

// IsClientError returns true if a business rule rejected the input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNonPositiveAmount) ||
		errors.Is(err, ErrInsufficientPoints) ||
		errors.Is(err, ErrExceedsMaxPercentage) ||
		errors.Is(err, ErrExpiredPointsForbidden) ||
		errors.Is(err, ErrFractionalPoints) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrBelowMinimumThreshold) ||
		errors.Is(err, ErrExceedsOrderTotal) ||
		errors.Is(err, ErrInvalidRefundType) ||
		errors.Is(err, ErrInvalidTransactionType) ||
		errors.Is(err, ErrInvalidPagination) ||
		errors.Is(err, ErrInvalidDate)
}
