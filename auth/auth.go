/*
Package auth classifies callers for the checkout mock.

PURPOSE:
  There is no real authentication. A caller presents an identity and a
  bearer credential; the credential must equal one static token. A reserved
  guest identity is authenticated but may not read account balances.

DECISIONS:
  Unauthorized: identity or credential missing, or credential mismatch
  Forbidden:    guest identity on a member-scoped endpoint
  Authenticated: everything else

  The credential is checked before the guest rule, so a guest without the
  token is Unauthorized, not Forbidden. Guests are only restricted on
  ScopeMember endpoints; checkout and refund use ScopeAny.
*/
package auth

import "github.com/warp/loyalty-engine/ledger"

const (
	DefaultToken   = "Bearer valid_auth_token_12345"
	DefaultGuestID = "guest_67890"
)

// Scope says whether guests may use an endpoint.
type Scope int

const (
	ScopeAny Scope = iota
	ScopeMember
)

type Status int

const (
	Authenticated Status = iota
	Unauthorized
	Forbidden
)

func (s Status) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Unauthorized:
		return "unauthorized"
	default:
		return "forbidden"
	}
}

// Decision is the outcome of a Check.
type Decision struct {
	Status   Status
	Identity string
	Reason   string
}

// Err returns nil for authenticated callers, otherwise an error that
// unwraps to ledger.ErrUnauthorized or ledger.ErrForbidden.
func (d Decision) Err() error {
	switch d.Status {
	case Authenticated:
		return nil
	case Unauthorized:
		return &Error{Cause: ledger.ErrUnauthorized, Reason: d.Reason}
	default:
		return &Error{Cause: ledger.ErrForbidden, Reason: d.Reason}
	}
}

// Error carries the human-readable reason next to the error kind.
type Error struct {
	Cause  error
	Reason string
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Cause }

// Checker validates identity + credential pairs. It has no side effects.
type Checker struct {
	Token   string
	GuestID string
}

// NewChecker returns a checker; empty arguments fall back to the defaults.
func NewChecker(token, guestID string) *Checker {
	if token == "" {
		token = DefaultToken
	}
	if guestID == "" {
		guestID = DefaultGuestID
	}
	return &Checker{Token: token, GuestID: guestID}
}

// Check classifies a caller for an endpoint of the given scope.
// resource names what a guest is denied ("loyalty points", "wallet balance").
func (c *Checker) Check(identity, credential string, scope Scope, resource string) Decision {
	if identity == "" || credential == "" {
		return Decision{Status: Unauthorized, Reason: "Missing user ID or authorization token"}
	}
	if credential != c.Token {
		return Decision{Status: Unauthorized, Reason: "Invalid authentication token"}
	}
	if scope == ScopeMember && c.IsGuest(identity) {
		return Decision{
			Status:   Forbidden,
			Identity: identity,
			Reason:   "Guest users do not have access to " + resource,
		}
	}
	return Decision{Status: Authenticated, Identity: identity}
}

func (c *Checker) IsGuest(identity string) bool {
	return identity == c.GuestID
}
