package auth_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/warp/loyalty-engine/auth"
	"github.com/warp/loyalty-engine/ledger"
)

func TestCheck(t *testing.T) {
	c := auth.NewChecker("", "")

	tests := []struct {
		name       string
		identity   string
		credential string
		scope      auth.Scope
		want       auth.Status
		reason     string
	}{
		{"member with token", "user_12345", auth.DefaultToken, auth.ScopeMember, auth.Authenticated, ""},
		{"missing identity", "", auth.DefaultToken, auth.ScopeAny, auth.Unauthorized, "Missing user ID or authorization token"},
		{"missing token", "user_12345", "", auth.ScopeAny, auth.Unauthorized, "Missing user ID or authorization token"},
		{"wrong token", "user_12345", "Bearer invalid_token", auth.ScopeAny, auth.Unauthorized, "Invalid authentication token"},
		{"guest on member scope", auth.DefaultGuestID, auth.DefaultToken, auth.ScopeMember, auth.Forbidden, "Guest users do not have access to wallet balance"},
		{"guest on any scope", auth.DefaultGuestID, auth.DefaultToken, auth.ScopeAny, auth.Authenticated, ""},
		{"guest without token", auth.DefaultGuestID, "", auth.ScopeMember, auth.Unauthorized, "Missing user ID or authorization token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Check(tt.identity, tt.credential, tt.scope, "wallet balance")
			assert.Equal(t, tt.want, d.Status)
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestDecisionErr(t *testing.T) {
	c := auth.NewChecker("Bearer t", "guest")

	assert.NoError(t, c.Check("u", "Bearer t", auth.ScopeMember, "x").Err())

	err := c.Check("u", "Bearer nope", auth.ScopeAny, "x").Err()
	assert.True(t, errors.Is(err, ledger.ErrUnauthorized))
	assert.Equal(t, ledger.KindUnauthorized, ledger.KindOf(err))

	err = c.Check("guest", "Bearer t", auth.ScopeMember, "loyalty points").Err()
	assert.True(t, errors.Is(err, ledger.ErrForbidden))
	assert.Equal(t, "Guest users do not have access to loyalty points", err.Error())
}
