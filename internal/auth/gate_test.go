package auth

import (
	"testing"

	"github.com/creditwise/credit-gateway/internal/identity"
	"github.com/stretchr/testify/assert"
)

func TestGateAllowsBySubject(t *testing.T) {
	g := NewGate([]string{"auth0|admin-1"}, nil)

	assert.True(t, g.IsAuthorized(identity.Identity{Subject: "auth0|admin-1"}))
	assert.False(t, g.IsAuthorized(identity.Identity{Subject: "auth0|user-2"}))
}

func TestGateAllowsByEmailCaseInsensitive(t *testing.T) {
	g := NewGate(nil, []string{"Ops@Example.com"})

	assert.True(t, g.IsAuthorized(identity.Identity{Subject: "x", Email: "ops@example.com"}))
	assert.True(t, g.IsAuthorized(identity.Identity{Subject: "x", Email: "OPS@EXAMPLE.COM"}))
	assert.False(t, g.IsAuthorized(identity.Identity{Subject: "x", Email: "dev@example.com"}))
}

func TestGateFailsClosed(t *testing.T) {
	g := NewGate([]string{"auth0|admin-1"}, []string{"ops@example.com"})

	// Unresolved identity: nothing matches, access denied.
	assert.False(t, g.IsAuthorized(identity.Identity{}))
}

func TestGateEmptyAllowListsDenyEveryone(t *testing.T) {
	g := NewGate(nil, nil)

	assert.False(t, g.IsAuthorized(identity.Identity{Subject: "anyone", Email: "any@example.com"}))
}

func TestGateTrimsConfiguredEntries(t *testing.T) {
	g := NewGate([]string{" auth0|admin-1 ", ""}, []string{" ops@example.com ", ""})

	assert.True(t, g.IsAuthorized(identity.Identity{Subject: "auth0|admin-1"}))
	assert.True(t, g.IsAuthorized(identity.Identity{Email: "ops@example.com"}))
	assert.False(t, g.IsAuthorized(identity.Identity{Subject: ""}))
}
