package identity

import (
	"context"
	"errors"
)

// Identity is a verified caller identity supplied by the identity provider.
// Subject is the provider's stable id; Email is only set when the provider
// reports it verified.
type Identity struct {
	Subject string
	Email   string
}

var ErrUnauthenticated = errors.New("identity not verified")

// Verifier resolves a bearer token into a verified identity. Implementations
// return ErrUnauthenticated (possibly wrapped) for anything short of a
// positive verification.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// StaticVerifier maps fixed tokens to identities; for development and tests.
type StaticVerifier map[string]Identity

func (s StaticVerifier) Verify(_ context.Context, token string) (Identity, error) {
	id, ok := s[token]
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	return id, nil
}
