package auth

import (
	"strings"

	"github.com/creditwise/credit-gateway/internal/identity"
)

// Gate answers whether a verified identity may invoke privileged operations.
// An identity passes when its subject is on the account allow-list or its
// verified email is on the email allow-list. A pure predicate: no mutation,
// and anything unresolved is not authorized.
type Gate struct {
	subjects map[string]struct{}
	emails   map[string]struct{}
}

// NewGate builds a gate from the configured allow-lists. Email matching is
// case-insensitive.
func NewGate(subjects, emails []string) *Gate {
	g := &Gate{
		subjects: make(map[string]struct{}, len(subjects)),
		emails:   make(map[string]struct{}, len(emails)),
	}
	for _, s := range subjects {
		if s = strings.TrimSpace(s); s != "" {
			g.subjects[s] = struct{}{}
		}
	}
	for _, e := range emails {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" {
			g.emails[e] = struct{}{}
		}
	}
	return g
}

func (g *Gate) IsAuthorized(id identity.Identity) bool {
	if id.Subject != "" {
		if _, ok := g.subjects[id.Subject]; ok {
			return true
		}
	}
	if id.Email != "" {
		if _, ok := g.emails[strings.ToLower(id.Email)]; ok {
			return true
		}
	}
	return false
}
