// ABOUTME: Resolves a validated token subject into a Principal via the user store
// ABOUTME: Every principal carries the fixed standard-user authority

package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/ecomap-gateway/internal/store"
)

// AuthorityStandardUser is the only authority granted in this system.
const AuthorityStandardUser = "standard-user"

// ErrUnknownPrincipal is returned when no stored user matches the subject.
var ErrUnknownPrincipal = errors.New("unknown principal")

// Principal is an authenticated identity. CredentialHash is never serialised.
type Principal struct {
	ID             string   `json:"id"`
	Identifier     string   `json:"email"`
	Authorities    []string `json:"authorities"`
	CredentialHash string   `json:"-"`
}

// HasAuthority reports whether the principal holds authority a.
func (p *Principal) HasAuthority(a string) bool {
	for _, have := range p.Authorities {
		if have == a {
			return true
		}
	}
	return false
}

// UserStore is the lookup the resolver needs from persistence.
type UserStore interface {
	FindByIdentifier(ctx context.Context, identifier string) (*store.User, error)
}

// PrincipalResolver translates identifiers into principals. It never writes
// to the store.
type PrincipalResolver struct {
	users UserStore
}

// NewPrincipalResolver creates a resolver backed by users.
func NewPrincipalResolver(users UserStore) *PrincipalResolver {
	return &PrincipalResolver{users: users}
}

// Resolve looks up identifier. A missing user wraps ErrUnknownPrincipal; any
// other store failure (including context cancellation) is returned wrapped.
func (r *PrincipalResolver) Resolve(ctx context.Context, identifier string) (*Principal, error) {
	user, err := r.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPrincipal, identifier)
		}
		return nil, fmt.Errorf("looking up principal: %w", err)
	}
	return &Principal{
		ID:             user.ID,
		Identifier:     user.Email,
		Authorities:    []string{AuthorityStandardUser},
		CredentialHash: user.PasswordHash,
	}, nil
}
