// ABOUTME: Request-scoped authentication context for downstream handlers
// ABOUTME: Provides WithPrincipal/FromContext plus CurrentPrincipal and Authorities

package auth

import (
	"context"
)

// AuthContext holds the principal attached to a request by the middleware.
// A request without an AuthContext is anonymous.
type AuthContext struct {
	Principal   *Principal
	Authorities []string
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithPrincipal returns a new context with p and its authorities attached.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	authorities := make([]string, len(p.Authorities))
	copy(authorities, p.Authorities)
	return context.WithValue(ctx, authContextKey{}, &AuthContext{
		Principal:   p,
		Authorities: authorities,
	})
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// CurrentPrincipal returns the attached principal, if any.
func CurrentPrincipal(ctx context.Context) (*Principal, bool) {
	auth := FromContext(ctx)
	if auth == nil || auth.Principal == nil {
		return nil, false
	}
	return auth.Principal, true
}

// Authorities returns the authorities of the attached principal, or nil.
func Authorities(ctx context.Context) []string {
	auth := FromContext(ctx)
	if auth == nil {
		return nil
	}
	return auth.Authorities
}

// MustFromContext retrieves the AuthContext from the context, panicking if not present.
func MustFromContext(ctx context.Context) *AuthContext {
	auth := FromContext(ctx)
	if auth == nil {
		panic("auth: AuthContext not found in context")
	}
	return auth
}
