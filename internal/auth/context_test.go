// ABOUTME: Unit tests for authentication context functions
// ABOUTME: Tests principal attachment, lookup, and authority snapshotting

package auth

import (
	"context"
	"testing"
)

func TestWithPrincipal_RoundTrip(t *testing.T) {
	p := &Principal{
		ID:          "user-1",
		Identifier:  "alice@example.com",
		Authorities: []string{AuthorityStandardUser},
	}

	ctx := WithPrincipal(context.Background(), p)

	got, ok := CurrentPrincipal(ctx)
	if !ok {
		t.Fatal("expected principal in context")
	}
	if got != p {
		t.Errorf("CurrentPrincipal() = %p, want %p", got, p)
	}

	auth := FromContext(ctx)
	if auth == nil {
		t.Fatal("expected AuthContext in context")
	}
	if len(auth.Authorities) != 1 || auth.Authorities[0] != AuthorityStandardUser {
		t.Errorf("Authorities = %v, want [%s]", auth.Authorities, AuthorityStandardUser)
	}
}

func TestWithPrincipal_SnapshotsAuthorities(t *testing.T) {
	p := &Principal{ID: "user-1", Authorities: []string{AuthorityStandardUser}}
	ctx := WithPrincipal(context.Background(), p)

	p.Authorities[0] = "admin"

	got := Authorities(ctx)
	if len(got) != 1 || got[0] != AuthorityStandardUser {
		t.Errorf("Authorities() = %v, want [%s]", got, AuthorityStandardUser)
	}
}

func TestFromContext_NotPresent(t *testing.T) {
	ctx := context.Background()

	if got := FromContext(ctx); got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
	if _, ok := CurrentPrincipal(ctx); ok {
		t.Error("CurrentPrincipal() ok = true for empty context")
	}
	if got := Authorities(ctx); got != nil {
		t.Errorf("Authorities() = %v, want nil", got)
	}
}

func TestFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), authContextKey{}, "not an AuthContext")

	if got := FromContext(ctx); got != nil {
		t.Errorf("FromContext() = %v, want nil", got)
	}
}

func TestMustFromContext_Present(t *testing.T) {
	ctx := WithPrincipal(context.Background(), &Principal{ID: "user-1"})

	got := MustFromContext(ctx)
	if got.Principal.ID != "user-1" {
		t.Errorf("MustFromContext().Principal.ID = %q, want %q", got.Principal.ID, "user-1")
	}
}

func TestMustFromContext_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustFromContext() should panic when AuthContext not present")
		}
	}()

	MustFromContext(context.Background())
}
