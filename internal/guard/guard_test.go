package guard

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quayside/storefront/internal/identity"
)

func newTestGuard(t *testing.T) *Guard {
	t.Helper()
	g, err := New("")
	require.NoError(t, err)
	return g
}

func TestAuthorize_RolePolicy(t *testing.T) {
	g := newTestGuard(t)

	tests := []struct {
		name    string
		id      identity.Identity
		path    string
		allowed bool
	}{
		{"anonymous public root", identity.Anonymous(""), "/", true},
		{"anonymous cart", identity.Anonymous("a1b2"), "/cart", true},
		{"anonymous cart line", identity.Anonymous("a1b2"), "/cart/lines/p-1", true},
		{"anonymous admin area", identity.Anonymous(""), "/admin/carts", false},
		{"anonymous account area", identity.Anonymous(""), "/account/orders", false},
		{"customer admin area", identity.Authenticated("u-1", identity.RoleCustomer), "/admin/carts", false},
		{"customer account area", identity.Authenticated("u-1", identity.RoleCustomer), "/account/orders", true},
		{"customer cart", identity.Authenticated("u-1", identity.RoleCustomer), "/cart", true},
		{"admin admin area", identity.Authenticated("u-2", identity.RoleAdmin), "/admin/carts", true},
		{"admin inherits customer", identity.Authenticated("u-2", identity.RoleAdmin), "/account/orders", true},
		{"admin public", identity.Authenticated("u-2", identity.RoleAdmin), "/", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Authorize(tt.id, tt.path)
			assert.Equal(t, tt.allowed, d.Allowed)
		})
	}
}

func TestAuthorize_FailClosed(t *testing.T) {
	g := newTestGuard(t)

	// Unclassified path denies even for admin.
	d := g.Authorize(identity.Authenticated("u-2", identity.RoleAdmin), "/internal/debug")
	assert.False(t, d.Allowed)

	// A role this deployment does not recognise denies everywhere.
	d = g.Authorize(identity.Authenticated("u-3", identity.Role("superuser")), "/")
	assert.False(t, d.Allowed)
}

func TestAuthorize_DenyRedirects(t *testing.T) {
	g := newTestGuard(t)

	d := g.Authorize(identity.Anonymous(""), "/admin/carts")
	require.False(t, d.Allowed)
	assert.Equal(t, g.SignInPath, d.Redirect)

	// Authenticated denials get a generic safe page, nothing admin-shaped.
	d = g.Authorize(identity.Authenticated("u-1", identity.RoleCustomer), "/admin/carts")
	require.False(t, d.Allowed)
	assert.Equal(t, g.SafePath, d.Redirect)
}

func TestNew_RouteTableFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.csv")
	table := "p, anonymous, /open\np, admin, /locked/*\ng, admin, anonymous\n"
	require.NoError(t, os.WriteFile(path, []byte(table), 0o644))

	g, err := New(path)
	require.NoError(t, err)

	assert.True(t, g.Authorize(identity.Anonymous(""), "/open").Allowed)
	assert.False(t, g.Authorize(identity.Anonymous(""), "/locked/x").Allowed)
	assert.True(t, g.Authorize(identity.Authenticated("u", identity.RoleAdmin), "/locked/x").Allowed)
	// Paths missing from the table stay denied.
	assert.False(t, g.Authorize(identity.Authenticated("u", identity.RoleAdmin), "/elsewhere").Allowed)
}
