package identity

import "context"

// Role classifies an authenticated caller. Modeled as an open enumeration so
// new roles can be added without touching the identity plumbing.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleAdmin    Role = "admin"
)

// Valid reports whether the role is one this deployment recognises.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleAdmin:
		return true
	}
	return false
}

// Kind differentiates the two identity variants.
type Kind string

const (
	KindAnonymous     Kind = "anonymous"
	KindAuthenticated Kind = "user"
)

// Identity is the resolved caller classification for one request. Exactly one
// variant is populated: anonymous callers carry a guest id (possibly empty
// until the issuer has run), authenticated callers carry a user id and role.
//
// Identity values are passed explicitly through every call in this core;
// nothing reads an ambient "current user".
type Identity struct {
	Kind Kind

	// GuestID is set for anonymous callers once the guest issuer has run.
	GuestID string

	// UserID and Role are set for authenticated callers.
	UserID string
	Role   Role
}

// Anonymous returns the anonymous variant. guestID may be empty when no
// guest identifier has been issued yet.
func Anonymous(guestID string) Identity {
	return Identity{Kind: KindAnonymous, GuestID: guestID}
}

// Authenticated returns the authenticated variant.
func Authenticated(userID string, role Role) Identity {
	return Identity{Kind: KindAuthenticated, UserID: userID, Role: role}
}

// IsAuthenticated reports whether the identity carries verified user claims.
func (id Identity) IsAuthenticated() bool {
	return id.Kind == KindAuthenticated
}

// CartKey returns the key the cart store uses for this identity and whether
// one exists at all (an anonymous caller without a guest id has no cart).
func (id Identity) CartKey() (string, bool) {
	if id.IsAuthenticated() {
		return id.UserID, id.UserID != ""
	}
	return id.GuestID, id.GuestID != ""
}

type identityContextKey struct{}

// SetContext stores the resolved identity on the context for downstream
// handlers.
func SetContext(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// FromContext retrieves the resolved identity from the context.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok
}
