package identity

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLength guards against trivially brute-forceable HMAC keys.
const minSecretLength = 32

// ErrNoToken is returned by Verify when no credential was supplied at all.
// Callers grant guest access in that case, same as for a verification
// failure, but the two are distinguishable for logging.
var ErrNoToken = errors.New("no session token supplied")

// VerificationError describes a credential that was present but unusable:
// malformed, tampered, expired, or carrying claims this core does not
// recognise. Callers MUST treat it identically to an absent token for
// authorization purposes and MUST NOT reuse any of the failed token's claims.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("session token %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("session token %s", e.Reason)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// sessionClaims is the claim set the external identity provider signs into
// session tokens. Subject carries the user id.
type sessionClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Verifier validates inbound session tokens. Verification is pure: no state
// is read or written, and token renewal/refresh stays with the issuer.
// Safe for unlimited concurrent use.
type Verifier struct {
	secret []byte
}

// NewVerifier constructs a verifier for HMAC-signed session tokens. The
// secret must match the external identity provider's signing secret.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) < minSecretLength {
		return nil, fmt.Errorf("session token secret must be at least %d bytes", minSecretLength)
	}
	return &Verifier{secret: secret}, nil
}

// Verify resolves a raw token into an identity.
//
//   - Empty token: returns the anonymous identity (no guest id assigned;
//     that is the guest issuer's job) and ErrNoToken.
//   - Invalid, tampered, or expired token: returns the anonymous identity
//     and a *VerificationError. None of the token's claims survive.
//   - Valid token: returns Authenticated with the token's exact subject
//     and role.
func (v *Verifier) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Anonymous(""), ErrNoToken
	}

	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return v.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		reason := "invalid"
		if errors.Is(err, jwt.ErrTokenExpired) {
			reason = "expired"
		} else if errors.Is(err, jwt.ErrTokenMalformed) {
			reason = "malformed"
		} else if errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			reason = "bad signature"
		}
		return Anonymous(""), &VerificationError{Reason: reason, Err: err}
	}

	userID := claims.Subject
	if userID == "" {
		return Anonymous(""), &VerificationError{Reason: "missing sub claim"}
	}

	role := Role(claims.Role)
	if !role.Valid() {
		return Anonymous(""), &VerificationError{Reason: fmt.Sprintf("unknown role %q", claims.Role)}
	}

	return Authenticated(userID, role), nil
}
