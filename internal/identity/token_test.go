package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func mintToken(t *testing.T, secret []byte, userID, role string, expiresIn time.Duration) string {
	t.Helper()
	claims := sessionClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	require.NoError(t, err)
	return raw
}

func TestNewVerifier_RejectsShortSecret(t *testing.T) {
	_, err := NewVerifier([]byte("short"))
	assert.Error(t, err)
}

func TestVerify_ValidToken(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	tests := []struct {
		userID string
		role   Role
	}{
		{"u-100", RoleCustomer},
		{"u-200", RoleAdmin},
	}

	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			raw := mintToken(t, testSecret, tt.userID, string(tt.role), time.Hour)

			id, err := v.Verify(raw)
			require.NoError(t, err)
			assert.True(t, id.IsAuthenticated())
			assert.Equal(t, tt.userID, id.UserID)
			assert.Equal(t, tt.role, id.Role)
		})
	}
}

func TestVerify_AbsentToken(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	id, err := v.Verify("")
	assert.ErrorIs(t, err, ErrNoToken)
	assert.False(t, id.IsAuthenticated())
}

func TestVerify_FailuresDowngradeToAnonymous(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	otherSecret := []byte("ffffffffffffffffffffffffffffffff")

	tests := []struct {
		name string
		raw  string
	}{
		{"expired", mintToken(t, testSecret, "u-1", "customer", -time.Minute)},
		{"wrong signing key", mintToken(t, otherSecret, "u-1", "customer", time.Hour)},
		{"malformed", "not.a.token"},
		{"unknown role", mintToken(t, testSecret, "u-1", "root", time.Hour)},
		{"missing subject", mintToken(t, testSecret, "", "customer", time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(tt.raw)

			var verr *VerificationError
			require.ErrorAs(t, err, &verr)
			// None of the failed token's claims may survive.
			assert.False(t, id.IsAuthenticated())
			assert.Empty(t, id.UserID)
			assert.Empty(t, id.Role)
		})
	}
}

func TestVerify_TamperedPayload(t *testing.T) {
	v, err := NewVerifier(testSecret)
	require.NoError(t, err)

	raw := mintToken(t, testSecret, "u-1", "customer", time.Hour)
	parts := strings.Split(raw, ".")
	require.Len(t, parts, 3)

	// Swap the payload for one claiming admin; signature no longer matches.
	forged := mintToken(t, testSecret, "u-1", "admin", time.Hour)
	forgedParts := strings.Split(forged, ".")
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

	id, err := v.Verify(tampered)
	var verr *VerificationError
	require.ErrorAs(t, err, &verr)
	assert.False(t, id.IsAuthenticated())
}
