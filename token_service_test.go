package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	auth "github.com/goliatone/go-apiauth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("0123456789abcdef0123456789abcdef")

func newTestTokenService() auth.TokenService {
	return auth.NewTokenService(
		testSigningKey,
		15*time.Minute,
		24*time.Hour,
		"test-issuer",
		jwt.ClaimStrings{"test-audience"},
		quietLogger{},
	)
}

func TestTokenService_AccessTokenRoundTrip(t *testing.T) {
	service := newTestTokenService()

	identity := TestIdentity{
		id:    "user-123",
		email: "roundtrip@example.com",
		role:  "admin",
	}

	tokenString, err := service.IssueAccessToken(identity)
	require.NoError(t, err)
	require.NotEmpty(t, tokenString)

	claims, err := service.Validate(tokenString)
	require.NoError(t, err)

	assert.Equal(t, "roundtrip@example.com", claims.Subject())
	assert.Equal(t, "user-123", claims.UserID())
	assert.Equal(t, "admin", claims.Role())
	assert.NotEmpty(t, claims.TokenID())
	assert.True(t, claims.Expires().After(time.Now()))
	assert.False(t, claims.IssuedAt().IsZero())
}

func TestTokenService_RefreshTokenOmitsRoleAndUID(t *testing.T) {
	service := newTestTokenService()

	identity := TestIdentity{
		id:    "user-123",
		email: "refresh@example.com",
		role:  "admin",
	}

	tokenString, err := service.IssueRefreshToken(identity)
	require.NoError(t, err)

	claims, err := service.Validate(tokenString)
	require.NoError(t, err)

	assert.Equal(t, "refresh@example.com", claims.Subject())
	// no uid claim: UserID falls back to the subject
	assert.Equal(t, "refresh@example.com", claims.UserID())
	// role is read fresh from the store at refresh time, never from the token
	assert.Empty(t, claims.Role())
}

func TestTokenService_ExpiredToken(t *testing.T) {
	service := newTestTokenService()

	identity := TestIdentity{
		id:    "user-123",
		email: "expired@example.com",
		role:  "user",
	}

	tokenString, _, err := auth.MintToken(service, identity, auth.TokenOptions{
		IssuedAt: time.Now().Add(-2 * time.Hour),
		TTL:      time.Hour,
	})
	require.NoError(t, err)

	_, err = service.Validate(tokenString)
	require.Error(t, err)
	assert.True(t, auth.IsTokenExpiredError(err))
	assert.False(t, auth.IsMalformedError(err))
	assert.True(t, goerrors.Is(err, auth.ErrTokenExpired))
}

func TestTokenService_TamperedToken(t *testing.T) {
	service := newTestTokenService()

	identity := TestIdentity{
		id:    "user-123",
		email: "tamper@example.com",
		role:  "user",
	}

	tokenString, err := service.IssueAccessToken(identity)
	require.NoError(t, err)

	parts := strings.Split(tokenString, ".")
	require.Len(t, parts, 3)

	// flip the payload, signature no longer matches
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	_, err = service.Validate(tampered)
	require.Error(t, err)
	assert.True(t, auth.IsMalformedError(err))
	assert.False(t, auth.IsTokenExpiredError(err))
}

func TestTokenService_WrongKey(t *testing.T) {
	service := newTestTokenService()

	other := auth.NewTokenService(
		[]byte("ffffffffffffffffffffffffffffffff"),
		15*time.Minute,
		24*time.Hour,
		"test-issuer",
		jwt.ClaimStrings{"test-audience"},
		quietLogger{},
	)

	identity := TestIdentity{id: "user-123", email: "key@example.com", role: "user"}

	tokenString, err := other.IssueAccessToken(identity)
	require.NoError(t, err)

	_, err = service.Validate(tokenString)
	require.Error(t, err)
	assert.True(t, auth.IsMalformedError(err))
}

func TestTokenService_GarbageInput(t *testing.T) {
	service := newTestTokenService()

	for _, input := range []string{"", "not-a-token", "a.b.c"} {
		_, err := service.Validate(input)
		assert.Error(t, err)
		assert.True(t, auth.IsMalformedError(err))
	}
}

func TestTokenService_SignClaimsNil(t *testing.T) {
	service := newTestTokenService()

	_, err := service.SignClaims(nil)
	assert.Error(t, err)
}

func TestMintToken_Overrides(t *testing.T) {
	service := newTestTokenService()

	identity := TestIdentity{id: "user-123", email: "mint@example.com", role: "user"}

	issuedAt := time.Now().Add(-time.Minute).Truncate(time.Second)

	tokenString, expiresAt, err := auth.MintToken(service, identity, auth.TokenOptions{
		TTL:      time.Hour,
		IssuedAt: issuedAt,
		Metadata: map[string]any{"purpose": "invite"},
	})
	require.NoError(t, err)
	assert.Equal(t, issuedAt.Add(time.Hour), expiresAt)

	claims, err := service.Validate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "mint@example.com", claims.Subject())
	assert.Equal(t, "user-123", claims.UserID())
}

func TestMintToken_Guards(t *testing.T) {
	service := newTestTokenService()
	identity := TestIdentity{id: "user-123", email: "guard@example.com", role: "user"}

	_, _, err := auth.MintToken(nil, identity, auth.TokenOptions{})
	assert.Error(t, err)

	_, _, err = auth.MintToken(service, nil, auth.TokenOptions{})
	assert.Error(t, err)

	_, _, err = auth.MintToken(service, identity, auth.TokenOptions{TTL: -time.Minute})
	assert.Error(t, err)
}
