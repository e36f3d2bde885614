package auth_test

import (
	"fmt"
	"testing"

	auth "github.com/goliatone/go-apiauth"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
)

func TestIsTokenExpiredError(t *testing.T) {
	assert.True(t, auth.IsTokenExpiredError(auth.ErrTokenExpired))
	assert.True(t, auth.IsTokenExpiredError(fmt.Errorf("jwt says: token is expired")))
	assert.False(t, auth.IsTokenExpiredError(auth.ErrTokenMalformed))
	assert.False(t, auth.IsTokenExpiredError(nil))
}

func TestIsMalformedError(t *testing.T) {
	assert.True(t, auth.IsMalformedError(auth.ErrTokenMalformed))
	assert.True(t, auth.IsMalformedError(fmt.Errorf("token is malformed: bad segments")))
	assert.True(t, auth.IsMalformedError(fmt.Errorf("missing or malformed JWT")))
	assert.False(t, auth.IsMalformedError(auth.ErrTokenExpired))
	assert.False(t, auth.IsMalformedError(nil))
}

func TestErrorCategories(t *testing.T) {
	assert.Equal(t, goerrors.CategoryConflict, auth.ErrDuplicateEmail.Category)
	assert.Equal(t, goerrors.CategoryAuth, auth.ErrInvalidCredentials.Category)
	assert.Equal(t, goerrors.CategoryAuth, auth.ErrAccountDisabled.Category)
	assert.Equal(t, goerrors.CategoryAuthz, auth.ErrForbidden.Category)
	assert.Equal(t, goerrors.CategoryNotFound, auth.ErrIdentityNotFound.Category)
	assert.Equal(t, goerrors.CategoryValidation, auth.ErrNoEmptyString.Category)
}

func TestErrorTextCodes(t *testing.T) {
	// API clients branch on these, they are part of the contract
	assert.Equal(t, "DUPLICATE_EMAIL", auth.ErrDuplicateEmail.TextCode)
	assert.Equal(t, "INVALID_CREDENTIALS", auth.ErrInvalidCredentials.TextCode)
	assert.Equal(t, "ACCOUNT_DISABLED", auth.ErrAccountDisabled.TextCode)
	assert.Equal(t, "TOKEN_EXPIRED", auth.ErrTokenExpired.TextCode)
	assert.Equal(t, "TOKEN_MALFORMED", auth.ErrTokenMalformed.TextCode)
	assert.Equal(t, "UNAUTHORIZED", auth.ErrUnauthorized.TextCode)
	assert.Equal(t, "FORBIDDEN", auth.ErrForbidden.TextCode)
}
