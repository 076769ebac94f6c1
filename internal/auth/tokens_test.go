package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deliver-app/deliver/internal/rbac"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTokenIssuerRejectsWeakSecret(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Minute)
	assert.Error(t, err)
	_, err = NewTokenIssuer(testSecret, 0)
	assert.Error(t, err)
}

func TestTokenIssuerRoundTrip(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, 15*time.Minute)
	require.NoError(t, err)
	account := Account{Handle: uuid.New(), Roles: []rbac.Role{rbac.RoleHR}}

	token, expires, err := issuer.Issue(account)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expires, 2*time.Second)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, account.Handle.String(), claims.Subject)
	assert.Equal(t, []string{"hr"}, claims.Roles)
	assert.Len(t, claims.ID, 26)
}

func TestTokenIssuerRejectsTampering(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	token, _, err := issuer.Issue(Account{Handle: uuid.New()})
	require.NoError(t, err)

	other, err := NewTokenIssuer(strings.Repeat("x", 32), time.Minute)
	require.NoError(t, err)
	_, err = other.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse(token + "x")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenIssuerRejectsExpiredAndNoneAlg(t *testing.T) {
	issuer, err := NewTokenIssuer(testSecret, time.Minute)
	require.NoError(t, err)
	issuer.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, _, err := issuer.Issue(Account{Handle: uuid.New()})
	require.NoError(t, err)
	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "deliver",
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
