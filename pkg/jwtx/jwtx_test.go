package jwtx

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const signingKey = "test-signing-key"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(signingKey))
	require.NoError(t, err)
	return signed
}

func TestOwnerFromToken(t *testing.T) {
	t.Parallel()

	tokenString := signToken(t, jwt.MapClaims{
		"user_identity": "owner-42",
		"exp":           time.Now().Add(time.Hour).Unix(),
	})

	owner, err := OwnerFromToken(signingKey, tokenString)
	require.NoError(t, err)
	require.Equal(t, "owner-42", owner)
}

func TestOwnerFromTokenRejectsBadKey(t *testing.T) {
	t.Parallel()

	tokenString := signToken(t, jwt.MapClaims{"user_identity": "owner-42"})
	_, err := OwnerFromToken("wrong-key", tokenString)
	require.Error(t, err)
}

func TestOwnerFromTokenMissingClaim(t *testing.T) {
	t.Parallel()

	tokenString := signToken(t, jwt.MapClaims{"sub": "owner-42"})
	_, err := OwnerFromToken(signingKey, tokenString)
	require.Error(t, err)
}

func TestVerifyTokenEmpty(t *testing.T) {
	t.Parallel()

	_, err := VerifyToken(signingKey, "")
	require.Error(t, err)
}
