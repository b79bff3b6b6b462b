package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 60, 57))

	exact := strings.Repeat("a", 60)
	assert.Equal(t, exact, Truncate(exact, 60, 57))

	long := strings.Repeat("b", 61)
	got := Truncate(long, 60, 57)
	assert.Equal(t, strings.Repeat("b", 57)+"…", got)

	multibyte := strings.Repeat("é", 130)
	got = Truncate(multibyte, 120, 117)
	assert.Equal(t, strings.Repeat("é", 117)+"…", got)
}

func TestDecodeJWT(t *testing.T) {
	secret := []byte("secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":  "3f1d9a4e-5b8c-4a7e-9c2d-1e6f7a8b9c0d",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	claims, err := DecodeJWT(signed, secret)
	require.NoError(t, err)
	assert.Equal(t, "3f1d9a4e-5b8c-4a7e-9c2d-1e6f7a8b9c0d", claims["id"])

	_, err = DecodeJWT(signed, []byte("other"))
	assert.Error(t, err)

	_, err = DecodeJWT("not-a-token", secret)
	assert.Error(t, err)
}
