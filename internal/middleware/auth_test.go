package middleware

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-12345678901234567890123456789012"

func signClaims(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestMintAndParseRoundTrip(t *testing.T) {
	token, err := MintToken(testSecret, 123, time.Hour)
	require.NoError(t, err)

	userID, err := ParseUserID(token, testSecret)
	require.NoError(t, err)
	assert.EqualValues(t, 123, userID)
}

func TestParseUserIDRejections(t *testing.T) {
	validClaims := func(userID uint) jwt.MapClaims {
		return jwt.MapClaims{
			"sub": strconv.FormatUint(uint64(userID), 10),
			"iss": TokenIssuer,
			"aud": TokenAudience,
			"exp": time.Now().Add(time.Hour).Unix(),
		}
	}

	tests := []struct {
		name  string
		token string
	}{
		{
			name:  "malformed token",
			token: "not.a.token",
		},
		{
			name: "wrong secret",
			token: signClaims(t, "some-other-secret-entirely-000000", validClaims(1)),
		},
		{
			name: "expired",
			token: signClaims(t, testSecret, jwt.MapClaims{
				"sub": "1",
				"iss": TokenIssuer,
				"aud": TokenAudience,
				"exp": time.Now().Add(-time.Hour).Unix(),
			}),
		},
		{
			name: "wrong issuer",
			token: signClaims(t, testSecret, jwt.MapClaims{
				"sub": "1",
				"iss": "someone-else",
				"aud": TokenAudience,
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "wrong audience",
			token: signClaims(t, testSecret, jwt.MapClaims{
				"sub": "1",
				"iss": TokenIssuer,
				"aud": "other-client",
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "missing subject",
			token: signClaims(t, testSecret, jwt.MapClaims{
				"iss": TokenIssuer,
				"aud": TokenAudience,
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			name: "non-numeric subject",
			token: signClaims(t, testSecret, jwt.MapClaims{
				"sub": "alice",
				"iss": TokenIssuer,
				"aud": TokenAudience,
				"exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseUserID(tt.token, testSecret)
			assert.Error(t, err)
		})
	}
}

func TestParseUserIDRejectsUnsignedTokens(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "1",
		"iss": TokenIssuer,
		"aud": TokenAudience,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = ParseUserID(s, testSecret)
	assert.Error(t, err)
}
