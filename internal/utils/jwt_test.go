// internal/utils/jwt_test.go
package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	userID := uuid.New()
	token, err := GenerateJWT(userID, "SALES_TEAM", []string{"boots", "tesco"}, 1)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.UserID)
	assert.Equal(t, "SALES_TEAM", claims.Role)
	assert.Equal(t, []string{"boots", "tesco"}, claims.RetailerIDs)
	assert.Equal(t, jwtIssuer, claims.Issuer)
}

func TestJWTRejectsTampering(t *testing.T) {
	token, err := GenerateJWT(uuid.New(), "CLIENT_VIEWER", nil, 1)
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	_, err = ValidateJWT(parts[0] + "." + parts[1] + ".c2lnbmF0dXJl")
	assert.Error(t, err)

	_, err = ValidateJWT("not-a-token")
	assert.Error(t, err)
}

func TestJWTExpired(t *testing.T) {
	token, err := GenerateJWT(uuid.New(), "SALES_TEAM", nil, -1)
	require.NoError(t, err)

	_, err = ValidateJWT(token)
	assert.Error(t, err)
}

func TestAccessSessionIsSignedSeparately(t *testing.T) {
	marker, err := GenerateAccessSession("token-hash", "pwd-fingerprint", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateAccessSession(marker)
	require.NoError(t, err)
	assert.Equal(t, "token-hash", claims.Subject)
	assert.Equal(t, "pwd-fingerprint", claims.PasswordFingerprint)

	// A session marker is not a user identity and vice versa.
	_, err = ValidateJWT(marker)
	assert.Error(t, err)

	userToken, err := GenerateJWT(uuid.New(), "SALES_TEAM", nil, 1)
	require.NoError(t, err)
	_, err = ValidateAccessSession(userToken)
	assert.Error(t, err)
}

func TestAccessSessionExpires(t *testing.T) {
	marker, err := GenerateAccessSession("token-hash", "pwd", -time.Minute)
	require.NoError(t, err)

	_, err = ValidateAccessSession(marker)
	assert.Error(t, err)
}
