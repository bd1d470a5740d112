package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stemsi/exstem-session/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-admin"), bcrypt.MinCost)
	require.NoError(t, err)
	return &config.Config{
		JWTSecret:         "test-secret",
		JWTExpiry:         time.Hour,
		BcryptCost:        bcrypt.MinCost,
		AdminPasswordHash: string(hash),
	}
}

func TestAuthService_SessionTokenRoundTrip(t *testing.T) {
	auth := NewAuthService(testConfig(t))

	token, err := auth.GenerateSessionToken("sess-1", deviceA, "HISTORIA-01", 90*time.Minute)
	require.NoError(t, err)

	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeSession, claims.TokenType)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, deviceA, claims.DeviceID)
	assert.Equal(t, "HISTORIA-01", claims.TestCode)
	assert.True(t, claims.ExpiresAt.After(time.Now().Add(150*time.Minute)), "token outlives the test")
}

func TestAuthService_RejectsForeignSignature(t *testing.T) {
	auth := NewAuthService(testConfig(t))
	token, err := auth.GenerateSessionToken("sess-1", deviceA, "HISTORIA-01", time.Minute)
	require.NoError(t, err)

	other := testConfig(t)
	other.JWTSecret = "another-secret"
	_, err = NewAuthService(other).ValidateToken(token)
	assert.Error(t, err)
}

func TestAuthService_AdminLogin(t *testing.T) {
	auth := NewAuthService(testConfig(t))

	token, err := auth.AdminLogin("s3cret-admin")
	require.NoError(t, err)
	claims, err := auth.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeAdmin, claims.TokenType)

	_, err = auth.AdminLogin("wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	cfg := testConfig(t)
	cfg.AdminPasswordHash = ""
	_, err = NewAuthService(cfg).AdminLogin("s3cret-admin")
	assert.ErrorIs(t, err, ErrAdminDisabled)
}

func TestAuthService_RejectsForeignIssuerAndMissingExpiry(t *testing.T) {
	cfg := testConfig(t)
	auth := NewAuthService(cfg)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TokenType: TokenTypeAdmin,
	})
	signed, err := foreign.SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	_, err = auth.ValidateToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	forever := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: TokenIssuer},
		TokenType:        TokenTypeAdmin,
	})
	signed, err = forever.SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)
	_, err = auth.ValidateToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenRequiredClaimMissing)
}
