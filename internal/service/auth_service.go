package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stemsi/exstem-session/internal/config"
	"golang.org/x/crypto/bcrypt"
)

// Common auth errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin login is not configured")
)

// TokenType distinguishes session vs admin tokens.
type TokenType string

const (
	TokenTypeSession TokenType = "session"
	TokenTypeAdmin   TokenType = "admin"
)

// TokenIssuer is stamped on and required in every token.
const TokenIssuer = "exstem-session"

// Claims extends JWT standard claims with app-specific fields.
type Claims struct {
	jwt.RegisteredClaims
	TokenType TokenType `json:"token_type"`
	SessionID string    `json:"session_id,omitempty"` // Session only
	DeviceID  string    `json:"device_id,omitempty"`  // Session only
	TestCode  string    `json:"test_code,omitempty"`  // Session only
}

// AuthService issues and validates session and admin tokens.
type AuthService struct {
	cfg *config.Config
}

// NewAuthService creates a new AuthService.
func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{cfg: cfg}
}

// HashPassword hashes a password with the configured bcrypt cost.
func (s *AuthService) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	return string(hash), err
}

// CheckPassword compares a plaintext password against a bcrypt hash.
func (s *AuthService) CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateSessionToken binds a bearer token to one running session. It
// outlives the longest test so a reload can still reach the session.
func (s *AuthService) GenerateSessionToken(sessionID, deviceID, code string, testDuration time.Duration) (string, error) {
	now := time.Now()
	expiry := s.cfg.JWTExpiry
	if testDuration+time.Hour > expiry {
		expiry = testDuration + time.Hour
	}

	return s.sign(Claims{
		RegisteredClaims: s.registered(sessionID, now, expiry),
		TokenType:        TokenTypeSession,
		SessionID:        sessionID,
		DeviceID:         deviceID,
		TestCode:         code,
	})
}

// AdminLogin checks the password against ADMIN_PASSWORD_HASH and returns an
// admin token.
func (s *AuthService) AdminLogin(password string) (string, error) {
	if s.cfg.AdminPasswordHash == "" {
		return "", ErrAdminDisabled
	}
	if err := s.CheckPassword(s.cfg.AdminPasswordHash, password); err != nil {
		return "", err
	}

	return s.sign(Claims{
		RegisteredClaims: s.registered("admin", time.Now(), s.cfg.JWTExpiry),
		TokenType:        TokenTypeAdmin,
	})
}

func (s *AuthService) registered(subject string, now time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Issuer:    TokenIssuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *AuthService) sign(claims Claims) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and validates a JWT, returning the claims.
func (s *AuthService) ValidateToken(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte(s.cfg.JWTSecret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	return claims, nil
}
