package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nbcore/notebookcore/internal/config"
	"github.com/nbcore/notebookcore/pkg/models"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
)

// JWTClaims represents the claims stored in a JWT access token.
type JWTClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	IsAdmin  bool `json:"is_admin"`
}

// JWTService handles JWT token generation and validation for the
// built-in login path (SPEC_FULL's ambient auth stack has no external
// identity provider).
type JWTService struct {
	secret            []byte
	issuer            string
	accessExpiryHrs   int
	refreshExpiryDays int
}

// NewJWTService creates a new JWTService from the server's AuthConfig.
func NewJWTService(cfg config.AuthConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.JWTSecret),
		issuer: "notebookcore",
		accessExpiryHrs: cfg.JWTExpirationHours,
		refreshExpiryDays: cfg.RefreshExpiryDays,
	}
}

// GenerateAccessToken generates a new JWT access token for a user.
func (s *JWTService) GenerateAccessToken(user *models.User) (string, time.Time, error) {
	expiresAt := time.Now().Add(time.Duration(s.accessExpiryHrs) * time.Hour)

	claims := &JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: user.ID,
			Issuer: s.issuer,
			IssuedAt: jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
		UserID: user.ID,
		Email: user.Email,
		Username: user.Username,
		IsAdmin: user.IsAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, expiresAt, nil
}

// GenerateRefreshToken generates a random opaque refresh token.
func (s *JWTService) GenerateRefreshToken() (string, time.Time, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(s.refreshExpiryDays) * 24 * time.Hour)
	return hex.EncodeToString(bytes), expiresAt, nil
}

// ValidateAccessToken validates a JWT access token and returns its claims.
func (s *JWTService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// GetAccessTokenExpiry returns the access token lifetime in seconds.
func (s *JWTService) GetAccessTokenExpiry() int {
	return s.accessExpiryHrs * 3600
}

// GetRefreshTokenExpiry returns the refresh token lifetime in seconds.
func (s *JWTService) GetRefreshTokenExpiry() int {
	return s.refreshExpiryDays * 24 * 3600
}
