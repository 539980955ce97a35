package rest

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nbcore/notebookcore/internal/application/auth"
)

const (
	ContextKeyUserID = "user_id"
	ContextKeyClaims = "claims"
	ContextKeyToken  = "token"
)

// AuthMiddleware validates bearer tokens issued by auth.JWTService. Trimmed
// from the teacher's AuthMiddleware: no service keys, roles, or
// permissions, since this service's only authorization decision is
// notebook ownership, checked per-request by the coordinator.
type AuthMiddleware struct {
	jwtService *auth.JWTService
}

func NewAuthMiddleware(jwtService *auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwtService: jwtService}
}

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			respondError(c, http.StatusUnauthorized, "authentication required")
			c.Abort()
			return
		}

		claims, err := m.jwtService.ValidateAccessToken(token)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				respondError(c, http.StatusUnauthorized, "token expired")
			} else {
				respondError(c, http.StatusUnauthorized, "invalid token")
			}
			c.Abort()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyToken, token)
		c.Next()
	}
}

// OptionalAuth sets user context when a valid token is present but never
// rejects the request. Used by the WebSocket upgrade path, which needs
// the token read from a query parameter before handshake.
func (m *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractToken(c)
		if err != nil {
			c.Next()
			return
		}

		claims, err := m.jwtService.ValidateAccessToken(token)
		if err != nil {
			c.Next()
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Set(ContextKeyClaims, claims)
		c.Set(ContextKeyToken, token)
		c.Next()
	}
}

func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1], nil
		}
	}

	token := c.Query("token")
	if token != "" {
		return token, nil
	}

	return "", errors.New("no token provided")
}

// GetUserID extracts the authenticated user id from gin context.
func GetUserID(c *gin.Context) (string, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return "", false
	}
	return userID.(string), true
}

// GetClaims extracts JWT claims from gin context.
func GetClaims(c *gin.Context) (*auth.JWTClaims, bool) {
	claims, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil, false
	}
	return claims.(*auth.JWTClaims), true
}

// GetToken extracts the raw bearer token from gin context.
func GetToken(c *gin.Context) (string, bool) {
	token, exists := c.Get(ContextKeyToken)
	if !exists {
		return "", false
	}
	return token.(string), true
}
