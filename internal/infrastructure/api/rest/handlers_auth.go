package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nbcore/notebookcore/internal/application/auth"
)

// AuthHandlers implements the ambient /auth/register and /auth/login
// surface. Trimmed from the teacher's AuthHandlers: no OAuth callbacks,
// no admin user management, no refresh/logout flow.
type AuthHandlers struct {
	authService *auth.Service
}

func NewAuthHandlers(authService *auth.Service) *AuthHandlers {
	return &AuthHandlers{authService: authService}
}

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,min=3,max=50"`
	Password string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	User         interface{} `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	ExpiresIn    int         `json:"expires_in"`
	TokenType    string      `json:"token_type"`
}

// HandleRegister handles POST /auth/register.
func (h *AuthHandlers) HandleRegister(c *gin.Context) {
	var req RegisterRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}

	result, err := h.authService.Register(c.Request.Context(), &auth.RegisterRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusCreated, AuthResponse{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		TokenType:    result.TokenType,
	})
}

// HandleLogin handles POST /auth/login.
func (h *AuthHandlers) HandleLogin(c *gin.Context) {
	var req LoginRequest
	if err := bindJSON(c, &req); err != nil {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), &auth.LoginRequest{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, AuthResponse{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
		ExpiresIn:    result.ExpiresIn,
		TokenType:    result.TokenType,
	})
}

// HandleGetMe handles GET /auth/me.
func (h *AuthHandlers) HandleGetMe(c *gin.Context) {
	userID, ok := GetUserID(c)
	if !ok {
		respondAPIError(c, ErrUnauthorized)
		return
	}

	user, err := h.authService.CurrentUser(c.Request.Context(), userID)
	if err != nil {
		respondAPIErrorWithRequestID(c, err)
		return
	}

	respondJSON(c, http.StatusOK, gin.H{"user": user})
}
