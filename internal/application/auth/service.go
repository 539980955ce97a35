package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nbcore/notebookcore/internal/domain/repository"
	"github.com/nbcore/notebookcore/pkg/models"
)

// RegisterRequest carries the fields needed to create a built-in account.
type RegisterRequest struct {
	Email    string
	Username string
	Password string
}

// LoginRequest carries built-in login credentials.
type LoginRequest struct {
	Email    string
	Password string
}

// Service is the built-in register/login collaborator referenced by
// SPEC_FULL's ambient auth surface. Unlike the teacher's Service, it has
// no OAuth/OIDC provider, no sessions table, and no refresh-token
// rotation: notebookcore's only access-control decision is ownership, so
// a single long-lived access token per login is enough.
type Service struct {
	users      repository.UserRepository
	passwords  *PasswordService
	jwt        *JWTService
	allowOpen  bool
}

// NewService creates a new Service. allowRegistration gates POST
// /auth/register, mirroring the teacher's registration-disabled switch.
func NewService(users repository.UserRepository, passwords *PasswordService, jwt *JWTService, allowRegistration bool) *Service {
	return &Service{
		users:     users,
		passwords: passwords,
		jwt:       jwt,
		allowOpen: allowRegistration,
	}
}

// Register creates a new user and returns an issued access token.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*models.AuthResult, error) {
	if !s.allowOpen {
		return nil, ErrRegistrationDisabled
	}

	existing, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("checking existing email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailAlreadyTaken
	}

	if err := s.passwords.ValidatePassword(req.Password); err != nil {
		return nil, err
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		PasswordHash: hash,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	return s.issueTokens(user)
}

// Login verifies credentials and returns an issued access token.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*models.AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrAccountInactive
	}

	if err := s.passwords.VerifyPassword(req.Password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, fmt.Errorf("updating last login: %w", err)
	}

	return s.issueTokens(user)
}

// CurrentUser returns the authenticated user for /auth/me.
func (s *Service) CurrentUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *Service) issueTokens(user *models.User) (*models.AuthResult, error) {
	accessToken, _, err := s.jwt.GenerateAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, _, err := s.jwt.GenerateRefreshToken()
	if err != nil {
		return nil, err
	}

	return &models.AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.jwt.GetAccessTokenExpiry(),
		TokenType:    "Bearer",
	}, nil
}
