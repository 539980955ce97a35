// Package models defines the public domain models for notebookcore's
// built-in authentication system.
package models

import "time"

// User represents a user account in the system. Notebook ownership
// (domain.Notebook.UserID) is checked against this ID; there is no
// separate role/permission system in this deployment.
type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	IsActive     bool `json:"is_active"`
	IsAdmin      bool `json:"is_admin"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// Validate validates the user structure.
func (u *User) Validate() error {
	if u.Email == "" {
		return &ValidationError{Field: "email", Message: "email is required"}
	}
	if u.Username == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if u.PasswordHash == "" {
		return &ValidationError{Field: "password_hash", Message: "password hash is required"}
	}
	return nil
}

// Session represents a refresh-token session backing the login flow.
type Session struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	RefreshToken string `json:"-"`
	ExpiresAt    time.Time `json:"expires_at"`
	IPAddress    string `json:"ip_address,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Validate validates the session structure.
func (s *Session) Validate() error {
	if s.UserID == "" {
		return &ValidationError{Field: "user_id", Message: "user ID is required"}
	}
	if s.RefreshToken == "" {
		return &ValidationError{Field: "refresh_token", Message: "refresh token is required"}
	}
	if s.ExpiresAt.IsZero() {
		return &ValidationError{Field: "expires_at", Message: "expiration time is required"}
	}
	return nil
}

// IsExpired checks if the session has expired.
func (s *Session) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

// AuthResult represents the result of successful authentication.
type AuthResult struct {
	User         *User `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int `json:"expires_in"`
	TokenType    string `json:"token_type"`
}
