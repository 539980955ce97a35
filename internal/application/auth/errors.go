package auth

import "errors"

// Sentinel errors returned by the login/registration flow that sit above
// password validation (see password_service.go) and JWT issuance (see
// jwt_service.go).
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrEmailAlreadyTaken    = errors.New("email is already taken")
	ErrUsernameAlreadyTaken = errors.New("username is already taken")
	ErrInvalidCredentials   = errors.New("invalid credentials")
	ErrAccountLocked        = errors.New("account is locked")
	ErrAccountInactive      = errors.New("account is inactive")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrRefreshTokenExpired  = errors.New("refresh token has expired")
	ErrRegistrationDisabled = errors.New("registration is disabled")
)
