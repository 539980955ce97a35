package rest

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/nbcore/notebookcore/internal/application/auth"
	"github.com/nbcore/notebookcore/internal/coreerr"
	"github.com/nbcore/notebookcore/pkg/models"
)

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int `json:"-"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(code, message string, httpStatus int) *APIError {
	return &APIError{
		Code: code,
		Message: message,
		HTTPStatus: httpStatus,
	}
}

func NewAPIErrorWithDetails(code, message string, httpStatus int, details map[string]interface{}) *APIError {
	return &APIError{
		Code: code,
		Message: message,
		Details: details,
		HTTPStatus: httpStatus,
	}
}

var (
	ErrBadRequest       = NewAPIError("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrUnauthorized     = NewAPIError("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrForbidden        = NewAPIError("FORBIDDEN", "Access denied", http.StatusForbidden)
	ErrNotFound         = NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrConflict         = NewAPIError("CONFLICT", "Resource conflict", http.StatusConflict)
	ErrValidationFailed = NewAPIError("VALIDATION_FAILED", "Validation failed", http.StatusBadRequest)
	ErrInternalServer   = NewAPIError("INTERNAL_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrTooManyRequests  = NewAPIError("RATE_LIMIT_EXCEEDED", "Too many requests", http.StatusTooManyRequests)
	ErrInvalidJSON      = NewAPIError("INVALID_JSON", "Invalid JSON in request body", http.StatusBadRequest)
	ErrMissingParameter = NewAPIError("MISSING_PARAMETER", "Required parameter is missing", http.StatusBadRequest)
	ErrInvalidParameter = NewAPIError("INVALID_PARAMETER", "Invalid parameter value", http.StatusBadRequest)
	ErrInvalidID        = NewAPIError("INVALID_ID", "Invalid ID format", http.StatusBadRequest)
	ErrTokenExpired     = NewAPIError("TOKEN_EXPIRED", "Token has expired", http.StatusUnauthorized)
	ErrInvalidToken     = NewAPIError("INVALID_TOKEN", "Invalid token", http.StatusUnauthorized)
)

// TranslateError maps a coordinator/storage/auth error into the wire-level
// APIError shape.
func TranslateError(err error) *APIError {
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	switch {
	case errors.Is(err, coreerr.ErrNotFound):
		return NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	case errors.Is(err, coreerr.ErrForbidden):
		return NewAPIError("FORBIDDEN", "Access denied", http.StatusForbidden)
	case errors.Is(err, coreerr.ErrConflict):
		var conflict *coreerr.ConflictError
		if errors.As(err, &conflict) {
			return NewAPIErrorWithDetails("CONFLICT", "Revision conflict", http.StatusConflict, map[string]interface{}{
				"expected_revision": conflict.Expected,
				"current_revision": conflict.Current,
			})
		}
		return NewAPIError("CONFLICT", "Revision conflict", http.StatusConflict)
	case errors.Is(err, coreerr.ErrTimeout):
		return NewAPIError("TIMEOUT", "Kernel round-trip timed out", http.StatusGatewayTimeout)
	case errors.Is(err, coreerr.ErrKernelDied):
		return NewAPIError("KERNEL_DIED", "The notebook's kernel process has died", http.StatusServiceUnavailable)
	case errors.Is(err, coreerr.ErrShuttingDown):
		return NewAPIError("SHUTTING_DOWN", "Server is shutting down", http.StatusServiceUnavailable)
	case errors.Is(err, coreerr.ErrInvalidInput):
		return NewAPIError("INVALID_INPUT", "Invalid input", http.StatusBadRequest)

	case errors.Is(err, auth.ErrUserNotFound):
		return NewAPIError("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	case errors.Is(err, auth.ErrEmailAlreadyTaken):
		return NewAPIError("EMAIL_ALREADY_TAKEN", "Email is already taken", http.StatusConflict)
	case errors.Is(err, auth.ErrUsernameAlreadyTaken):
		return NewAPIError("USERNAME_ALREADY_TAKEN", "Username is already taken", http.StatusConflict)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return NewAPIError("INVALID_CREDENTIALS", "Invalid credentials", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrAccountLocked):
		return NewAPIError("ACCOUNT_LOCKED", "Account is locked", http.StatusForbidden)
	case errors.Is(err, auth.ErrAccountInactive):
		return NewAPIError("ACCOUNT_INACTIVE", "Account is inactive", http.StatusForbidden)
	case errors.Is(err, auth.ErrInvalidRefreshToken):
		return NewAPIError("INVALID_REFRESH_TOKEN", "Invalid refresh token", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrRefreshTokenExpired):
		return NewAPIError("REFRESH_TOKEN_EXPIRED", "Refresh token has expired", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrRegistrationDisabled):
		return NewAPIError("REGISTRATION_DISABLED", "Registration is disabled", http.StatusForbidden)
	case errors.Is(err, auth.ErrInvalidToken):
		return NewAPIError("INVALID_TOKEN", "Invalid token", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrExpiredToken):
		return NewAPIError("TOKEN_EXPIRED", "Token has expired", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrInvalidClaims):
		return NewAPIError("INVALID_TOKEN", "Invalid token claims", http.StatusUnauthorized)

	case errors.Is(err, models.ErrUserExists):
		return NewAPIError("USER_EXISTS", "User already exists", http.StatusConflict)
	case errors.Is(err, models.ErrValidationFailed):
		return NewAPIError("VALIDATION_FAILED", "Validation failed", http.StatusBadRequest)
	case errors.Is(err, models.ErrInvalidID):
		return NewAPIError("INVALID_ID", "Invalid ID format", http.StatusBadRequest)

	// Database-level not found (when a repository doesn't wrap sql.ErrNoRows)
	case errors.Is(err, sql.ErrNoRows):
		return NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	}

	errMsg := strings.ToLower(err.Error())
	if     strings.Contains(errMsg, "no rows") || strings.Contains(errMsg, "not found") {
		return NewAPIError("NOT_FOUND", "Resource not found", http.StatusNotFound)
	}

	var passwordErr *auth.PasswordError
	if errors.As(err, &passwordErr) {
		return NewAPIError("INVALID_PASSWORD", passwordErr.Error(), http.StatusBadRequest)
	}

	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		return NewAPIErrorWithDetails(
			"VALIDATION_ERROR",
			validationErr.Message,
			http.StatusBadRequest,
			map[string]interface{}{"field": validationErr.Field},
		)
	}

	var validationErrs models.ValidationErrors
	if errors.As(err, &validationErrs) {
		details := make(map[string]interface{})
		for _, ve := range validationErrs {
			details[ve.Field] = ve.Message
		}
		if len(validationErrs) > 0 {
			return NewAPIErrorWithDetails("VALIDATION_FAILED", validationErrs[0].Message, http.StatusBadRequest, details)
		}
		return NewAPIErrorWithDetails("VALIDATION_FAILED", "Multiple validation errors", http.StatusBadRequest, details)
	}

	return NewAPIError("INTERNAL_ERROR", "An unexpected error occurred", http.StatusInternalServerError)
}
