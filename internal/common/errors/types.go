// Package errors defines the gateway's error taxonomy and its HTTP mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrTypeValidation ErrorType = "validation"
	ErrTypeConfig     ErrorType = "config"
	ErrTypeAuth       ErrorType = "authentication"
	ErrTypeForbidden  ErrorType = "forbidden"
	ErrTypeNotFound   ErrorType = "not_found"
	ErrTypeInactive   ErrorType = "inactive"
	ErrTypeSecurity   ErrorType = "security"
	ErrTypeConflict   ErrorType = "conflict"
	ErrTypeRateLimit  ErrorType = "rate_limit"
	ErrTypeConnection ErrorType = "connection"
	ErrTypeInternal   ErrorType = "internal"
)

// Public error codes returned in JSON bodies
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeRateLimited     = "RATE_LIMITED"
	CodeAuthError       = "AUTH_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeInvalidRequest  = "INVALID_REQUEST"
	CodeInternal        = "INTERNAL"
)

// AppError represents a structured application error
type AppError struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Status  int                    `json:"-"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		kv := make([]string, 0, len(keys))
		for _, k := range keys {
			kv = append(kv, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(kv, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode overrides the public error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithStatus overrides the HTTP status derived from the type
func (e *AppError) WithStatus(status int) *AppError {
	e.Status = status
	return e
}

func newError(t ErrorType, msg, code string, cause error) *AppError {
	return &AppError{Type: t, Message: msg, Code: code, Cause: cause}
}

func ValidationError(msg string) *AppError {
	return newError(ErrTypeValidation, msg, CodeInvalidRequest, nil)
}

func ConfigError(msg string) *AppError {
	return newError(ErrTypeConfig, msg, "", nil)
}

// AuthError is a missing or rejected credential
func AuthError(msg string) *AppError {
	return newError(ErrTypeAuth, msg, CodeUnauthenticated, nil)
}

func ForbiddenError(msg string) *AppError {
	return newError(ErrTypeForbidden, msg, CodeForbidden, nil)
}

// NotFoundError uses msg verbatim, e.g. "Webhook not found"
func NotFoundError(msg string) *AppError {
	return newError(ErrTypeNotFound, msg, CodeNotFound, nil)
}

func InactiveError(msg string) *AppError {
	return newError(ErrTypeInactive, msg, "", nil)
}

// SecurityError is an IP or quota rejection; status is 403 or 429
func SecurityError(msg string, status int) *AppError {
	return newError(ErrTypeSecurity, msg, "", nil).WithStatus(status)
}

func ConflictError(msg string) *AppError {
	return newError(ErrTypeConflict, msg, CodeConflict, nil)
}

func RateLimitError(msg string) *AppError {
	return newError(ErrTypeRateLimit, msg, CodeRateLimited, nil)
}

func ConnectionError(msg string, cause error) *AppError {
	return newError(ErrTypeConnection, msg, "", cause)
}

func InternalError(msg string, cause error) *AppError {
	return newError(ErrTypeInternal, msg, CodeInternal, cause)
}

// As finds the first AppError in err's chain
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == errType
}

// GetType returns the error type, ErrTypeInternal for foreign errors and "" for nil
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}
	if appErr, ok := As(err); ok {
		return appErr.Type
	}
	return ErrTypeInternal
}

// HTTPStatus maps an error to the status code the API responds with
func HTTPStatus(err error) int {
	appErr, ok := As(err)
	if !ok {
		return http.StatusInternalServerError
	}
	if appErr.Status != 0 {
		return appErr.Status
	}
	switch appErr.Type {
	case ErrTypeValidation:
		return http.StatusBadRequest
	case ErrTypeAuth:
		return http.StatusUnauthorized
	case ErrTypeForbidden, ErrTypeSecurity:
		return http.StatusForbidden
	case ErrTypeNotFound:
		return http.StatusNotFound
	case ErrTypeInactive:
		return http.StatusGone
	case ErrTypeConflict:
		return http.StatusConflict
	case ErrTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrTypeConnection:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the message safe to show a client. Internal faults
// never leak their detail.
func PublicMessage(err error) string {
	appErr, ok := As(err)
	if !ok || appErr.Type == ErrTypeInternal || appErr.Type == ErrTypeConnection {
		return "Internal server error"
	}
	return appErr.Message
}

// PublicCode returns the machine-readable code for err, CodeInternal when
// it carries none
func PublicCode(err error) string {
	appErr, ok := As(err)
	if !ok || appErr.Code == "" {
		return CodeInternal
	}
	return appErr.Code
}
