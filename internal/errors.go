package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidRange     ErrorCode = "INVALID_RANGE"

	ErrCodeMissingScope ErrorCode = "MISSING_SCOPE"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeAccessDenied ErrorCode = "ACCESS_DENIED"

	ErrCodeUpstreamError ErrorCode = "UPSTREAM_ERROR"

	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired ErrorCode = "TOKEN_EXPIRED"

	ErrCodeOrgNotFound    ErrorCode = "ORGANIZATION_NOT_FOUND"
	ErrCodeGrantConflict  ErrorCode = "GRANT_ALREADY_ACTIVE"
	ErrCodeGrantNotFound  ErrorCode = "GRANT_NOT_FOUND"
	ErrCodeLinkNotFound   ErrorCode = "AGENCY_LINK_NOT_FOUND"
	ErrCodeSelfLink       ErrorCode = "AGENCY_SELF_LINK"
	ErrCodeInvalidRole    ErrorCode = "INVALID_ROLE"
	ErrCodeInvalidOrgTier ErrorCode = "INVALID_ORGANIZATION_TIER"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	clone := *e
	clone.Cause = cause
	return &clone
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	clone := *e
	clone.Details = details
	return &clone
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewUpstreamError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       ErrCodeUpstreamError,
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Cause:      cause,
	}
}

// Gateway error taxonomy. MissingScope, Forbidden, InvalidRange and
// AccessDenied are local, terminal and user-facing; UpstreamError covers
// warehouse failure or timeout. The wire representation never exposes more
// than the opaque category (see WireCategory).
var (
	ErrMissingScope = NewValidationError("organization scope is required for platform callers", ErrCodeMissingScope)
	ErrForbidden    = NewForbiddenError("access to the requested organization is not allowed", ErrCodeForbidden)
	ErrAccessDenied = NewForbiddenError("no accessible applications in scope", ErrCodeAccessDenied)
	ErrInvalidRange = NewValidationError("time range start must not be after end", ErrCodeInvalidRange)

	ErrInvalidToken = NewUnauthorizedError("invalid token", ErrCodeInvalidToken)
	ErrTokenExpired = NewUnauthorizedError("token has expired", ErrCodeTokenExpired)
)

func IsAppError(err error) (*AppError, bool) {
	if appErr, ok := err.(*AppError); ok {
		return appErr, true
	}
	return nil, false
}

// WireCategory maps an error code to the opaque category exposed to clients.
// Denied access and forbidden access are deliberately indistinguishable on
// the wire so callers cannot probe grant contents by observing error detail.
func (e *AppError) WireCategory() string {
	switch e.Code {
	case ErrCodeMissingScope:
		return "missing_scope"
	case ErrCodeForbidden, ErrCodeAccessDenied:
		return "forbidden"
	case ErrCodeInvalidRange:
		return "invalid_range"
	case ErrCodeUpstreamError:
		return "upstream_error"
	default:
		return "internal_error"
	}
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
