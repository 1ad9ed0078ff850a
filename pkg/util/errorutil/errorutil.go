package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes rendered in API responses.
const (
	CodeValidation     = "VALIDATION_FAILED"
	CodeNotFound       = "NOT_FOUND"
	CodeUnauthorized   = "UNAUTHORIZED"
	CodeForbidden      = "FORBIDDEN"
	CodeConflict       = "CONFLICT"
	CodeConfiguration  = "CONFIGURATION_ERROR"
	CodeAuthorization  = "AUTHORIZATION_ERROR"
	CodeInfrastructure = "INFRASTRUCTURE_ERROR"
	CodeInternal       = "INTERNAL_ERROR"
)

// Machine-readable rejection reasons for intake webhooks.
const (
	ReasonUnconfiguredDestination = "unconfigured_destination"
	ReasonCredentialMismatch      = "credential_mismatch"
	ReasonMalformedPayload        = "malformed_payload"
	ReasonStoreUnavailable        = "store_unavailable"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Reason returns the details reason, if any.
func (e *DomainError) Reason() string {
	if e == nil || e.Details == nil {
		return ""
	}
	reason, _ := e.Details["reason"].(string)
	return reason
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	if _, ok := details["reason"]; !ok {
		details["reason"] = ReasonMalformedPayload
	}
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

// NewConfigurationError rejects traffic for a destination no tenant owns.
func NewConfigurationError(message string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["reason"] = ReasonUnconfiguredDestination
	return NewDomainError(CodeConfiguration, message, http.StatusNotFound, details)
}

// NewAuthorizationError rejects a request whose provider credential does not match the tenant.
func NewAuthorizationError(message string) error {
	return NewDomainError(CodeAuthorization, message, http.StatusForbidden, map[string]any{
		"reason": ReasonCredentialMismatch,
	})
}

// NewInfrastructureError wraps a transient store or provider failure.
func NewInfrastructureError(err error) error {
	return &DomainError{
		Code:       CodeInfrastructure,
		Message:    "dependency unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		Details:    map[string]any{"reason": ReasonStoreUnavailable},
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsRetryable reports whether the provider should redeliver after this error.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus >= http.StatusInternalServerError
	}
	return true
}

// HasCode reports whether err is a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}
