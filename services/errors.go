package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeAccessDenied ErrorType = "access_denied"
	ErrorTypeIntegrity    ErrorType = "integrity"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeStorage      ErrorType = "storage"
	ErrorTypeConfig       ErrorType = "config"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// WithDetail returns a copy of the error with the detail added. Copying
// keeps the package-level sentinel errors immutable and safe to annotate
// concurrently.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	clone := &DomainError{
		Type:    e.Type,
		Message: e.Message,
		Err:     e.Err,
		Details: make(map[string]interface{}, len(e.Details)+1),
	}
	for k, v := range e.Details {
		clone.Details[k] = v
	}
	clone.Details[key] = value
	return clone
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables

var (
	// Validation Errors
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrInvalidTier  = NewDomainError(ErrorTypeValidation, "invalid category tier", nil)
	ErrEmptyContent = NewDomainError(ErrorTypeValidation, "content cannot be empty", nil)
	ErrEmptyPhone   = NewDomainError(ErrorTypeValidation, "owner phone cannot be empty", nil)

	// Access Errors
	ErrAccessDenied       = NewDomainError(ErrorTypeAccessDenied, "access denied", nil)
	ErrSessionRequired    = NewDomainError(ErrorTypeAccessDenied, "elevated session required", nil)
	ErrSessionExpired     = NewDomainError(ErrorTypeAccessDenied, "elevated session expired", nil)
	ErrScopeNotPermitted  = NewDomainError(ErrorTypeAccessDenied, "search scope not permitted for role", nil)
	ErrVoiceAuthFailed    = NewDomainError(ErrorTypeAccessDenied, "voice authentication failed", nil)
	ErrPermissionRequired = NewDomainError(ErrorTypeAccessDenied, "permission not granted", nil)

	// Integrity Errors
	ErrCiphertextTampered = NewDomainError(ErrorTypeIntegrity, "ciphertext authentication failed", nil)
	ErrSealedFormat       = NewDomainError(ErrorTypeIntegrity, "malformed sealed content", nil)

	// Not Found Errors
	ErrMemoryNotFound = NewDomainError(ErrorTypeNotFound, "memory not found", nil)
	ErrUserNotFound   = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrTenantNotFound = NewDomainError(ErrorTypeNotFound, "tenant not found", nil)

	// Storage Errors
	ErrStorageFailure = NewDomainError(ErrorTypeStorage, "storage operation failed", nil)
	ErrIndexCorrupt   = NewDomainError(ErrorTypeStorage, "owner index is corrupt", nil)

	// Config Errors
	ErrConfigInvalid  = NewDomainError(ErrorTypeConfig, "invalid configuration", nil)
	ErrTenancyInvalid = NewDomainError(ErrorTypeConfig, "malformed tenancy file", nil)
)

// Error type checking helper functions

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errorTypeOf(err) == ErrorTypeValidation
}

// IsAccessDenied checks if an error is an access denied error
func IsAccessDenied(err error) bool {
	return errorTypeOf(err) == ErrorTypeAccessDenied
}

// IsIntegrityError checks if an error is a ciphertext integrity error
func IsIntegrityError(err error) bool {
	return errorTypeOf(err) == ErrorTypeIntegrity
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return errorTypeOf(err) == ErrorTypeNotFound
}

// IsStorageError checks if an error is a storage error
func IsStorageError(err error) bool {
	return errorTypeOf(err) == ErrorTypeStorage
}

// IsConfigError checks if an error is a configuration error
func IsConfigError(err error) bool {
	return errorTypeOf(err) == ErrorTypeConfig
}

func errorTypeOf(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	return errorTypeOf(err)
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapStorage wraps an error as a storage error
func WrapStorage(message string, err error) error {
	return NewDomainError(ErrorTypeStorage, message, err)
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(message string, err error) error {
	return NewDomainError(ErrorTypeConfig, message, err)
}
