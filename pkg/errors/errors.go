package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents different types of errors in the system
type ErrorType string

const (
	// ErrorTypeNotFound indicates a resource was not found
	ErrorTypeNotFound ErrorType = "NOT_FOUND"

	// ErrorTypeValidation indicates a validation error
	ErrorTypeValidation ErrorType = "VALIDATION"

	// ErrorTypeConflict indicates a conflict with existing data
	ErrorTypeConflict ErrorType = "CONFLICT"

	// ErrorTypeInternal indicates an internal server error
	ErrorTypeInternal ErrorType = "INTERNAL"

	// ErrorTypeExternal indicates an error from external service
	ErrorTypeExternal ErrorType = "EXTERNAL"

	// ErrorTypeUnknownCity indicates a location outside every configured city
	ErrorTypeUnknownCity ErrorType = "UNKNOWN_CITY"

	// ErrorTypeNoPharmaciesOnDuty indicates no duty pharmacy is near the query point
	ErrorTypeNoPharmaciesOnDuty ErrorType = "NO_PHARMACIES_ON_DUTY"

	// ErrorTypeInvalidCoordinates indicates latitude or longitude out of range
	ErrorTypeInvalidCoordinates ErrorType = "INVALID_COORDINATES"

	// ErrorTypeUpstreamUnavailable indicates a whole external service failed; retryable
	ErrorTypeUpstreamUnavailable ErrorType = "UPSTREAM_UNAVAILABLE"
)

// AppError represents an application error
type AppError struct {
	Type    ErrorType
	Message string
	Err     error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements the unwrap interface
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error type to the status code the request layer returns.
func (e *AppError) HTTPStatus() int {
	switch e.Type {
	case ErrorTypeValidation, ErrorTypeInvalidCoordinates, ErrorTypeUnknownCity:
		return http.StatusBadRequest
	case ErrorTypeNotFound, ErrorTypeNoPharmaciesOnDuty:
		return http.StatusNotFound
	case ErrorTypeConflict:
		return http.StatusConflict
	case ErrorTypeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case ErrorTypeExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewValidationError creates a new validation error
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Message: message,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeConflict,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeInternal,
		Message: message,
		Err:     err,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeExternal,
		Message: message,
		Err:     err,
	}
}

// NewUnknownCityError creates an error for locations no configured city matches
func NewUnknownCityError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeUnknownCity,
		Message: message,
	}
}

// NewNoPharmaciesOnDutyError creates an error for an empty duty candidate set
func NewNoPharmaciesOnDutyError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeNoPharmaciesOnDuty,
		Message: message,
	}
}

// NewInvalidCoordinatesError creates a coordinate range error
func NewInvalidCoordinatesError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeInvalidCoordinates,
		Message: message,
	}
}

// NewUpstreamUnavailableError creates a retryable error for a failed external service
func NewUpstreamUnavailableError(message string, err error) *AppError {
	return &AppError{
		Type:    ErrorTypeUpstreamUnavailable,
		Message: message,
		Err:     err,
	}
}

// IsType reports whether err wraps an AppError of the given type.
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errType
	}
	return false
}

// IsRetryable reports whether the caller may retry the failed operation.
func IsRetryable(err error) bool {
	return IsType(err, ErrorTypeUpstreamUnavailable)
}

// As returns the AppError wrapped by err, if any.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}
