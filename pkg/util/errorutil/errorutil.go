package errorutil

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes shared by every layer.
const (
	CodeInvalid          = "INVALID"
	CodeValidation       = "VALIDATION_FAILED"
	CodeExpired          = "EXPIRED"
	CodeNoAuth           = "NO_AUTH"
	CodeEmailNotVerified = "EMAIL_NOT_VERIFIED"
	CodeForbidden        = "INSUFFICIENT_PERMISSION"
	CodeNotFound         = "NOT_FOUND"
	CodeConflict         = "CONFLICT"
	CodeServer           = "SERVER_ERROR"
)

// Sentinels for errors.Is checks. Matching is by Code, so any DomainError
// created through the constructors below matches its sentinel.
var (
	ErrInvalid          = NewDomainError(CodeInvalid, "invalid data supplied", http.StatusBadRequest, nil)
	ErrValidation       = NewDomainError(CodeValidation, "validation failed", http.StatusBadRequest, nil)
	ErrExpired          = NewDomainError(CodeExpired, "expired", http.StatusUnauthorized, nil)
	ErrNoAuth           = NewDomainError(CodeNoAuth, "authentication required", http.StatusUnauthorized, nil)
	ErrEmailNotVerified = NewDomainError(CodeEmailNotVerified, "email not verified", http.StatusUnauthorized, nil)
	ErrForbidden        = NewDomainError(CodeForbidden, "insufficient permission", http.StatusForbidden, nil)
	ErrNotFound         = NewDomainError(CodeNotFound, "not found", http.StatusNotFound, nil)
	ErrConflict         = NewDomainError(CodeConflict, "conflict", http.StatusConflict, nil)
	ErrServer           = NewDomainError(CodeServer, "internal server error", http.StatusInternalServerError, nil)
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

// Is reports whether target is a DomainError with the same code.
func (e *DomainError) Is(target error) bool {
	var other *DomainError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewInvalid(message string) error {
	return NewDomainError(CodeInvalid, message, http.StatusBadRequest, nil)
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewExpired(message string) error {
	return NewDomainError(CodeExpired, message, http.StatusUnauthorized, nil)
}

func NewNoAuth(message string) error {
	return NewDomainError(CodeNoAuth, message, http.StatusUnauthorized, nil)
}

func NewEmailNotVerified(message string) error {
	return NewDomainError(CodeEmailNotVerified, message, http.StatusUnauthorized, nil)
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

func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeServer,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
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
	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts generic errors to DomainError.
func MapError(err error) error {
	return ToDomainError(err)
}
