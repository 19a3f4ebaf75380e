package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrValidation
	ErrDuplicate
	ErrAccountNotLinked
	ErrConflict
)

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) StatusCode() int {
	switch e.Code {
	case ErrNotFound:
		return http.StatusNotFound
	case ErrBadRequest, ErrValidation:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusUnauthorized
	case ErrForbidden, ErrAccountNotLinked:
		return http.StatusForbidden
	case ErrDuplicate, ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ValidationError is a rejected field value. Message is shown to the caller verbatim.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func NewValidation(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) StatusCode() int { return http.StatusBadRequest }

func (e *ValidationError) ErrorCode() ErrorCode { return ErrValidation }

// NotFoundError reports a lookup miss on a required reference.
type NotFoundError struct {
	Kind string `json:"kind"`
	ID   string `json:"id"`
}

func NewNotFoundError(kind string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found with ID: %s", e.Kind, e.ID)
}

func (e *NotFoundError) StatusCode() int { return http.StatusNotFound }

func (e *NotFoundError) ErrorCode() ErrorCode { return ErrNotFound }

// AccessDeniedError is returned when a doctor acts on a record owned by another doctor.
type AccessDeniedError struct {
	Reason string `json:"reason"`
}

func NewAccessDenied(reason string) *AccessDeniedError {
	return &AccessDeniedError{Reason: reason}
}

func (e *AccessDeniedError) Error() string { return e.Reason }

func (e *AccessDeniedError) StatusCode() int { return http.StatusForbidden }

func (e *AccessDeniedError) ErrorCode() ErrorCode { return ErrForbidden }

// AccountNotLinkedMessage is shown when a doctor-role identity has no doctor record.
const AccountNotLinkedMessage = "Doctor account is not linked to a doctor record in the database. Please contact admin."

// AccountNotLinkedError means the identity is valid but no domain record carries its email.
type AccountNotLinkedError struct {
	Email   string `json:"email,omitempty"`
	Message string `json:"message"`
}

func NewAccountNotLinked(email string) *AccountNotLinkedError {
	return &AccountNotLinkedError{Email: email, Message: AccountNotLinkedMessage}
}

func (e *AccountNotLinkedError) Error() string { return e.Message }

func (e *AccountNotLinkedError) StatusCode() int { return http.StatusForbidden }

func (e *AccountNotLinkedError) ErrorCode() ErrorCode { return ErrAccountNotLinked }

// DuplicateError is a uniqueness violation on a single field.
type DuplicateError struct {
	Field string `json:"field"`
	Value string `json:"value,omitempty"`
	Label string `json:"-"`
}

func NewDuplicate(field, label, value string) *DuplicateError {
	return &DuplicateError{Field: field, Label: label, Value: value}
}

func (e *DuplicateError) Error() string {
	label := e.Label
	if label == "" {
		label = e.Field
	}
	if e.Value == "" {
		return fmt.Sprintf("%s already exists", label)
	}
	return fmt.Sprintf("%s already exists: %s", label, e.Value)
}

func (e *DuplicateError) StatusCode() int { return http.StatusConflict }

func (e *DuplicateError) ErrorCode() ErrorCode { return ErrDuplicate }

// Error constructors
func NewNotFound(resource string, err error) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Err:     err,
	}
}

func NewBadRequest(message string, err error) *AppError {
	return &AppError{
		Code:    ErrBadRequest,
		Message: message,
		Err:     err,
	}
}

func NewInternal(err error) *AppError {
	return &AppError{
		Code:    ErrInternal,
		Message: "internal server error",
		Err:     err,
	}
}

func NewConflict(message string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: message,
	}
}

// Common errors
func BadRequest(message string, err error) *AppError {
	return NewBadRequest(message, err)
}

func Internal(err error) *AppError {
	return NewInternal(err)
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    ErrForbidden,
		Message: message,
	}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return stderrors.As(err, &target)
}

func IsAccessDenied(err error) bool {
	var target *AccessDeniedError
	return stderrors.As(err, &target)
}

func IsAccountNotLinked(err error) bool {
	var target *AccountNotLinkedError
	return stderrors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateError
	return stderrors.As(err, &target)
}
