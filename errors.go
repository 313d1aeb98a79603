package gdao

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// =====================================
// Error Handling
// =====================================

// Error represents a data access error
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Code    string
}

// Error implements the error interface
func (e Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e Error) Unwrap() error {
	return e.Cause
}

// Is checks if the error is of a specific type
func (e Error) Is(target error) bool {
	if t, ok := target.(Error); ok {
		return e.Type == t.Type
	}
	return false
}

// NewError creates a new Error
func NewError(errorType ErrorType, message string) Error {
	return Error{
		Type:    errorType,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error with a cause
func NewErrorWithCause(errorType ErrorType, message string, cause error) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Cause:   errors.WithStack(cause),
	}
}

// NewErrorWithCode creates a new Error with a code
func NewErrorWithCode(errorType ErrorType, message string, code string) Error {
	return Error{
		Type:    errorType,
		Message: message,
		Code:    code,
	}
}

// ErrNotFound matches any not-found error with errors.Is.
var ErrNotFound = NewError(ErrorTypeNotFound, "entity not found")

// ErrSessionClosed is returned by operations on a closed session
var ErrSessionClosed = NewError(ErrorTypeTransaction, "session is closed")

// ErrNoTransaction is returned by Commit and Rollback outside a transaction
var ErrNoTransaction = NewError(ErrorTypeTransaction, "no active transaction")

// ErrTransactionActive is returned by Begin inside a transaction
var ErrTransactionActive = NewError(ErrorTypeTransaction, "transaction already active")

// IsErrorType checks if an error, or anything it wraps, is of a specific type
func IsErrorType(err error, errorType ErrorType) bool {
	var e Error
	if errors.As(err, &e) {
		return e.Type == errorType
	}
	return false
}

// IsNotFound checks if an error is a "not found" error
func IsNotFound(err error) bool {
	return IsErrorType(err, ErrorTypeNotFound)
}

// IsDuplicate checks if an error is a "duplicate" error
func IsDuplicate(err error) bool {
	return IsErrorType(err, ErrorTypeDuplicate)
}

// IsValidation checks if an error is a "validation" error
func IsValidation(err error) bool {
	return IsErrorType(err, ErrorTypeValidation)
}

// IsConnection checks if an error is a "connection" error
func IsConnection(err error) bool {
	return IsErrorType(err, ErrorTypeConnection)
}

// IsTransaction checks if an error is a "transaction" error
func IsTransaction(err error) bool {
	return IsErrorType(err, ErrorTypeTransaction)
}

// IsUnsupported checks if an error is an "unsupported" error
func IsUnsupported(err error) bool {
	return IsErrorType(err, ErrorTypeUnsupported)
}

// IsInvalidArgument checks if an error is an "invalid argument" error
func IsInvalidArgument(err error) bool {
	return IsErrorType(err, ErrorTypeInvalidArgument)
}
