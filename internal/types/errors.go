package types

import "fmt"

// ErrorCode represents a specific error type
type ErrorCode string

const (
	// Input errors
	ErrValidation      ErrorCode = "VALIDATION_ERROR"
	ErrInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// Economy errors
	ErrInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCapExceeded       ErrorCode = "CAP_EXCEEDED"
	ErrIncomplete        ErrorCode = "INCOMPLETE"

	// Lookup errors
	ErrNotFound ErrorCode = "NOT_FOUND"

	// System errors
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
	ErrDatabaseError ErrorCode = "DATABASE_ERROR"
)

// EconomyError represents an economy-related error
type EconomyError struct {
	Code    ErrorCode
	Message string
	Err     error // Underlying error, if any
}

// Error implements the error interface
func (e *EconomyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *EconomyError) Unwrap() error {
	return e.Err
}

// NewEconomyError creates a new EconomyError
func NewEconomyError(code ErrorCode, message string) *EconomyError {
	return &EconomyError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error in an EconomyError
func WrapError(code ErrorCode, message string, err error) *EconomyError {
	return &EconomyError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// IsEconomyError checks if an error is an EconomyError and has a specific code
func IsEconomyError(err error, code ErrorCode) bool {
	var econErr *EconomyError
	if err == nil {
		return false
	}
	if ok := As(err, &econErr); !ok {
		return false
	}
	return econErr.Code == code
}

// As is a helper function to safely type assert an error to an EconomyError
func As(err error, target **EconomyError) bool {
	if target == nil {
		return false
	}
	if econErr, ok := err.(*EconomyError); ok {
		*target = econErr
		return true
	}
	return false
}
