package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (s *ErrorTestSuite) TestNewEconomyError() {
	// Setup
	code := ErrInsufficientFunds
	message := "balance too low"

	// Execute
	err := NewEconomyError(code, message)

	// Assert
	s.Equal(code, err.Code, "Error code should match")
	s.Equal(message, err.Message, "Error message should match")
	s.Nil(err.Err, "Underlying error should be nil")
}

func (s *ErrorTestSuite) TestWrapError() {
	// Setup
	code := ErrDatabaseError
	message := "database error"
	underlying := errors.New("connection failed")

	// Execute
	err := WrapError(code, message, underlying)

	// Assert
	s.Equal(code, err.Code, "Error code should match")
	s.Equal(message, err.Message, "Error message should match")
	s.Equal(underlying, err.Err, "Underlying error should match")
}

func (s *ErrorTestSuite) TestErrorString() {
	testCases := []struct {
		name     string
		err      *EconomyError
		expected string
	}{
		{
			name:     "Simple error",
			err:      NewEconomyError(ErrNotFound, "unknown reward key"),
			expected: "NOT_FOUND: unknown reward key",
		},
		{
			name:     "Wrapped error",
			err:      WrapError(ErrDatabaseError, "database error", errors.New("connection failed")),
			expected: "DATABASE_ERROR: database error (connection failed)",
		},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expected, tc.err.Error())
		})
	}
}

func (s *ErrorTestSuite) TestUnwrap() {
	underlying := errors.New("disk full")
	err := WrapError(ErrInternalError, "write failed", underlying)

	s.Equal(underlying, err.Unwrap(), "Unwrap should return the underlying error")
	s.True(errors.Is(err, underlying), "errors.Is should find the underlying error")
}

func (s *ErrorTestSuite) TestIsEconomyError() {
	err := NewEconomyError(ErrCapExceeded, "daily limit reached")

	s.True(IsEconomyError(err, ErrCapExceeded))
	s.False(IsEconomyError(err, ErrNotFound))
	s.False(IsEconomyError(nil, ErrCapExceeded))
	s.False(IsEconomyError(errors.New("plain"), ErrCapExceeded))
}
