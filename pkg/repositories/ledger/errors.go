package ledger

import (
	"errors"
	"fmt"
)

var (
	// ErrWalletNotFound is returned when a wallet has never been written.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrEntryNotFound is returned when no ledger entry matches a lookup.
	ErrEntryNotFound = errors.New("ledger entry not found")

	// ErrDuplicateRequest is returned when a client request ID has already
	// been recorded for the account and kind. Callers resolve it by
	// re-reading the winning entry; it is never surfaced to end users.
	ErrDuplicateRequest = errors.New("duplicate client request id")
)

// InsufficientBalanceError is returned when a delta would drive a balance
// negative. No state changes when it is returned.
type InsufficientBalanceError struct {
	Balance  int64 // Balance at the time of the attempt
	Required int64 // Amount the attempt tried to spend
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d, need %d", e.Balance, e.Required)
}

// CapExceededError is returned when a capped spend would exceed the daily
// ceiling. No state changes when it is returned.
type CapExceededError struct {
	Used  int64 // Usage already recorded for the day
	Limit int64 // Configured daily ceiling
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("daily cap exceeded: used %d of %d", e.Used, e.Limit)
}

// Remaining returns how much of the daily ceiling is still available.
func (e *CapExceededError) Remaining() int64 {
	return e.Limit - e.Used
}
