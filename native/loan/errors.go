package loan

import (
	"errors"
	"fmt"
)

// Sentinel error kinds surfaced by the lifecycle engine. Callers are expected
// to match with errors.Is; every failure aborts the whole operation with no
// partial mutation.
var (
	ErrUnauthorized          = errors.New("loan engine: caller lacks the required role")
	ErrInvalidState          = errors.New("loan engine: operation not valid in current state")
	ErrNotFound              = errors.New("loan engine: loan not found")
	ErrInsufficientValue     = errors.New("loan engine: attached value does not meet the required amount")
	ErrDuplicateConfirmation = errors.New("loan engine: validator already confirmed this loan")
	ErrAlreadyReleased       = errors.New("loan engine: escrow already released")
	ErrDeadlineNotReached    = errors.New("loan engine: loan term has not elapsed")
	ErrZeroAmount            = errors.New("loan engine: amount must be positive")
)

var (
	errNilState            = errors.New("loan engine: state not configured")
	errInsufficientBalance = fmt.Errorf("loan engine: insufficient account balance: %w", ErrInsufficientValue)
	errReentrantCall       = fmt.Errorf("loan engine: loan operation already in progress: %w", ErrInvalidState)
)
