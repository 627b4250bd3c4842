package ledger

import (
	"errors"
	"fmt"
)

// ErrAccountNotFound is returned when a debit targets a user with no account
// row. Not retryable.
var ErrAccountNotFound = errors.New("account not found")

// InsufficientBalanceError is returned when a debit would overdraw the
// account. It carries the current balance and the required cost so callers
// can build an actionable message.
type InsufficientBalanceError struct {
	Balance  int64
	Required int64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %d tokens, need %d", e.Balance, e.Required)
}

// IsInsufficientBalance reports whether err is an InsufficientBalanceError.
func IsInsufficientBalance(err error) bool {
	var ib *InsufficientBalanceError
	return errors.As(err, &ib)
}
