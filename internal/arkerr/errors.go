// Package arkerr defines the typed error kinds shared across the engine,
// per the error handling design: every kind except ConservationViolation is
// recoverable and returned to the caller; ConservationViolation is fatal
// and drives engine shutdown (see internal/risk).
package arkerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap with fmt.Errorf("...: %w", Kind) at the raise
// site and match with errors.Is at the caller.
var (
	ErrNotFound              = errors.New("not found")
	ErrIllegalTransition     = errors.New("illegal state transition")
	ErrInconsistentFill      = errors.New("inconsistent fill")
	ErrCurrencyMismatch      = errors.New("currency mismatch")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrSameAccount           = errors.New("debit and credit account are the same")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrConservationViolation = errors.New("conservation violation")
	ErrBusClosed             = errors.New("bus closed")
	ErrTimeout               = errors.New("timeout")
)

// IllegalTransition reports an order-book transition that the state table
// does not allow. The order is left unchanged and no event is emitted.
func IllegalTransition(from, to, orderID string) error {
	return fmt.Errorf("%w: order %s: %s -> %s", ErrIllegalTransition, orderID, from, to)
}

// InconsistentFill reports a fill update whose cumulative filled quantity
// regressed relative to the previously recorded value.
func InconsistentFill(orderID string, prev, next string) error {
	return fmt.Errorf("%w: order %s: filled_quantity %s -> %s", ErrInconsistentFill, orderID, prev, next)
}

// CurrencyMismatch reports a transfer whose debit/credit accounts or
// declared asset disagree on currency.
func CurrencyMismatch(transferID string) error {
	return fmt.Errorf("%w: transfer %s", ErrCurrencyMismatch, transferID)
}

// InsufficientBalance reports a user-account debit that would overdraft.
func InsufficientBalance(accountID string, balance, amount string) error {
	return fmt.Errorf("%w: account %s: balance %s < amount %s", ErrInsufficientBalance, accountID, balance, amount)
}

// SameAccount reports a transfer whose debit and credit accounts match.
func SameAccount(accountID string) error {
	return fmt.Errorf("%w: account %s", ErrSameAccount, accountID)
}

// InvalidAmount reports a non-positive amount at an API boundary.
func InvalidAmount(amount string) error {
	return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
}

// ConservationViolation reports that the sum of signed balances for an
// asset no longer nets to the expected value. Callers must treat
// this as fatal: flush persistence and shut the engine down.
func ConservationViolation(assetSymbol string, expected, actual string) error {
	return fmt.Errorf("%w: asset %s: expected %s, got %s", ErrConservationViolation, assetSymbol, expected, actual)
}

// BusClosed reports a publish attempt after the bus has shut down.
func BusClosed() error {
	return fmt.Errorf("%w", ErrBusClosed)
}

// Timeout reports a bounded wait that expired before completion.
func Timeout(op string) error {
	return fmt.Errorf("%w: %s", ErrTimeout, op)
}
