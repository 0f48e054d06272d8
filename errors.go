package escrow

import (
	"errors"
	"fmt"
)

// Rejections. Every failed public operation wraps exactly one of these and
// leaves no visible change behind.
var (
	ErrInsufficientFunds = errors.New("escrow: insufficient funds")
	ErrUnauthorized      = errors.New("escrow: unauthorized")
	ErrInvalidState      = errors.New("escrow: invalid voucher state")
	ErrUnknownVoucher    = errors.New("escrow: unknown voucher")
	ErrInvalidArgument   = errors.New("escrow: invalid argument")
)

var (
	// Engine errors
	ErrNotStarted     = errors.New("escrow: engine not started")
	ErrAlreadyStarted = errors.New("escrow: engine already started")
	ErrCorruptJournal = errors.New("escrow: journal failed verification")
	ErrCodeExhausted  = errors.New("escrow: could not generate a fresh voucher code")

	// Store errors
	ErrStoreFailed = errors.New("escrow: store write failed")
	ErrStoreClosed = errors.New("escrow: store is closed")
)

// IndexError attaches the batch position of the offending element.
type IndexError struct {
	Index int
	Err   error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

func atIndex(i int, err error) error {
	return &IndexError{Index: i, Err: err}
}

// IsNotFound reports whether err names a voucher code the engine never minted.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrUnknownVoucher)
}

// IsRejection reports whether err is a typed rejection of a public operation,
// as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrUnknownVoucher) ||
		errors.Is(err, ErrInvalidArgument)
}
