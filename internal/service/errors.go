package service

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/money"
	"github.com/mmynk/tabsplit/internal/session"
	"github.com/mmynk/tabsplit/internal/storage"
)

// errorCode maps domain errors to Connect codes. Joined errors are checked
// in order of severity, so one reconciliation failure makes the whole call
// Internal.
func errorCode(err error) connect.Code {
	switch {
	case errors.Is(err, calculator.ErrReconciliationFailure):
		return connect.CodeInternal
	case errors.Is(err, storage.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, calculator.ErrInvalidAssignment),
		errors.Is(err, calculator.ErrInvalidItem),
		errors.Is(err, calculator.ErrInvalidParticipant),
		errors.Is(err, calculator.ErrAmountOverflow),
		errors.Is(err, session.ErrUnknownItem),
		errors.Is(err, money.ErrUnknownCurrency),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrPrecision),
		errors.Is(err, money.ErrOutOfRange),
		errors.Is(err, money.ErrCurrencyMismatch):
		return connect.CodeInvalidArgument
	case errors.Is(err, calculator.ErrEmptyAssignment):
		return connect.CodeFailedPrecondition
	default:
		return connect.CodeInternal
	}
}

func connectError(err error) *connect.Error {
	return connect.NewError(errorCode(err), err)
}
