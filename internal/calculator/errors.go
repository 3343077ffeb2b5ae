package calculator

import (
	"errors"
	"fmt"
)

// Sentinel errors for allocation failures. Every error returned by this
// package wraps exactly one of them.
var (
	// ErrInvalidAssignment means an assignment names a participant outside the
	// current set, or carries a negative unit count.
	ErrInvalidAssignment = errors.New("invalid assignment")

	// ErrEmptyAssignment means an item has a non-zero total but no way to
	// distribute it (no participants, or zero claimed units).
	ErrEmptyAssignment = errors.New("empty assignment")

	// ErrReconciliationFailure means computed totals do not add up. It signals
	// a defect in the engine and is never expected in a correct build.
	ErrReconciliationFailure = errors.New("reconciliation failure")

	// ErrInvalidItem means a line item is malformed.
	ErrInvalidItem = errors.New("invalid line item")

	// ErrInvalidParticipant means the participant set is malformed.
	ErrInvalidParticipant = errors.New("invalid participant")

	// ErrAmountOverflow means an amount does not fit in int64.
	ErrAmountOverflow = errors.New("amount overflows int64")
)

// AllocationError wraps a sentinel error with the item and participant it
// concerns.
type AllocationError struct {
	Op            string
	ItemID        string
	ParticipantID string
	Detail        string
	Err           error
}

func (e *AllocationError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := fmt.Sprintf("%s: %v", e.Op, e.Err)
	if e.ItemID != "" {
		msg += fmt.Sprintf(" (item=%s", e.ItemID)
		if e.ParticipantID != "" {
			msg += fmt.Sprintf(", participant=%s", e.ParticipantID)
		}
		msg += ")"
	} else if e.ParticipantID != "" {
		msg += fmt.Sprintf(" (participant=%s)", e.ParticipantID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *AllocationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func itemError(op, itemID string, err error, detail string) error {
	return &AllocationError{Op: op, ItemID: itemID, Err: err, Detail: detail}
}

func participantError(op, itemID, participantID string, err error, detail string) error {
	return &AllocationError{Op: op, ItemID: itemID, ParticipantID: participantID, Err: err, Detail: detail}
}

// Error kinds are low-cardinality labels for metrics and RPC error mapping.
const (
	KindInvalidAssignment  = "invalid_assignment"
	KindEmptyAssignment    = "empty_assignment"
	KindReconciliation     = "reconciliation_failure"
	KindInvalidItem        = "invalid_item"
	KindInvalidParticipant = "invalid_participant"
	KindOverflow           = "overflow"
	KindUnknown            = "unknown"
)

// ErrorKind classifies err into one of the Kind* labels. It returns an empty
// string for a nil error.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReconciliationFailure):
		return KindReconciliation
	case errors.Is(err, ErrInvalidAssignment):
		return KindInvalidAssignment
	case errors.Is(err, ErrEmptyAssignment):
		return KindEmptyAssignment
	case errors.Is(err, ErrInvalidItem):
		return KindInvalidItem
	case errors.Is(err, ErrInvalidParticipant):
		return KindInvalidParticipant
	case errors.Is(err, ErrAmountOverflow):
		return KindOverflow
	default:
		return KindUnknown
	}
}
