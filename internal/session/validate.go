package session

import (
	"errors"
	"fmt"

	"github.com/mmynk/tabsplit/internal/calculator"
)

// ErrUnclaimedUnits marks a count split whose claims do not cover the item's
// quantity. It always travels together with calculator.ErrEmptyAssignment.
var ErrUnclaimedUnits = errors.New("unclaimed units")

// ErrStaleAssignment marks an item whose split lost a participant that was
// removed from the session. It always travels together with
// calculator.ErrInvalidAssignment.
var ErrStaleAssignment = errors.New("split references a removed participant")

// Policy tunes what Validate accepts.
type Policy struct {
	// RequireFullClaims rejects count splits whose claimed units differ from
	// the item quantity.
	RequireFullClaims bool
}

// DefaultPolicy requires every unit of a count split to be claimed.
func DefaultPolicy() Policy {
	return Policy{RequireFullClaims: true}
}

// Issue is one problem found while validating a draft.
type Issue struct {
	ItemID        string
	ParticipantID string
	Err           error
}

func (i *Issue) Error() string {
	switch {
	case i.ItemID != "" && i.ParticipantID != "":
		return fmt.Sprintf("item %q, participant %q: %v", i.ItemID, i.ParticipantID, i.Err)
	case i.ItemID != "":
		return fmt.Sprintf("item %q: %v", i.ItemID, i.Err)
	case i.ParticipantID != "":
		return fmt.Sprintf("participant %q: %v", i.ParticipantID, i.Err)
	default:
		return i.Err.Error()
	}
}

func (i *Issue) Unwrap() error { return i.Err }

// Kind returns the calculator error kind of the issue.
func (i *Issue) Kind() string {
	if errors.Is(i.Err, ErrUnknownItem) {
		return calculator.KindInvalidItem
	}
	return calculator.ErrorKind(i.Err)
}

func issueFrom(err error) *Issue {
	var allocErr *calculator.AllocationError
	if !errors.As(err, &allocErr) {
		return &Issue{Err: err}
	}
	issue := &Issue{ItemID: allocErr.ItemID, ParticipantID: allocErr.ParticipantID, Err: allocErr.Err}
	if allocErr.Detail != "" {
		issue.Err = fmt.Errorf("%w: %s", allocErr.Err, allocErr.Detail)
	}
	return issue
}

// Issues flattens the error returned by Validate into its individual issues.
func Issues(err error) []*Issue {
	var out []*Issue
	var walk func(error)
	walk = func(err error) {
		switch e := err.(type) {
		case nil:
		case *Issue:
			out = append(out, e)
		case interface{ Unwrap() []error }:
			for _, inner := range e.Unwrap() {
				walk(inner)
			}
		default:
			if inner := errors.Unwrap(err); inner != nil {
				walk(inner)
			}
		}
	}
	walk(err)
	return out
}

// Validate checks the draft and, if it passes, computes its allocation. All
// issues are reported together; use Issues to inspect them.
func (d Draft) Validate(policy Policy) (Valid, error) {
	var issues []error

	participants := make(map[string]bool, len(d.participants))
	for _, p := range d.participants {
		switch {
		case p.ID == "":
			issues = append(issues, &Issue{Err: fmt.Errorf("%w: id is required", calculator.ErrInvalidParticipant)})
		case participants[p.ID]:
			issues = append(issues, &Issue{ParticipantID: p.ID, Err: fmt.Errorf("%w: duplicate id", calculator.ErrInvalidParticipant)})
		}
		participants[p.ID] = true
	}
	if len(issues) > 0 {
		return Valid{}, errors.Join(issues...)
	}

	seen := make(map[string]bool, len(d.items))
	for _, item := range d.items {
		if seen[item.ID] {
			issues = append(issues, &Issue{ItemID: item.ID, Err: fmt.Errorf("%w: duplicate item id", calculator.ErrInvalidItem)})
			continue
		}
		seen[item.ID] = true

		if err := item.Validate(); err != nil {
			issues = append(issues, issueFrom(err))
			continue
		}
		// The split must be confirmed again before it can be finalized.
		if d.stale[item.ID] {
			issues = append(issues, &Issue{ItemID: item.ID, Err: fmt.Errorf("%w: %w",
				calculator.ErrInvalidAssignment, ErrStaleAssignment)})
			continue
		}

		a := d.assignments[item.ID]
		if _, err := calculator.ComputeItemShares(item, a, d.participants); err != nil {
			issues = append(issues, issueFrom(err))
			continue
		}
		if issue := checkClaims(item, a, policy); issue != nil {
			issues = append(issues, issue)
		}
	}
	if len(issues) > 0 {
		return Valid{}, errors.Join(issues...)
	}

	result, err := d.Compute()
	if err != nil {
		return Valid{}, fmt.Errorf("failed to compute validated draft: %w", err)
	}
	return Valid{
		draft:  d.clone(),
		result: result,
		digest: calculator.InputDigest(d.items, d.assignments, d.participants),
	}, nil
}

func checkClaims(item calculator.LineItem, a calculator.Assignment, policy Policy) *Issue {
	if !policy.RequireFullClaims || a.Mode != calculator.SplitCount || item.TotalPrice == 0 {
		return nil
	}
	claimed := a.ClaimedUnits()
	switch {
	case claimed < item.Quantity:
		return &Issue{ItemID: item.ID, Err: fmt.Errorf("%w: %w: %d of %d units claimed",
			calculator.ErrEmptyAssignment, ErrUnclaimedUnits, claimed, item.Quantity)}
	case claimed > item.Quantity:
		return &Issue{ItemID: item.ID, Err: fmt.Errorf("%w: %d units claimed, quantity is %d",
			calculator.ErrInvalidAssignment, claimed, item.Quantity)}
	}
	return nil
}
