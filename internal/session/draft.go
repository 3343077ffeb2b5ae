// Package session models a split session as an explicit state machine:
// an editable Draft, a validated Valid, and an immutable Finalized record.
package session

import (
	"errors"
	"sort"

	"github.com/mmynk/tabsplit/internal/calculator"
)

// ErrUnknownItem is returned when an edit targets an item that is not on the
// receipt.
var ErrUnknownItem = errors.New("unknown item")

// Draft is an editable split session. It is a value: every edit returns a new
// Draft and leaves the receiver untouched, so a Draft can be shared freely.
type Draft struct {
	items        []calculator.LineItem
	participants []calculator.Participant
	assignments  map[string]calculator.Assignment
	stale        map[string]bool
}

// NewDraft starts a session for a parsed receipt. Every item starts with an
// empty assignment in its default mode: count for multi-unit items, equal
// otherwise.
func NewDraft(items []calculator.LineItem, participants []calculator.Participant) Draft {
	d := Draft{
		items:        append([]calculator.LineItem(nil), items...),
		participants: append([]calculator.Participant(nil), participants...),
		assignments:  make(map[string]calculator.Assignment, len(items)),
		stale:        map[string]bool{},
	}
	for _, item := range items {
		d.assignments[item.ID] = calculator.Assignment{Mode: DefaultMode(item)}
	}
	return d
}

// DefaultMode is the split mode an item starts with.
func DefaultMode(item calculator.LineItem) calculator.SplitMode {
	if item.Quantity > 1 {
		return calculator.SplitCount
	}
	return calculator.SplitEqual
}

func (d Draft) clone() Draft {
	out := Draft{
		items:        d.items,
		participants: d.participants,
		assignments:  make(map[string]calculator.Assignment, len(d.assignments)),
		stale:        make(map[string]bool, len(d.stale)),
	}
	for id, a := range d.assignments {
		out.assignments[id] = a.Clone()
	}
	for id := range d.stale {
		out.stale[id] = true
	}
	return out
}

// Items returns a copy of the receipt's line items.
func (d Draft) Items() []calculator.LineItem {
	return append([]calculator.LineItem(nil), d.items...)
}

// Participants returns a copy of the participant set.
func (d Draft) Participants() []calculator.Participant {
	return append([]calculator.Participant(nil), d.participants...)
}

// Assignment returns the current assignment of an item.
func (d Draft) Assignment(itemID string) (calculator.Assignment, bool) {
	a, ok := d.assignments[itemID]
	if !ok {
		return calculator.Assignment{}, false
	}
	return a.Clone(), true
}

// Assignments returns a copy of every assignment keyed by item ID.
func (d Draft) Assignments() map[string]calculator.Assignment {
	out := make(map[string]calculator.Assignment, len(d.assignments))
	for id, a := range d.assignments {
		out[id] = a.Clone()
	}
	return out
}

// Stale returns the IDs of items whose assignment lost a participant since it
// was last edited, in ascending order.
func (d Draft) Stale() []string {
	ids := make([]string, 0, len(d.stale))
	for id := range d.stale {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (d Draft) hasItem(itemID string) bool {
	_, ok := d.assignments[itemID]
	return ok
}

func (d Draft) assign(itemID string, a calculator.Assignment) (Draft, error) {
	if !d.hasItem(itemID) {
		return d, &Issue{ItemID: itemID, Err: ErrUnknownItem}
	}
	out := d.clone()
	out.assignments[itemID] = a
	delete(out.stale, itemID)
	return out, nil
}

// AssignEqual splits an item equally among the given participants.
func (d Draft) AssignEqual(itemID string, participantIDs ...string) (Draft, error) {
	return d.assign(itemID, calculator.EqualSplit(participantIDs...))
}

// AssignEveryone splits an item equally among all participants.
func (d Draft) AssignEveryone(itemID string) (Draft, error) {
	ids := make([]string, len(d.participants))
	for i, p := range d.participants {
		ids[i] = p.ID
	}
	return d.assign(itemID, calculator.EqualSplit(ids...))
}

// AssignCounts splits an item by claimed units.
func (d Draft) AssignCounts(itemID string, counts map[string]int64) (Draft, error) {
	return d.assign(itemID, calculator.CountSplit(counts))
}

// SetCount sets one participant's claimed units on an item, switching it to
// a count split. Zero units removes the claim.
func (d Draft) SetCount(itemID, participantID string, units int64) (Draft, error) {
	current, ok := d.assignments[itemID]
	if !ok {
		return d, &Issue{ItemID: itemID, Err: ErrUnknownItem}
	}
	counts := map[string]int64{}
	if current.Mode == calculator.SplitCount {
		counts = current.Clone().Counts
		if counts == nil {
			counts = map[string]int64{}
		}
	}
	if units == 0 {
		delete(counts, participantID)
	} else {
		counts[participantID] = units
	}
	return d.assign(itemID, calculator.Assignment{Mode: calculator.SplitCount, Counts: counts})
}

// Unassign resets an item to an empty split in its default mode.
func (d Draft) Unassign(itemID string) (Draft, error) {
	for _, item := range d.items {
		if item.ID == itemID {
			return d.assign(itemID, calculator.Assignment{Mode: DefaultMode(item)})
		}
	}
	return d, &Issue{ItemID: itemID, Err: ErrUnknownItem}
}

// WithParticipants replaces the participant set. Removed participants are
// stripped from every assignment, and the items that referenced them are
// marked stale. Validate rejects stale items until they are assigned again.
func (d Draft) WithParticipants(participants []calculator.Participant) Draft {
	keep := make(map[string]bool, len(participants))
	for _, p := range participants {
		keep[p.ID] = true
	}

	out := d.clone()
	out.participants = append([]calculator.Participant(nil), participants...)
	for itemID, a := range out.assignments {
		changed := false
		switch a.Mode {
		case calculator.SplitCount:
			for id := range a.Counts {
				if !keep[id] {
					delete(a.Counts, id)
					changed = true
				}
			}
		default:
			ids := a.Participants[:0]
			for _, id := range a.Participants {
				if keep[id] {
					ids = append(ids, id)
				} else {
					changed = true
				}
			}
			a.Participants = ids
		}
		if changed {
			out.assignments[itemID] = a
			out.stale[itemID] = true
		}
	}
	return out
}

// Compute allocates the draft as it stands. Unlike Validate it accepts
// partial count claims, so it can back a live preview while editing.
func (d Draft) Compute() (*calculator.AllocationResult, error) {
	return calculator.ComputeReceiptTotals(d.items, d.assignments, d.participants)
}

// CacheKey fingerprints the draft's inputs for memoization.
func (d Draft) CacheKey() string {
	return calculator.CacheKey(d.items, d.assignments, d.participants)
}
