package calculator

import (
	"fmt"
	"math"
	"sort"
)

// ItemKind tags a line item. Kinds outside the predefined ones are allowed
// and treated like KindItem.
type ItemKind string

const (
	KindItem     ItemKind = "item"
	KindFee      ItemKind = "fee"
	KindDiscount ItemKind = "discount"
)

// LineItem is one priced line of a parsed receipt. All prices are in minor
// currency units.
type LineItem struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	UnitPrice  int64    `json:"unitPrice"`
	Quantity   int64    `json:"quantity"`
	TotalPrice int64    `json:"totalPrice"`
	Kind       ItemKind `json:"kind,omitempty"`
}

// Validate checks the item's internal consistency: positive quantity and a
// total equal to unit price times quantity. Only discounts may be negative.
func (i LineItem) Validate() error {
	const op = "calculator.validate_item"

	if i.ID == "" {
		return itemError(op, i.ID, ErrInvalidItem, "id is required")
	}
	if i.Quantity <= 0 {
		return itemError(op, i.ID, ErrInvalidItem, fmt.Sprintf("quantity must be positive, got %d", i.Quantity))
	}
	if i.UnitPrice == math.MinInt64 || i.TotalPrice == math.MinInt64 {
		return itemError(op, i.ID, ErrAmountOverflow, "amount out of range")
	}
	if i.UnitPrice < 0 && i.Kind != KindDiscount {
		return itemError(op, i.ID, ErrInvalidItem, fmt.Sprintf("negative unit price %d on %q item", i.UnitPrice, i.EffectiveKind()))
	}
	total, ok := mulChecked(i.UnitPrice, i.Quantity)
	if !ok {
		return itemError(op, i.ID, ErrAmountOverflow, "unit price times quantity")
	}
	if total != i.TotalPrice {
		return itemError(op, i.ID, ErrInvalidItem,
			fmt.Sprintf("total price %d does not equal %d x %d", i.TotalPrice, i.UnitPrice, i.Quantity))
	}
	return nil
}

// checkTotal is the subset of Validate the allocation itself depends on. The
// unit price and quantity are not used when splitting, so a total that does
// not match them is left to Validate.
func (i LineItem) checkTotal() error {
	const op = "calculator.check_item"

	if i.ID == "" {
		return itemError(op, i.ID, ErrInvalidItem, "id is required")
	}
	if i.TotalPrice == math.MinInt64 {
		return itemError(op, i.ID, ErrAmountOverflow, "amount out of range")
	}
	if i.TotalPrice < 0 && i.Kind != KindDiscount {
		return itemError(op, i.ID, ErrInvalidItem, fmt.Sprintf("negative total %d on %q item", i.TotalPrice, i.EffectiveKind()))
	}
	return nil
}

// EffectiveKind returns the item kind, defaulting to KindItem.
func (i LineItem) EffectiveKind() ItemKind {
	if i.Kind == "" {
		return KindItem
	}
	return i.Kind
}

// Participant is one person taking part in a split session.
type Participant struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// participantSet indexes a participant list and rejects duplicates.
type participantSet map[string]Participant

func newParticipantSet(participants []Participant) (participantSet, error) {
	const op = "calculator.participants"

	set := make(participantSet, len(participants))
	for _, p := range participants {
		if p.ID == "" {
			return nil, participantError(op, "", p.ID, ErrInvalidParticipant, "id is required")
		}
		if _, dup := set[p.ID]; dup {
			return nil, participantError(op, "", p.ID, ErrInvalidParticipant, "duplicate id")
		}
		set[p.ID] = p
	}
	return set, nil
}

// SplitMode selects how an item's total is divided.
type SplitMode string

const (
	// SplitEqual divides the total evenly among a set of participants.
	SplitEqual SplitMode = "equal"
	// SplitCount divides the total in proportion to the units each
	// participant claimed.
	SplitCount SplitMode = "count"
)

// Assignment is the split rule for one line item. Participants is used by
// SplitEqual, Counts by SplitCount.
type Assignment struct {
	Mode         SplitMode        `json:"mode"`
	Participants []string         `json:"participants,omitempty"`
	Counts       map[string]int64 `json:"counts,omitempty"`
}

// EqualSplit builds an equal-share assignment.
func EqualSplit(participantIDs ...string) Assignment {
	ids := make([]string, len(participantIDs))
	copy(ids, participantIDs)
	return Assignment{Mode: SplitEqual, Participants: ids}
}

// CountSplit builds a count-share assignment.
func CountSplit(counts map[string]int64) Assignment {
	c := make(map[string]int64, len(counts))
	for id, n := range counts {
		c[id] = n
	}
	return Assignment{Mode: SplitCount, Counts: c}
}

// Clone returns a deep copy of the assignment.
func (a Assignment) Clone() Assignment {
	out := Assignment{Mode: a.Mode}
	if a.Participants != nil {
		out.Participants = append([]string(nil), a.Participants...)
	}
	if a.Counts != nil {
		out.Counts = make(map[string]int64, len(a.Counts))
		for id, n := range a.Counts {
			out.Counts[id] = n
		}
	}
	return out
}

// ParticipantIDs returns the distinct participant IDs referenced by the
// assignment in ascending order.
func (a Assignment) ParticipantIDs() []string {
	var ids []string
	switch a.Mode {
	case SplitCount:
		ids = make([]string, 0, len(a.Counts))
		for id := range a.Counts {
			ids = append(ids, id)
		}
		sort.Strings(ids)
	default:
		ids = uniqueSorted(a.Participants)
	}
	return ids
}

// ClaimedUnits returns the sum of counts for a count-share assignment, and
// zero for any other mode.
func (a Assignment) ClaimedUnits() int64 {
	if a.Mode != SplitCount {
		return 0
	}
	var sum int64
	for _, n := range a.Counts {
		sum += n
	}
	return sum
}

// IsEmpty reports whether the assignment names nobody.
func (a Assignment) IsEmpty() bool {
	switch a.Mode {
	case SplitCount:
		for _, n := range a.Counts {
			if n > 0 {
				return false
			}
		}
		return true
	default:
		return len(a.Participants) == 0
	}
}

func uniqueSorted(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Shares maps participant ID to the amount owed for a single item.
type Shares map[string]int64

// Sum returns the total of all shares.
func (s Shares) Sum() int64 {
	var sum int64
	for _, amount := range s {
		sum += amount
	}
	return sum
}

// Sorted returns the shares ordered by ascending participant ID.
func (s Shares) Sorted() []Share {
	out := make([]Share, 0, len(s))
	for id, amount := range s {
		out = append(out, Share{ParticipantID: id, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ParticipantID < out[j].ParticipantID })
	return out
}

// Share is one participant's portion of one item.
type Share struct {
	ParticipantID string `json:"participantId"`
	Amount        int64  `json:"amount"`
	// Units is the number of units claimed (count split) or 1 (equal split).
	Units int64 `json:"units"`
}

// ItemAllocation is the finalized breakdown of one item.
type ItemAllocation struct {
	ItemID string    `json:"itemId"`
	Name   string    `json:"name"`
	Kind   ItemKind  `json:"kind"`
	Mode   SplitMode `json:"mode"`
	Total  int64     `json:"total"`
	// Basis is the denominator of the split: the number of participants for
	// an equal split, the total claimed units for a count split.
	Basis  int64   `json:"basis"`
	Shares []Share `json:"shares"`
}

// ParticipantTotal is what one participant owes across the whole receipt.
type ParticipantTotal struct {
	ParticipantID string `json:"participantId"`
	Name          string `json:"name"`
	Amount        int64  `json:"amount"`
}

// AllocationResult is the complete, reconciled output for a receipt.
type AllocationResult struct {
	Items        []ItemAllocation   `json:"items"`
	Participants []ParticipantTotal `json:"participants"`
	GrandTotal   int64              `json:"grandTotal"`
}

// TotalFor returns the amount owed by a participant, or zero if unknown.
func (r *AllocationResult) TotalFor(participantID string) int64 {
	for _, p := range r.Participants {
		if p.ParticipantID == participantID {
			return p.Amount
		}
	}
	return 0
}

// Item returns the allocation for an item ID.
func (r *AllocationResult) Item(itemID string) (ItemAllocation, bool) {
	for _, it := range r.Items {
		if it.ItemID == itemID {
			return it, true
		}
	}
	return ItemAllocation{}, false
}

// Clone returns a deep copy of the result.
func (r *AllocationResult) Clone() *AllocationResult {
	if r == nil {
		return nil
	}
	out := &AllocationResult{
		Items:        make([]ItemAllocation, len(r.Items)),
		Participants: append([]ParticipantTotal(nil), r.Participants...),
		GrandTotal:   r.GrandTotal,
	}
	for i, it := range r.Items {
		it.Shares = append([]Share(nil), it.Shares...)
		out.Items[i] = it
	}
	return out
}

// Reconcile verifies the three-way invariant: every item's shares sum to its
// total, and the grand total equals both the sum of item totals and the sum
// of participant totals.
func (r *AllocationResult) Reconcile() error {
	const op = "calculator.reconcile"

	var itemsSum, participantsSum int64
	for _, it := range r.Items {
		var shareSum int64
		for _, s := range it.Shares {
			shareSum += s.Amount
		}
		if shareSum != it.Total {
			return itemError(op, it.ItemID, ErrReconciliationFailure,
				fmt.Sprintf("shares sum to %d, item total is %d", shareSum, it.Total))
		}
		itemsSum += it.Total
	}
	for _, p := range r.Participants {
		participantsSum += p.Amount
	}
	if itemsSum != r.GrandTotal || participantsSum != r.GrandTotal {
		return &AllocationError{
			Op:     op,
			Err:    ErrReconciliationFailure,
			Detail: fmt.Sprintf("grand total %d, items %d, participants %d", r.GrandTotal, itemsSum, participantsSum),
		}
	}
	return nil
}
