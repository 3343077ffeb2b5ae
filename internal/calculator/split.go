package calculator

import (
	"fmt"
	"sort"
)

// ComputeItemShares divides one item's total among the participants named by
// its assignment. The returned shares sum exactly to item.TotalPrice.
//
// Equal splits hand out |total| / n to everyone and the remaining units one
// at a time in ascending participant ID order. Count splits use the
// largest-remainder method: floor shares first, then leftover units by
// descending fractional remainder, ties broken by ascending participant ID.
// Negative totals are split on their magnitude and negated.
func ComputeItemShares(item LineItem, assignment Assignment, participants []Participant) (Shares, error) {
	set, err := newParticipantSet(participants)
	if err != nil {
		return nil, err
	}
	alloc, err := allocateItem(item, assignment, set)
	if err != nil {
		return nil, err
	}

	shares := make(Shares, len(alloc.Shares))
	for _, s := range alloc.Shares {
		shares[s.ParticipantID] = s.Amount
	}
	return shares, nil
}

// allocateItem computes the full allocation record for one item against an
// already validated participant set.
func allocateItem(item LineItem, assignment Assignment, set participantSet) (ItemAllocation, error) {
	if err := item.checkTotal(); err != nil {
		return ItemAllocation{}, err
	}

	alloc := ItemAllocation{
		ItemID: item.ID,
		Name:   item.Name,
		Kind:   item.EffectiveKind(),
		Mode:   assignment.Mode,
		Total:  item.TotalPrice,
	}

	var (
		shares []Share
		basis  int64
		err    error
	)
	switch assignment.Mode {
	case SplitEqual:
		shares, basis, err = splitEqual(item, assignment.Participants, set)
	case SplitCount:
		shares, basis, err = splitCount(item, assignment.Counts, set)
	case "":
		// An item nobody touched is an empty split.
		alloc.Mode = SplitEqual
		shares, basis, err = splitEqual(item, nil, set)
	default:
		return ItemAllocation{}, itemError("calculator.compute_item", item.ID, ErrInvalidAssignment,
			fmt.Sprintf("unknown split mode %q", assignment.Mode))
	}
	if err != nil {
		return ItemAllocation{}, err
	}

	alloc.Basis = basis
	alloc.Shares = shares
	return alloc, nil
}

func splitEqual(item LineItem, ids []string, set participantSet) ([]Share, int64, error) {
	const op = "calculator.split_equal"

	ordered := uniqueSorted(ids)
	for _, id := range ordered {
		if _, ok := set[id]; !ok {
			return nil, 0, participantError(op, item.ID, id, ErrInvalidAssignment, "unknown participant")
		}
	}

	n := len(ordered)
	if n == 0 {
		if item.TotalPrice != 0 {
			return nil, 0, itemError(op, item.ID, ErrEmptyAssignment, "no participants to split between")
		}
		return []Share{}, 0, nil
	}

	sign, abs := magnitude(item.TotalPrice)
	base := abs / uint64(n)
	remainder := abs % uint64(n)

	shares := make([]Share, n)
	for i, id := range ordered {
		amount := base
		if uint64(i) < remainder {
			amount++
		}
		shares[i] = Share{ParticipantID: id, Amount: sign * int64(amount), Units: 1}
	}
	return shares, int64(n), nil
}

type countClaim struct {
	id    string
	units int64
	quo   uint64
	rem   uint64
}

func splitCount(item LineItem, counts map[string]int64, set participantSet) ([]Share, int64, error) {
	const op = "calculator.split_count"

	claims := make([]countClaim, 0, len(counts))
	var total int64
	for id, units := range counts {
		if _, ok := set[id]; !ok {
			return nil, 0, participantError(op, item.ID, id, ErrInvalidAssignment, "unknown participant")
		}
		if units < 0 {
			return nil, 0, participantError(op, item.ID, id, ErrInvalidAssignment,
				fmt.Sprintf("negative unit count %d", units))
		}
		if units == 0 {
			continue
		}
		var ok bool
		if total, ok = addChecked(total, units); !ok {
			return nil, 0, itemError(op, item.ID, ErrAmountOverflow, "sum of unit counts")
		}
		claims = append(claims, countClaim{id: id, units: units})
	}

	if total == 0 {
		if item.TotalPrice != 0 {
			return nil, 0, itemError(op, item.ID, ErrEmptyAssignment, "no units claimed")
		}
		return []Share{}, 0, nil
	}

	sign, abs := magnitude(item.TotalPrice)
	var distributed uint64
	for i := range claims {
		claims[i].quo, claims[i].rem = mulDiv(abs, uint64(claims[i].units), uint64(total))
		distributed += claims[i].quo
	}

	// Fewer leftover units than claimants, so each gets at most one.
	leftover := abs - distributed
	sort.Slice(claims, func(i, j int) bool {
		if claims[i].rem != claims[j].rem {
			return claims[i].rem > claims[j].rem
		}
		return claims[i].id < claims[j].id
	})
	for i := uint64(0); i < leftover; i++ {
		claims[i].quo++
	}

	sort.Slice(claims, func(i, j int) bool { return claims[i].id < claims[j].id })
	shares := make([]Share, len(claims))
	for i, c := range claims {
		shares[i] = Share{ParticipantID: c.id, Amount: sign * int64(c.quo), Units: c.units}
	}
	return shares, total, nil
}
