package calculator

import "fmt"

// ComputeReceiptTotals allocates every item of a receipt and aggregates the
// per-participant totals and the grand total.
//
// Assignments are keyed by item ID; an item without an assignment is treated
// as an empty split. Items are reported in input order, participants in the
// order they were supplied. The result is checked against the reconciliation
// invariant before it is returned.
func ComputeReceiptTotals(items []LineItem, assignments map[string]Assignment, participants []Participant) (*AllocationResult, error) {
	const op = "calculator.compute_receipt"

	set, err := newParticipantSet(participants)
	if err != nil {
		return nil, err
	}

	owed := make(map[string]int64, len(participants))
	seen := make(map[string]bool, len(items))
	result := &AllocationResult{
		Items:        make([]ItemAllocation, 0, len(items)),
		Participants: make([]ParticipantTotal, 0, len(participants)),
	}

	for _, item := range items {
		if seen[item.ID] {
			return nil, itemError(op, item.ID, ErrInvalidItem, "duplicate item id")
		}
		seen[item.ID] = true

		alloc, err := allocateItem(item, assignments[item.ID], set)
		if err != nil {
			return nil, err
		}

		var ok bool
		if result.GrandTotal, ok = addChecked(result.GrandTotal, alloc.Total); !ok {
			return nil, itemError(op, item.ID, ErrAmountOverflow, "grand total")
		}
		for _, s := range alloc.Shares {
			if owed[s.ParticipantID], ok = addChecked(owed[s.ParticipantID], s.Amount); !ok {
				return nil, participantError(op, item.ID, s.ParticipantID, ErrAmountOverflow, "participant total")
			}
		}
		result.Items = append(result.Items, alloc)
	}

	for _, p := range participants {
		result.Participants = append(result.Participants, ParticipantTotal{
			ParticipantID: p.ID,
			Name:          p.Name,
			Amount:        owed[p.ID],
		})
	}

	if err := result.Reconcile(); err != nil {
		return nil, fmt.Errorf("allocation of %d items: %w", len(items), err)
	}
	return result, nil
}
