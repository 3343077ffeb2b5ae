package calculator

import "sort"

// BillForBalance is a finalized session with the minimal information needed
// for balance calculations.
type BillForBalance struct {
	PayerID    string
	GrandTotal int64
	Owed       []ParticipantTotal
}

// MemberBalance is the balance of one group member, in minor units.
type MemberBalance struct {
	MemberID   string
	NetBalance int64 // Positive = owed money, Negative = owes money
	TotalPaid  int64
	TotalOwed  int64
}

// DebtEdge is a debt from one member to another.
type DebtEdge struct {
	From   string // Member who owes
	To     string // Member who is owed
	Amount int64
}

// SettlementForBalance is a settlement with the minimal information needed
// for balance calculations.
type SettlementForBalance struct {
	FromID string // Debtor settling up
	ToID   string // Creditor being paid
	Amount int64
}

// CalculateGroupBalances aggregates who paid and who owes across bills and
// settlements, and simplifies the result into a list of debts.
//
// Algorithm:
// - For each bill: payer contributed +grand total, each participant owes their share
// - For each settlement: debtor's paid amount grows, creditor's owed amount grows
// - net_balance = total_paid - total_owed
// - Debts: greedy matching of the largest debtor with the largest creditor
//
// Balances are ordered by member ID, debts by the order they were matched.
// Bills without a payer are skipped.
func CalculateGroupBalances(bills []BillForBalance, settlements []SettlementForBalance) ([]MemberBalance, []DebtEdge) {
	balances := make(map[string]*MemberBalance)
	member := func(id string) *MemberBalance {
		b, ok := balances[id]
		if !ok {
			b = &MemberBalance{MemberID: id}
			balances[id] = b
		}
		return b
	}

	for _, bill := range bills {
		if bill.PayerID == "" {
			continue
		}
		member(bill.PayerID).TotalPaid += bill.GrandTotal
		for _, p := range bill.Owed {
			member(p.ParticipantID).TotalOwed += p.Amount
		}
	}

	for _, s := range settlements {
		member(s.FromID).TotalPaid += s.Amount
		member(s.ToID).TotalOwed += s.Amount
	}

	memberBalances := make([]MemberBalance, 0, len(balances))
	for _, bal := range balances {
		bal.NetBalance = bal.TotalPaid - bal.TotalOwed
		memberBalances = append(memberBalances, *bal)
	}
	sort.Slice(memberBalances, func(i, j int) bool {
		return memberBalances[i].MemberID < memberBalances[j].MemberID
	})

	return memberBalances, simplifyDebts(memberBalances)
}

type ledgerEntry struct {
	id     string
	amount int64
}

func simplifyDebts(balances []MemberBalance) []DebtEdge {
	var debtors, creditors []ledgerEntry
	for _, b := range balances {
		switch {
		case b.NetBalance > 0:
			creditors = append(creditors, ledgerEntry{id: b.MemberID, amount: b.NetBalance})
		case b.NetBalance < 0:
			debtors = append(debtors, ledgerEntry{id: b.MemberID, amount: -b.NetBalance})
		}
	}
	byAmount := func(entries []ledgerEntry) func(i, j int) bool {
		return func(i, j int) bool {
			if entries[i].amount != entries[j].amount {
				return entries[i].amount > entries[j].amount
			}
			return entries[i].id < entries[j].id
		}
	}
	sort.Slice(debtors, byAmount(debtors))
	sort.Slice(creditors, byAmount(creditors))

	var edges []DebtEdge
	i, j := 0, 0
	for i < len(debtors) && j < len(creditors) {
		amount := min(debtors[i].amount, creditors[j].amount)
		edges = append(edges, DebtEdge{From: debtors[i].id, To: creditors[j].id, Amount: amount})

		debtors[i].amount -= amount
		creditors[j].amount -= amount
		if debtors[i].amount == 0 {
			i++
		}
		if creditors[j].amount == 0 {
			j++
		}
	}
	return edges
}
