package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func owedEqually(ids []string, each int64) []ParticipantTotal {
	out := make([]ParticipantTotal, len(ids))
	for i, id := range ids {
		out[i] = ParticipantTotal{ParticipantID: id, Amount: each}
	}
	return out
}

func TestCalculateGroupBalances(t *testing.T) {
	tests := []struct {
		name         string
		bills        []BillForBalance
		settlements  []SettlementForBalance
		wantBalances []MemberBalance
		wantDebts    []DebtEdge
	}{
		{
			name: "one payer three participants",
			bills: []BillForBalance{
				{PayerID: "A", GrandTotal: 3000, Owed: owedEqually([]string{"A", "B", "C"}, 1000)},
			},
			wantBalances: []MemberBalance{
				{MemberID: "A", NetBalance: 2000, TotalPaid: 3000, TotalOwed: 1000},
				{MemberID: "B", NetBalance: -1000, TotalOwed: 1000},
				{MemberID: "C", NetBalance: -1000, TotalOwed: 1000},
			},
			wantDebts: []DebtEdge{
				{From: "B", To: "A", Amount: 1000},
				{From: "C", To: "A", Amount: 1000},
			},
		},
		{
			name: "settlement clears a debt",
			bills: []BillForBalance{
				{PayerID: "A", GrandTotal: 3000, Owed: owedEqually([]string{"A", "B", "C"}, 1000)},
			},
			settlements: []SettlementForBalance{{FromID: "B", ToID: "A", Amount: 1000}},
			wantBalances: []MemberBalance{
				{MemberID: "A", NetBalance: 1000, TotalPaid: 3000, TotalOwed: 2000},
				{MemberID: "B", NetBalance: 0, TotalPaid: 1000, TotalOwed: 1000},
				{MemberID: "C", NetBalance: -1000, TotalOwed: 1000},
			},
			wantDebts: []DebtEdge{{From: "C", To: "A", Amount: 1000}},
		},
		{
			name: "cross payments are netted",
			bills: []BillForBalance{
				{PayerID: "A", GrandTotal: 1000, Owed: owedEqually([]string{"A", "B"}, 500)},
				{PayerID: "B", GrandTotal: 600, Owed: owedEqually([]string{"A", "B"}, 300)},
			},
			wantBalances: []MemberBalance{
				{MemberID: "A", NetBalance: 200, TotalPaid: 1000, TotalOwed: 800},
				{MemberID: "B", NetBalance: -200, TotalPaid: 600, TotalOwed: 800},
			},
			wantDebts: []DebtEdge{{From: "B", To: "A", Amount: 200}},
		},
		{
			name: "bill without payer is skipped",
			bills: []BillForBalance{
				{GrandTotal: 500, Owed: owedEqually([]string{"A"}, 500)},
			},
			wantBalances: []MemberBalance{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balances, debts := CalculateGroupBalances(tt.bills, tt.settlements)
			assert.Equal(t, tt.wantBalances, balances)
			assert.Equal(t, tt.wantDebts, debts)

			var net int64
			for _, b := range balances {
				net += b.NetBalance
			}
			assert.Zero(t, net)
		})
	}
}
