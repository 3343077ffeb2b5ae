package calculator

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeReceiptTotals(t *testing.T) {
	ab := []Participant{{ID: "A", Name: "Alice"}, {ID: "B", Name: "Bob"}}

	t.Run("discount reduces both participants", func(t *testing.T) {
		items := []LineItem{
			{ID: "pizza", Name: "Pizza", Quantity: 1, UnitPrice: 5000, TotalPrice: 5000},
			{ID: "promo", Name: "Promo", Quantity: 1, UnitPrice: -1000, TotalPrice: -1000, Kind: KindDiscount},
		}
		assignments := map[string]Assignment{
			"pizza": EqualSplit("A", "B"),
			"promo": EqualSplit("A", "B"),
		}

		result, err := ComputeReceiptTotals(items, assignments, ab)
		require.NoError(t, err)
		assert.Equal(t, int64(4000), result.GrandTotal)
		assert.Equal(t, int64(2000), result.TotalFor("A"))
		assert.Equal(t, int64(2000), result.TotalFor("B"))

		promo, ok := result.Item("promo")
		require.True(t, ok)
		assert.Equal(t, KindDiscount, promo.Kind)
		assert.Equal(t, int64(2), promo.Basis)
		assert.Equal(t, []Share{
			{ParticipantID: "A", Amount: -500, Units: 1},
			{ParticipantID: "B", Amount: -500, Units: 1},
		}, promo.Shares)
	})

	t.Run("participants keep input order and include zero totals", func(t *testing.T) {
		participants := []Participant{{ID: "z", Name: "Zed"}, {ID: "a", Name: "Ann"}, {ID: "m", Name: "Max"}}
		items := []LineItem{{ID: "tea", Quantity: 2, UnitPrice: 300, TotalPrice: 600}}
		assignments := map[string]Assignment{"tea": CountSplit(map[string]int64{"z": 1, "a": 1})}

		result, err := ComputeReceiptTotals(items, assignments, participants)
		require.NoError(t, err)
		assert.Equal(t, []ParticipantTotal{
			{ParticipantID: "z", Name: "Zed", Amount: 300},
			{ParticipantID: "a", Name: "Ann", Amount: 300},
			{ParticipantID: "m", Name: "Max", Amount: 0},
		}, result.Participants)

		tea, ok := result.Item("tea")
		require.True(t, ok)
		assert.Equal(t, SplitCount, tea.Mode)
		assert.Equal(t, int64(2), tea.Basis)
		assert.Equal(t, "a", tea.Shares[0].ParticipantID)
	})

	t.Run("empty receipt", func(t *testing.T) {
		result, err := ComputeReceiptTotals(nil, nil, ab)
		require.NoError(t, err)
		assert.Zero(t, result.GrandTotal)
		assert.Len(t, result.Participants, 2)
		assert.Empty(t, result.Items)
	})

	t.Run("missing assignment on a priced item", func(t *testing.T) {
		items := []LineItem{{ID: "soup", Quantity: 1, UnitPrice: 700, TotalPrice: 700}}
		_, err := ComputeReceiptTotals(items, nil, ab)
		assert.ErrorIs(t, err, ErrEmptyAssignment)
	})

	t.Run("duplicate item id", func(t *testing.T) {
		items := []LineItem{
			{ID: "x", Quantity: 1, UnitPrice: 1, TotalPrice: 1},
			{ID: "x", Quantity: 1, UnitPrice: 2, TotalPrice: 2},
		}
		assignments := map[string]Assignment{"x": EqualSplit("A")}
		_, err := ComputeReceiptTotals(items, assignments, ab)
		assert.ErrorIs(t, err, ErrInvalidItem)
	})

	t.Run("grand total overflow", func(t *testing.T) {
		items := []LineItem{
			{ID: "x", Quantity: 1, UnitPrice: math.MaxInt64, TotalPrice: math.MaxInt64},
			{ID: "y", Quantity: 1, UnitPrice: 1, TotalPrice: 1},
		}
		assignments := map[string]Assignment{"x": EqualSplit("A"), "y": EqualSplit("B")}
		_, err := ComputeReceiptTotals(items, assignments, ab)
		assert.ErrorIs(t, err, ErrAmountOverflow)
	})

	t.Run("unknown participant is never ignored", func(t *testing.T) {
		items := []LineItem{{ID: "x", Quantity: 1, UnitPrice: 10, TotalPrice: 10}}
		assignments := map[string]Assignment{"x": EqualSplit("A", "ghost")}
		_, err := ComputeReceiptTotals(items, assignments, ab)
		assert.ErrorIs(t, err, ErrInvalidAssignment)
	})
}

func randomReceipt(rng *rand.Rand) ([]LineItem, map[string]Assignment, []Participant) {
	participants := make([]Participant, 1+rng.Intn(6))
	for i := range participants {
		participants[i] = Participant{ID: fmt.Sprintf("p%02d", rng.Intn(1000)*10+i), Name: fmt.Sprintf("P%d", i)}
	}

	items := make([]LineItem, rng.Intn(12))
	assignments := make(map[string]Assignment, len(items))
	for i := range items {
		qty := 1 + rng.Int63n(5)
		unit := rng.Int63n(100_000)
		kind := KindItem
		if rng.Intn(5) == 0 {
			unit = -unit
			kind = KindDiscount
		}
		items[i] = LineItem{
			ID:         fmt.Sprintf("item-%d", i),
			Quantity:   qty,
			UnitPrice:  unit,
			TotalPrice: unit * qty,
			Kind:       kind,
		}

		if rng.Intn(2) == 0 {
			var ids []string
			for _, p := range participants {
				if rng.Intn(2) == 0 {
					ids = append(ids, p.ID)
				}
			}
			if len(ids) == 0 {
				ids = append(ids, participants[0].ID)
			}
			assignments[items[i].ID] = EqualSplit(ids...)
			continue
		}
		counts := map[string]int64{participants[0].ID: 1}
		for _, p := range participants[1:] {
			counts[p.ID] = rng.Int63n(qty + 1)
		}
		assignments[items[i].ID] = CountSplit(counts)
	}
	return items, assignments, participants
}

func TestComputeReceiptTotalsReconciles(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for n := 0; n < 300; n++ {
		items, assignments, participants := randomReceipt(rng)

		result, err := ComputeReceiptTotals(items, assignments, participants)
		require.NoError(t, err)
		require.NoError(t, result.Reconcile())

		var itemsSum, participantsSum int64
		for _, it := range items {
			itemsSum += it.TotalPrice
		}
		for _, p := range result.Participants {
			participantsSum += p.Amount
		}
		require.Equal(t, itemsSum, result.GrandTotal)
		require.Equal(t, participantsSum, result.GrandTotal)
	}
}

func TestComputeReceiptTotalsIsByteIdentical(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	items, assignments, participants := randomReceipt(rng)

	first, err := ComputeReceiptTotals(items, assignments, participants)
	require.NoError(t, err)
	want, err := json.Marshal(first)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := ComputeReceiptTotals(items, assignments, participants)
		require.NoError(t, err)
		got, err := json.Marshal(again)
		require.NoError(t, err)
		require.Equal(t, string(want), string(got))
	}
}

func TestReconcileDetectsTampering(t *testing.T) {
	result := &AllocationResult{
		Items: []ItemAllocation{{
			ItemID: "x",
			Total:  100,
			Shares: []Share{{ParticipantID: "A", Amount: 60}, {ParticipantID: "B", Amount: 40}},
		}},
		Participants: []ParticipantTotal{{ParticipantID: "A", Amount: 60}, {ParticipantID: "B", Amount: 40}},
		GrandTotal:   100,
	}
	require.NoError(t, result.Reconcile())

	shares := result.Clone()
	shares.Items[0].Shares[0].Amount = 61
	assert.ErrorIs(t, shares.Reconcile(), ErrReconciliationFailure)

	totals := result.Clone()
	totals.Participants[1].Amount = 39
	assert.ErrorIs(t, totals.Reconcile(), ErrReconciliationFailure)
	assert.Equal(t, KindReconciliation, ErrorKind(totals.Reconcile()))

	// Clone must not share backing arrays.
	assert.Equal(t, int64(60), result.Items[0].Shares[0].Amount)
	assert.Equal(t, int64(40), result.Participants[1].Amount)
}
