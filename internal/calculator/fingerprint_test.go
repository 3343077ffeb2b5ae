package calculator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprints(t *testing.T) {
	items := []LineItem{
		{ID: "pizza", Name: "Pizza", Quantity: 2, UnitPrice: 2500, TotalPrice: 5000},
		{ID: "promo", Name: "Promo", Quantity: 1, UnitPrice: -1000, TotalPrice: -1000, Kind: KindDiscount},
	}
	assignments := map[string]Assignment{
		"pizza": CountSplit(map[string]int64{"A": 1, "B": 1}),
		"promo": EqualSplit("B", "A"),
	}

	key := CacheKey(items, assignments, abc)
	digest := InputDigest(items, assignments, abc)
	require.NotEmpty(t, key)
	assert.Len(t, digest, 64)

	t.Run("stable across calls", func(t *testing.T) {
		for i := 0; i < 20; i++ {
			assert.Equal(t, key, CacheKey(items, assignments, abc))
			assert.Equal(t, digest, InputDigest(items, assignments, abc))
		}
	})

	t.Run("participant order inside an equal split is irrelevant", func(t *testing.T) {
		reordered := map[string]Assignment{
			"pizza": CountSplit(map[string]int64{"B": 1, "A": 1}),
			"promo": EqualSplit("A", "B", "A"),
		}
		assert.Equal(t, key, CacheKey(items, reordered, abc))
		assert.Equal(t, digest, InputDigest(items, reordered, abc))
	})

	t.Run("assignment change alters both", func(t *testing.T) {
		changed := map[string]Assignment{
			"pizza": CountSplit(map[string]int64{"A": 2}),
			"promo": EqualSplit("B", "A"),
		}
		assert.NotEqual(t, key, CacheKey(items, changed, abc))
		assert.NotEqual(t, digest, InputDigest(items, changed, abc))
	})

	t.Run("participant names are part of the input", func(t *testing.T) {
		renamed := []Participant{{ID: "A", Name: "Alicia"}, abc[1], abc[2]}
		assert.NotEqual(t, digest, InputDigest(items, assignments, renamed))
	})

	t.Run("negative and positive prices differ", func(t *testing.T) {
		flipped := append([]LineItem(nil), items...)
		flipped[1].UnitPrice = 1000
		flipped[1].TotalPrice = 1000
		assert.NotEqual(t, digest, InputDigest(flipped, assignments, abc))
	})
}
