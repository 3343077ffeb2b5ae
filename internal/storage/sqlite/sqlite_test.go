package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/session"
	"github.com/mmynk/tabsplit/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "nested", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

var dinnerPeople = []calculator.Participant{
	{ID: "A", Name: "Alice"},
	{ID: "B", Name: "Bob"},
	{ID: "C", Name: "Carol"},
}

// finalizedDinner builds a session covering every assignment shape: an equal
// split, a count split with a zero count, a discount and a zero-total item
// nobody claimed.
func finalizedDinner(t *testing.T, meta session.Meta) *session.Finalized {
	t.Helper()
	items := []calculator.LineItem{
		{ID: "pizza", Name: "Pizza", Quantity: 1, UnitPrice: 3000, TotalPrice: 3000},
		{ID: "beer", Name: "Beer", Quantity: 3, UnitPrice: 500, TotalPrice: 1500},
		{ID: "promo", Name: "Promo", Quantity: 1, UnitPrice: -300, TotalPrice: -300, Kind: calculator.KindDiscount},
		{ID: "water", Name: "Tap water", Quantity: 1},
	}
	d := session.NewDraft(items, dinnerPeople)
	d, err := d.AssignEveryone("pizza")
	require.NoError(t, err)
	d, err = d.AssignCounts("beer", map[string]int64{"A": 2, "B": 0, "C": 1})
	require.NoError(t, err)
	d, err = d.AssignEqual("promo", "A", "B")
	require.NoError(t, err)

	valid, err := d.Validate(session.DefaultPolicy())
	require.NoError(t, err)
	return valid.Finalize(meta, time.Date(2026, 3, 14, 19, 30, 0, 123, time.UTC))
}

func TestSessionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	original := finalizedDinner(t, session.Meta{Name: "Friday Dinner", Currency: "USD", PayerID: "A"})
	require.NoError(t, store.CreateSession(ctx, original))
	require.NotEmpty(t, original.ID)

	loaded, err := store.GetSession(ctx, original.ID)
	require.NoError(t, err)

	assert.Equal(t, original.Meta, loaded.Meta)
	assert.Equal(t, original.Items, loaded.Items)
	assert.Equal(t, original.Participants, loaded.Participants)
	assert.Equal(t, original.InputDigest, loaded.InputDigest)
	assert.True(t, original.FinalizedAt.Equal(loaded.FinalizedAt))
	assert.Equal(t, map[string]int64{"A": 2, "B": 0, "C": 1}, loaded.Assignments["beer"].Counts)
	assert.Equal(t, []string{"A", "B", "C"}, loaded.Assignments["pizza"].Participants)

	want, err := json.Marshal(original.Result)
	require.NoError(t, err)
	got, err := json.Marshal(loaded.Result)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	report, err := loaded.Replay()
	require.NoError(t, err)
	assert.True(t, report.Verified(), "stored session must replay byte-identically")
}

func TestCreateSessionGeneratesName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := finalizedDinner(t, session.Meta{Currency: "USD", PayerID: "A"})
	require.NoError(t, store.CreateSession(ctx, f))
	assert.Equal(t, "Split with Alice, Bob, Carol", f.Name)

	summaries, err := store.ListSessions(ctx, storage.SessionFilter{})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "split-with-alice-bob-carol", summaries[0].Slug)
	assert.Equal(t, 3, summaries[0].ParticipantCount)
	assert.Equal(t, int64(4200), summaries[0].GrandTotal)
}

func TestGetSessionNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetSession(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, store.DeleteSession(context.Background(), "missing"), storage.ErrNotFound)
}

func TestListSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := &models.Group{Name: "Roommates", Members: dinnerPeople}
	require.NoError(t, store.CreateGroup(ctx, group))

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		meta := session.Meta{Name: "Dinner", Currency: "USD", PayerID: "A"}
		if i%2 == 0 {
			meta.GroupID = group.ID
		}
		f := finalizedDinner(t, meta)
		f.FinalizedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.CreateSession(ctx, f))
	}

	t.Run("newest first", func(t *testing.T) {
		all, err := store.ListSessions(ctx, storage.SessionFilter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		for i := 1; i < len(all); i++ {
			assert.GreaterOrEqual(t, all[i-1].FinalizedAt, all[i].FinalizedAt)
		}
	})

	t.Run("limit", func(t *testing.T) {
		limited, err := store.ListSessions(ctx, storage.SessionFilter{Limit: 2})
		require.NoError(t, err)
		assert.Len(t, limited, 2)
	})

	t.Run("group filter", func(t *testing.T) {
		grouped, err := store.ListSessions(ctx, storage.SessionFilter{GroupID: group.ID})
		require.NoError(t, err)
		require.Len(t, grouped, 2)
		for _, s := range grouped {
			assert.Equal(t, group.ID, s.GroupID)
		}
	})
}

func TestDeleteSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	f := finalizedDinner(t, session.Meta{Name: "Lunch", Currency: "USD", PayerID: "B"})
	require.NoError(t, store.CreateSession(ctx, f))
	require.NoError(t, store.DeleteSession(ctx, f.ID))

	_, err := store.GetSession(ctx, f.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// The same item IDs can be stored again once the session is gone.
	f.ID = ""
	require.NoError(t, store.CreateSession(ctx, f))
}

func TestGroups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := &models.Group{Name: "Roommates", Members: dinnerPeople[:2]}
	require.NoError(t, store.CreateGroup(ctx, group))
	require.NotEmpty(t, group.ID)
	require.NotZero(t, group.CreatedAt)

	t.Run("add members skips existing", func(t *testing.T) {
		err := store.AddGroupMembers(ctx, group.ID, []calculator.Participant{
			{ID: "B", Name: "Bob"},
			{ID: "C", Name: "Carol"},
		})
		require.NoError(t, err)

		got, err := store.GetGroup(ctx, group.ID)
		require.NoError(t, err)
		assert.Equal(t, dinnerPeople, got.Members)
	})

	t.Run("list", func(t *testing.T) {
		other := &models.Group{Name: "Work Lunch", Members: []calculator.Participant{{ID: "Z", Name: "Zed"}}}
		require.NoError(t, store.CreateGroup(ctx, other))

		groups, err := store.ListGroups(ctx)
		require.NoError(t, err)
		require.Len(t, groups, 2)
		byID := map[string]*models.Group{}
		for _, g := range groups {
			byID[g.ID] = g
		}
		assert.Len(t, byID[group.ID].Members, 3)
		assert.Equal(t, "Zed", byID[other.ID].Members[0].Name)
	})

	t.Run("delete detaches sessions", func(t *testing.T) {
		f := finalizedDinner(t, session.Meta{Name: "Dinner", Currency: "USD", PayerID: "A", GroupID: group.ID})
		require.NoError(t, store.CreateSession(ctx, f))
		require.NoError(t, store.CreateSettlement(ctx, &models.Settlement{GroupID: group.ID, FromID: "B", ToID: "A", Amount: 100}))

		require.NoError(t, store.DeleteGroup(ctx, group.ID))

		_, err := store.GetGroup(ctx, group.ID)
		assert.ErrorIs(t, err, storage.ErrNotFound)

		kept, err := store.GetSession(ctx, f.ID)
		require.NoError(t, err)
		assert.Empty(t, kept.GroupID)
	})

	t.Run("missing group", func(t *testing.T) {
		err := store.AddGroupMembers(ctx, "missing", dinnerPeople)
		assert.ErrorIs(t, err, storage.ErrNotFound)
		assert.ErrorIs(t, store.DeleteGroup(ctx, "missing"), storage.ErrNotFound)
	})
}

func TestSettlements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	group := &models.Group{Name: "Trip", Currency: "JPY", Members: dinnerPeople}
	require.NoError(t, store.CreateGroup(ctx, group))

	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "JPY", got.Currency)

	first := &models.Settlement{GroupID: group.ID, FromID: "B", ToID: "A", Amount: 1250, Currency: "JPY", CreatedAt: 100, Note: "venmo"}
	second := &models.Settlement{GroupID: group.ID, FromID: "C", ToID: "A", Amount: 500, CreatedAt: 200}
	require.NoError(t, store.CreateSettlement(ctx, first))
	require.NoError(t, store.CreateSettlement(ctx, second))
	assert.NotEmpty(t, first.ID)

	settlements, err := store.ListSettlementsByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, settlements, 2)
	assert.Equal(t, second.ID, settlements[0].ID)
	assert.Equal(t, int64(1250), settlements[1].Amount)
	assert.Equal(t, "venmo", settlements[1].Note)
	assert.Equal(t, "JPY", settlements[1].Currency)
	assert.Empty(t, settlements[0].Note)
}

func TestGenerateTitle(t *testing.T) {
	at := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		participants []calculator.Participant
		want         string
	}{
		{nil, "Receipt - Mar 14, 2026"},
		{dinnerPeople[:1], "Split with Alice"},
		{[]calculator.Participant{{ID: "u1"}}, "Split with u1"},
		{dinnerPeople, "Split with Alice, Bob, Carol"},
		{append(dinnerPeople[:3:3], calculator.Participant{ID: "D", Name: "Diana"}), "Split with Alice, Bob and 2 others"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, generateTitle(tt.participants, at))
		})
	}
}
