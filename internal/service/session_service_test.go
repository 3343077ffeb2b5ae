package service

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/pkg/api"
)

func TestCompute(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	resp, err := env.sessions.Compute(ctx, connect.NewRequest(&api.ComputeRequest{Receipt: dinnerReceipt()}))
	require.NoError(t, err)

	msg := resp.Msg
	assert.Equal(t, int64(4200), msg.Totals.GrandTotal)
	assert.Equal(t, map[string]int64{"A": 1850, "B": 850, "C": 1500}, owed(msg.Totals))
	assert.Equal(t, "USD 18.50", msg.Totals.ByParticipant[0].Display)
	assert.False(t, msg.Cached)
	assert.NotEmpty(t, msg.CacheKey)

	require.Len(t, msg.Totals.ByItem, 3)
	assert.Equal(t, "discount", msg.Totals.ByItem[2].Kind)

	var beer []api.Allocation
	for _, a := range msg.Allocations {
		if a.ItemID == "beer" {
			beer = append(beer, a)
		}
	}
	assert.Equal(t, []api.Allocation{
		{ItemID: "beer", ParticipantID: "A", ShareAmount: 1000, ShareUnits: 2, ShareBasis: 3},
		{ItemID: "beer", ParticipantID: "C", ShareAmount: 500, ShareUnits: 1, ShareBasis: 3},
	}, beer)

	again, err := env.sessions.Compute(ctx, connect.NewRequest(&api.ComputeRequest{Receipt: dinnerReceipt()}))
	require.NoError(t, err)
	assert.True(t, again.Msg.Cached)
	assert.Equal(t, msg.CacheKey, again.Msg.CacheKey)
	assert.Equal(t, msg.Totals, again.Msg.Totals)
}

func TestComputeEqualRemainder(t *testing.T) {
	env := setupTestServer(t)

	resp, err := env.sessions.Compute(context.Background(), connect.NewRequest(&api.ComputeRequest{
		Receipt: api.Receipt{
			Items: []api.LineItem{{ID: "wine", Name: "Wine", UnitPrice: 100, Quantity: 1, TotalPrice: 100}},
			Participants: []api.Participant{
				{UniqueID: "C", Username: "Carol"},
				{UniqueID: "A", Username: "Alice"},
				{UniqueID: "B", Username: "Bob"},
			},
			Assignments: []api.ItemAssignment{{ItemID: "wine", Mode: "equal", ParticipantIDs: []string{"C", "B", "A"}}},
		},
		Currency: "JPY",
	}))
	require.NoError(t, err)

	assert.Equal(t, map[string]int64{"A": 34, "B": 33, "C": 33}, owed(resp.Msg.Totals))
	// Participants keep input order.
	assert.Equal(t, "C", resp.Msg.Totals.ByParticipant[0].UniqueID)
	assert.Equal(t, "JPY 33", resp.Msg.Totals.ByParticipant[0].Display)
}

func TestComputeErrors(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*api.ComputeRequest)
		code   connect.Code
	}{
		{
			name: "unknown participant",
			mutate: func(r *api.ComputeRequest) {
				r.Assignments[0].ParticipantIDs = []string{"A", "Z"}
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "nobody assigned",
			mutate: func(r *api.ComputeRequest) {
				r.Assignments[0].ParticipantIDs = nil
			},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "negative count",
			mutate: func(r *api.ComputeRequest) {
				r.Assignments[1].Counts = map[string]int64{"A": -1, "C": 4}
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "duplicate assignment",
			mutate: func(r *api.ComputeRequest) {
				r.Assignments = append(r.Assignments, r.Assignments[0])
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "unknown currency",
			mutate: func(r *api.ComputeRequest) {
				r.Currency = "XYZ"
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "duplicate participant",
			mutate: func(r *api.ComputeRequest) {
				r.Participants = append(r.Participants, r.Participants[0])
			},
			code: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &api.ComputeRequest{Receipt: dinnerReceipt()}
			tt.mutate(req)

			_, err := env.sessions.Compute(ctx, connect.NewRequest(req))
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}
}

func TestComputeToleratesPartialClaims(t *testing.T) {
	env := setupTestServer(t)

	receipt := dinnerReceipt()
	receipt.Assignments[1].Counts = map[string]int64{"A": 1}
	resp, err := env.sessions.Compute(context.Background(), connect.NewRequest(&api.ComputeRequest{Receipt: receipt}))
	require.NoError(t, err)

	// The single claimant takes the whole item.
	assert.Equal(t, int64(1000+1500-150), owed(resp.Msg.Totals)["A"])
}

func TestValidate(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		resp, err := env.sessions.Validate(ctx, connect.NewRequest(&api.ValidateRequest{Receipt: dinnerReceipt()}))
		require.NoError(t, err)
		assert.True(t, resp.Msg.Valid)
		assert.Empty(t, resp.Msg.Issues)
		assert.Len(t, resp.Msg.InputDigest, 64)
	})

	t.Run("reports every issue", func(t *testing.T) {
		receipt := dinnerReceipt()
		receipt.Assignments[0].ParticipantIDs = []string{"A", "Z"}
		receipt.Assignments[1].Counts = map[string]int64{"A": 1}
		receipt.Items[2].TotalPrice = -200

		resp, err := env.sessions.Validate(ctx, connect.NewRequest(&api.ValidateRequest{Receipt: receipt}))
		require.NoError(t, err)
		assert.False(t, resp.Msg.Valid)
		assert.Empty(t, resp.Msg.InputDigest)

		kinds := map[string]string{}
		for _, issue := range resp.Msg.Issues {
			kinds[issue.ItemID] = issue.Kind
		}
		assert.Equal(t, map[string]string{
			"pizza": calculator.KindInvalidAssignment,
			"beer":  calculator.KindEmptyAssignment,
			"promo": calculator.KindInvalidItem,
		}, kinds)
	})

	t.Run("unknown item", func(t *testing.T) {
		receipt := dinnerReceipt()
		receipt.Assignments = append(receipt.Assignments, api.ItemAssignment{ItemID: "dessert", Mode: "equal", ParticipantIDs: []string{"A"}})

		resp, err := env.sessions.Validate(ctx, connect.NewRequest(&api.ValidateRequest{Receipt: receipt}))
		require.NoError(t, err)
		require.Len(t, resp.Msg.Issues, 1)
		assert.Equal(t, "dessert", resp.Msg.Issues[0].ItemID)
		assert.Equal(t, calculator.KindInvalidItem, resp.Msg.Issues[0].Kind)
	})
}

func TestFinalizeAndGetSession(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created := finalizeDinner(t, env, "")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, testClock.Unix(), created.FinalizedAt)
	assert.Equal(t, map[string]int64{"A": 1850, "B": 850, "C": 1500}, owed(created.Totals))

	got, err := env.sessions.GetSession(ctx, connect.NewRequest(&api.GetSessionRequest{SessionID: created.ID}))
	require.NoError(t, err)
	assert.Equal(t, created, got.Msg.Session)

	finalized, err := testutil.GatherAndCount(env.registry, "tabsplit_sessions_finalized_total")
	require.NoError(t, err)
	assert.Equal(t, 1, finalized)
}

func TestFinalizeRejects(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()
	usdGroup := createGroup(t, env, api.Participant{UniqueID: "A", Username: "Alice"})

	tests := []struct {
		name   string
		mutate func(*api.FinalizeRequest)
		code   connect.Code
	}{
		{
			name: "unclaimed units",
			mutate: func(r *api.FinalizeRequest) {
				r.Assignments[1].Counts = map[string]int64{"A": 2}
			},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "over-claimed units",
			mutate: func(r *api.FinalizeRequest) {
				r.Assignments[1].Counts = map[string]int64{"A": 2, "C": 2}
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "missing assignment",
			mutate: func(r *api.FinalizeRequest) {
				r.Assignments = r.Assignments[1:]
			},
			code: connect.CodeFailedPrecondition,
		},
		{
			name: "inconsistent item",
			mutate: func(r *api.FinalizeRequest) {
				r.Items[1].TotalPrice = 1400
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "payer not a participant",
			mutate: func(r *api.FinalizeRequest) {
				r.PayerID = "Z"
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "unknown group",
			mutate: func(r *api.FinalizeRequest) {
				r.GroupID = "missing"
			},
			code: connect.CodeNotFound,
		},
		{
			name: "no participants",
			mutate: func(r *api.FinalizeRequest) {
				r.Items = []api.LineItem{{ID: "water", Name: "Water", Quantity: 1}}
				r.Participants = nil
				r.Assignments = nil
				r.PayerID = ""
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "session currency differs from group",
			mutate: func(r *api.FinalizeRequest) {
				r.Currency = "EUR"
				r.GroupID = usdGroup.ID
			},
			code: connect.CodeInvalidArgument,
		},
		{
			name: "group without payer",
			mutate: func(r *api.FinalizeRequest) {
				r.GroupID = "missing"
				r.PayerID = ""
			},
			code: connect.CodeInvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &api.FinalizeRequest{Receipt: dinnerReceipt(), PayerID: "A"}
			tt.mutate(req)

			_, err := env.sessions.Finalize(ctx, connect.NewRequest(req))
			require.Error(t, err)
			assert.Equal(t, tt.code, connect.CodeOf(err))
		})
	}

	list, err := env.sessions.ListSessions(ctx, connect.NewRequest(&api.ListSessionsRequest{All: true}))
	require.NoError(t, err)
	assert.Empty(t, list.Msg.Sessions, "rejected sessions must not be stored")
}

func TestListSessionsLimit(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		finalizeDinner(t, env, "")
	}

	tests := []struct {
		name string
		req  *api.ListSessionsRequest
		want int
	}{
		{"default", &api.ListSessionsRequest{}, 5},
		{"explicit", &api.ListSessionsRequest{Limit: 2}, 2},
		{"all", &api.ListSessionsRequest{All: true}, 7},
		{"above max", &api.ListSessionsRequest{Limit: 1000}, 7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := env.sessions.ListSessions(ctx, connect.NewRequest(tt.req))
			require.NoError(t, err)
			assert.Len(t, resp.Msg.Sessions, tt.want)
		})
	}
}

func TestSessionLimit(t *testing.T) {
	assert.Equal(t, 5, sessionLimit(0, false))
	assert.Equal(t, 5, sessionLimit(-3, false))
	assert.Equal(t, 1, sessionLimit(1, false))
	assert.Equal(t, 100, sessionLimit(101, false))
	assert.Equal(t, 0, sessionLimit(10, true))
}

func TestDeleteSession(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created := finalizeDinner(t, env, "")
	_, err := env.sessions.DeleteSession(ctx, connect.NewRequest(&api.DeleteSessionRequest{SessionID: created.ID}))
	require.NoError(t, err)

	_, err = env.sessions.GetSession(ctx, connect.NewRequest(&api.GetSessionRequest{SessionID: created.ID}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))

	_, err = env.sessions.DeleteSession(ctx, connect.NewRequest(&api.DeleteSessionRequest{SessionID: created.ID}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestReplaySession(t *testing.T) {
	env := setupTestServer(t)
	ctx := context.Background()

	created := finalizeDinner(t, env, "")
	resp, err := env.sessions.ReplaySession(ctx, connect.NewRequest(&api.ReplaySessionRequest{SessionID: created.ID}))
	require.NoError(t, err)

	assert.True(t, resp.Msg.Verified)
	assert.Equal(t, created.InputDigest, resp.Msg.StoredDigest)
	assert.Equal(t, resp.Msg.StoredDigest, resp.Msg.ComputedDigest)

	_, err = env.sessions.ReplaySession(ctx, connect.NewRequest(&api.ReplaySessionRequest{SessionID: "missing"}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}
