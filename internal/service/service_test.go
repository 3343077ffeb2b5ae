package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/tabsplit/internal/cache"
	"github.com/mmynk/tabsplit/internal/metrics"
	"github.com/mmynk/tabsplit/internal/middleware"
	"github.com/mmynk/tabsplit/internal/money"
	"github.com/mmynk/tabsplit/internal/storage/sqlite"
	"github.com/mmynk/tabsplit/pkg/api"
	"github.com/mmynk/tabsplit/pkg/api/apiconnect"
)

type testEnv struct {
	sessions *apiconnect.SessionServiceClient
	groups   *apiconnect.GroupServiceClient
	store    *sqlite.SQLiteStore
	registry *prometheus.Registry
}

var testClock = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

// setupTestServer serves both services over httptest with a temp database
// and an in-memory cache.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	usd := money.MustLookup("USD")

	sessionSvc := NewSessionService(store,
		WithMemoizer(cache.NewMemoizer(cache.NewMemory(64), m)),
		WithSessionMetrics(m),
		WithDefaultCurrency(usd),
		withClock(func() time.Time { return testClock }),
	)
	groupSvc := NewGroupService(store, usd)

	interceptors := connect.WithInterceptors(middleware.LoggingInterceptor(), middleware.MetricsInterceptor(m))
	sessionPath, sessionHandler := apiconnect.NewSessionServiceHandler(sessionSvc, interceptors)
	groupPath, groupHandler := apiconnect.NewGroupServiceHandler(groupSvc, interceptors)

	mux := http.NewServeMux()
	mux.Handle(sessionPath, sessionHandler)
	mux.Handle(groupPath, groupHandler)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testEnv{
		sessions: apiconnect.NewSessionServiceClient(http.DefaultClient, server.URL),
		groups:   apiconnect.NewGroupServiceClient(http.DefaultClient, server.URL),
		store:    store,
		registry: reg,
	}
}

// dinnerReceipt is pizza shared by all, three beers claimed 2:1 and a
// discount shared by A and B. Totals: A 1850, B 850, C 1500.
func dinnerReceipt() api.Receipt {
	return api.Receipt{
		Items: []api.LineItem{
			{ID: "pizza", Name: "Pizza", UnitPrice: 3000, Quantity: 1, TotalPrice: 3000},
			{ID: "beer", Name: "Beer", UnitPrice: 500, Quantity: 3, TotalPrice: 1500},
			{ID: "promo", Name: "Promo", UnitPrice: -300, Quantity: 1, TotalPrice: -300, Kind: "discount"},
		},
		Participants: []api.Participant{
			{UniqueID: "A", Username: "Alice"},
			{UniqueID: "B", Username: "Bob"},
			{UniqueID: "C", Username: "Carol"},
		},
		Assignments: []api.ItemAssignment{
			{ItemID: "pizza", Mode: "equal", ParticipantIDs: []string{"A", "B", "C"}},
			{ItemID: "beer", Mode: "count", Counts: map[string]int64{"A": 2, "C": 1}},
			{ItemID: "promo", Mode: "equal", ParticipantIDs: []string{"A", "B"}},
		},
	}
}

func owed(totals api.Totals) map[string]int64 {
	out := make(map[string]int64, len(totals.ByParticipant))
	for _, p := range totals.ByParticipant {
		out[p.UniqueID] = p.AmountOwed
	}
	return out
}

func finalizeDinner(t *testing.T, env *testEnv, groupID string) api.Session {
	t.Helper()
	resp, err := env.sessions.Finalize(context.Background(), connect.NewRequest(&api.FinalizeRequest{
		Receipt: dinnerReceipt(),
		Name:    "Friday Dinner",
		PayerID: "A",
		GroupID: groupID,
	}))
	require.NoError(t, err)
	return resp.Msg.Session
}
