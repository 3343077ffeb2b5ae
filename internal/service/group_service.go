package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
	"github.com/mmynk/tabsplit/internal/storage"
	"github.com/mmynk/tabsplit/pkg/api"
	"github.com/mmynk/tabsplit/pkg/api/apiconnect"
)

// Ensure GroupService implements the Connect handler interface
var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// GroupService implements the Connect GroupService
type GroupService struct {
	store    storage.Store
	currency money.Currency
}

// NewGroupService creates a new GroupService with the given storage backend.
// Settlement amounts without a currency are parsed in the default currency.
func NewGroupService(store storage.Store, defaultCurrency money.Currency) *GroupService {
	return &GroupService{store: store, currency: defaultCurrency}
}

// validateMembers rejects empty and duplicate member IDs.
func validateMembers(members []calculator.Participant) error {
	seen := make(map[string]bool, len(members))
	for _, m := range members {
		if m.ID == "" {
			return fmt.Errorf("%w: member id is required", calculator.ErrInvalidParticipant)
		}
		if seen[m.ID] {
			return fmt.Errorf("%w: duplicate member id %q", calculator.ErrInvalidParticipant, m.ID)
		}
		seen[m.ID] = true
	}
	return nil
}

// groupCurrency resolves the currency of an operation on a group. An empty
// code means the group's own currency; any other code must match it.
func groupCurrency(group *models.Group, code string) (money.Currency, error) {
	c, err := money.Lookup(group.Currency)
	if err != nil {
		return money.Currency{}, fmt.Errorf("group %s has invalid currency %q", group.ID, group.Currency)
	}
	if code == "" {
		return c, nil
	}
	requested, err := money.Lookup(code)
	if err != nil {
		return money.Currency{}, err
	}
	if requested.Code != c.Code {
		return money.Currency{}, fmt.Errorf("%w: group is kept in %s, got %s", money.ErrCurrencyMismatch, c.Code, requested.Code)
	}
	return c, nil
}

// CreateGroup creates a new group.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"members_count", len(req.Msg.Members),
	)

	name := strings.TrimSpace(req.Msg.Name)
	if name == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name required"))
	}
	members := fromAPIParticipants(req.Msg.Members)
	if err := validateMembers(members); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	currency := s.currency
	if req.Msg.Currency != "" {
		var err error
		if currency, err = money.Lookup(req.Msg.Currency); err != nil {
			return nil, connectError(err)
		}
	}

	// Save to storage (generates ID and CreatedAt)
	group := &models.Group{Name: name, Currency: currency.Code, Members: members}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Group created", "group_id", group.ID)

	return connect.NewResponse(&api.CreateGroupResponse{Group: toAPIGroup(group)}), nil
}

// GetGroup retrieves a group by ID together with its session history.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	group, err := s.store.GetGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("GetGroup failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connectError(err)
	}

	sessions, err := s.store.ListSessions(ctx, storage.SessionFilter{GroupID: group.ID})
	if err != nil {
		slog.Error("GetGroup failed - could not list sessions", "group_id", group.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "name", group.Name)

	return connect.NewResponse(&api.GetGroupResponse{
		Group:    toAPIGroup(group),
		Sessions: toAPISummaries(sessions),
	}), nil
}

// ListGroups returns all groups.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	slog.Info("ListGroups request received")

	groups, err := s.store.ListGroups(ctx)
	if err != nil {
		slog.Error("ListGroups failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]api.Group, len(groups))
	for i, g := range groups {
		out[i] = toAPIGroup(g)
	}

	slog.Info("ListGroups successful", "count", len(groups))

	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// DeleteGroup removes a group by ID.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)

	if err := s.store.DeleteGroup(ctx, req.Msg.GroupID); err != nil {
		slog.Error("DeleteGroup failed", "error", err)
		return nil, connectError(err)
	}

	slog.Info("Group deleted", "group_id", req.Msg.GroupID)

	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// RecordSettlement records a payment between two group members.
func (s *GroupService) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error) {
	msg := req.Msg
	slog.Info("RecordSettlement request received",
		"group_id", msg.GroupID,
		"from", msg.FromID,
		"to", msg.ToID,
	)

	group, err := s.store.GetGroup(ctx, msg.GroupID)
	if err != nil {
		slog.Error("RecordSettlement failed - group not found", "group_id", msg.GroupID, "error", err)
		return nil, connectError(err)
	}
	if msg.FromID == msg.ToID {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("cannot settle with yourself"))
	}
	for _, id := range []string{msg.FromID, msg.ToID} {
		if !group.HasMember(id) {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%q is not a member of the group", id))
		}
	}

	currency, err := groupCurrency(group, msg.Currency)
	if err != nil {
		return nil, connectError(err)
	}
	amount, err := money.ParseMinor(msg.Amount, currency)
	if err != nil {
		return nil, connectError(err)
	}
	if amount <= 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("amount must be positive"))
	}

	settlement := &models.Settlement{
		GroupID: group.ID,
		FromID:  msg.FromID,
		ToID:    msg.ToID,
		Amount:   amount,
		Currency: currency.Code,
		Note:     msg.Note,
	}
	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		slog.Error("RecordSettlement failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Info("Settlement recorded",
		"settlement_id", settlement.ID,
		"amount", money.Format(amount, currency),
	)

	return connect.NewResponse(&api.RecordSettlementResponse{Settlement: toAPISettlement(settlement)}), nil
}

// ListSettlements returns a group's settlements, newest first.
func (s *GroupService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	if _, err := s.store.GetGroup(ctx, req.Msg.GroupID); err != nil {
		return nil, connectError(err)
	}

	settlements, err := s.store.ListSettlementsByGroup(ctx, req.Msg.GroupID)
	if err != nil {
		slog.Error("ListSettlements failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	out := make([]api.Settlement, len(settlements))
	for i, st := range settlements {
		out[i] = toAPISettlement(st)
	}
	return connect.NewResponse(&api.ListSettlementsResponse{Settlements: out}), nil
}

// GetBalances calculates balances across all sessions and settlements in a group.
func (s *GroupService) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	groupID := req.Msg.GroupID
	slog.Info("GetBalances request received", "group_id", groupID)

	if groupID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("group_id required"))
	}

	// Verify group exists
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		slog.Error("GetBalances failed - group not found", "group_id", groupID, "error", err)
		return nil, connectError(err)
	}

	// Get all sessions for this group
	summaries, err := s.store.ListSessions(ctx, storage.SessionFilter{GroupID: groupID})
	if err != nil {
		slog.Error("GetBalances failed - could not list sessions", "group_id", groupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	// Fetch the stored allocation for each
	bills := make([]calculator.BillForBalance, 0, len(summaries))
	for _, summary := range summaries {
		f, err := s.store.GetSession(ctx, summary.ID)
		if err != nil {
			slog.Error("GetBalances failed - could not get session", "session_id", summary.ID, "error", err)
			return nil, connect.NewError(connect.CodeInternal, err)
		}
		// Amounts only add up within one currency.
		if f.Currency != group.Currency {
			slog.Error("GetBalances failed - session currency differs from group",
				"session_id", f.ID, "currency", f.Currency, "group_currency", group.Currency)
			return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("%w: session %s is in %s, group is in %s",
				money.ErrCurrencyMismatch, f.ID, f.Currency, group.Currency))
		}
		bills = append(bills, calculator.BillForBalance{
			PayerID:    f.PayerID,
			GrandTotal: f.Result.GrandTotal,
			Owed:       f.Result.Participants,
		})
	}

	settlements, err := s.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		slog.Error("GetBalances failed - could not list settlements", "group_id", groupID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	paid := make([]calculator.SettlementForBalance, len(settlements))
	for i, st := range settlements {
		if st.Currency != group.Currency {
			return nil, connect.NewError(connect.CodeInternal, fmt.Errorf("%w: settlement %s is in %s, group is in %s",
				money.ErrCurrencyMismatch, st.ID, st.Currency, group.Currency))
		}
		paid[i] = calculator.SettlementForBalance{FromID: st.FromID, ToID: st.ToID, Amount: st.Amount}
	}

	memberBalances, debtEdges := calculator.CalculateGroupBalances(bills, paid)

	names := make(map[string]string, len(group.Members))
	for _, m := range group.Members {
		names[m.ID] = m.Name
	}
	balances := make([]api.MemberBalance, len(memberBalances))
	for i, bal := range memberBalances {
		balances[i] = api.MemberBalance{
			MemberID:   bal.MemberID,
			Username:   names[bal.MemberID],
			NetBalance: bal.NetBalance,
			TotalPaid:  bal.TotalPaid,
			TotalOwed:  bal.TotalOwed,
		}
	}
	debts := make([]api.Debt, len(debtEdges))
	for i, d := range debtEdges {
		debts[i] = api.Debt{FromID: d.From, ToID: d.To, Amount: d.Amount}
	}

	slog.Info("GetBalances successful",
		"group_id", groupID,
		"sessions_count", len(bills),
		"members_count", len(balances),
		"debts_count", len(debts),
	)

	return connect.NewResponse(&api.GetBalancesResponse{
		Currency: group.Currency,
		Balances: balances,
		Debts:    debts,
	}), nil
}
