package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/tabsplit/internal/cache"
	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/metrics"
	"github.com/mmynk/tabsplit/internal/money"
	"github.com/mmynk/tabsplit/internal/session"
	"github.com/mmynk/tabsplit/internal/storage"
	"github.com/mmynk/tabsplit/pkg/api"
	"github.com/mmynk/tabsplit/pkg/api/apiconnect"
)

// Session history limits.
const (
	defaultSessionLimit = 5
	maxSessionLimit     = 100
)

// Ensure SessionService implements the Connect handler interface
var _ apiconnect.SessionServiceHandler = (*SessionService)(nil)

// SessionService implements the Connect SessionService.
type SessionService struct {
	store    storage.Store
	memo     *cache.Memoizer
	metrics  *metrics.Metrics
	policy   session.Policy
	currency money.Currency
	now      func() time.Time
}

// SessionOption configures a SessionService.
type SessionOption func(*SessionService)

// WithMemoizer sets the memoizer used by Compute.
func WithMemoizer(m *cache.Memoizer) SessionOption {
	return func(s *SessionService) { s.memo = m }
}

// WithSessionMetrics records finalized sessions.
func WithSessionMetrics(m *metrics.Metrics) SessionOption {
	return func(s *SessionService) { s.metrics = m }
}

// WithPolicy sets the validation policy for Validate and Finalize.
func WithPolicy(p session.Policy) SessionOption {
	return func(s *SessionService) { s.policy = p }
}

// WithDefaultCurrency sets the currency used when a request names none.
func WithDefaultCurrency(c money.Currency) SessionOption {
	return func(s *SessionService) { s.currency = c }
}

// withClock overrides the finalization clock in tests.
func withClock(now func() time.Time) SessionOption {
	return func(s *SessionService) { s.now = now }
}

// NewSessionService creates a new SessionService with the given storage backend.
func NewSessionService(store storage.Store, opts ...SessionOption) *SessionService {
	s := &SessionService{
		store:    store,
		policy:   session.DefaultPolicy(),
		currency: money.MustLookup("USD"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.memo == nil {
		s.memo = cache.NewMemoizer(nil, s.metrics)
	}
	return s
}

func (s *SessionService) currencyFor(code string) (money.Currency, error) {
	if code == "" {
		return s.currency, nil
	}
	return money.Lookup(code)
}

// validatePayerID checks if the payer is one of the participants.
func validatePayerID(payerID string, participants []calculator.Participant) error {
	if payerID == "" {
		return nil // Optional field
	}
	if isParticipant(payerID, participants) {
		return nil
	}
	return fmt.Errorf("%w: payer_id '%s' must be one of the participants", calculator.ErrInvalidParticipant, payerID)
}

// isParticipant checks if the ID is in the participants list.
func isParticipant(id string, participants []calculator.Participant) bool {
	for _, p := range participants {
		if p.ID == id {
			return true
		}
	}
	return false
}

// autoAddParticipantsToGroup adds any session participants not already in the group.
func (s *SessionService) autoAddParticipantsToGroup(ctx context.Context, groupID string, participants []calculator.Participant) {
	if groupID == "" {
		return
	}
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		slog.Warn("autoAddParticipantsToGroup: failed to get group", "group_id", groupID, "error", err)
		return
	}

	var newMembers []calculator.Participant
	for _, p := range participants {
		if !group.HasMember(p.ID) {
			newMembers = append(newMembers, p)
		}
	}
	if len(newMembers) == 0 {
		return
	}

	if err := s.store.AddGroupMembers(ctx, groupID, newMembers); err != nil {
		slog.Error("autoAddParticipantsToGroup: failed to add members", "group_id", groupID, "error", err)
		return
	}
	slog.Info("Auto-added participants to group", "group_id", groupID, "new_members", len(newMembers))
}

// Compute previews the allocation of a receipt without validating claims or
// storing anything. Results are memoized by input fingerprint.
func (s *SessionService) Compute(ctx context.Context, req *connect.Request[api.ComputeRequest]) (*connect.Response[api.ComputeResponse], error) {
	msg := req.Msg
	slog.Debug("Compute request received",
		"items", len(msg.Items),
		"participants", len(msg.Participants),
	)

	currency, err := s.currencyFor(msg.Currency)
	if err != nil {
		return nil, connectError(err)
	}
	in, err := fromAPIReceipt(msg.Receipt)
	if err != nil {
		return nil, connectError(err)
	}

	result, cached, err := s.memo.Compute(ctx, in.items, in.assignments, in.participants)
	if err != nil {
		slog.Error("Compute failed", "error", err, "kind", calculator.ErrorKind(err))
		return nil, connectError(err)
	}

	totals, allocations := toAPITotals(result, currency)
	return connect.NewResponse(&api.ComputeResponse{
		Totals:      totals,
		Allocations: allocations,
		CacheKey:    calculator.CacheKey(in.items, in.assignments, in.participants),
		Cached:      cached,
	}), nil
}

// Validate reports every problem that would block finalization. Problems are
// returned in the response, not as an RPC error.
func (s *SessionService) Validate(ctx context.Context, req *connect.Request[api.ValidateRequest]) (*connect.Response[api.ValidateResponse], error) {
	in, err := fromAPIReceipt(req.Msg.Receipt)
	if err != nil {
		return nil, connectError(err)
	}

	resp := &api.ValidateResponse{}
	d, err := in.draft()
	issues := session.Issues(err)
	if len(issues) == 0 {
		valid, err := d.Validate(s.policy)
		if err != nil {
			issues = session.Issues(err)
		} else {
			resp.InputDigest = valid.Digest()
		}
	}

	resp.Valid = len(issues) == 0
	resp.Issues = toAPIIssues(issues)
	slog.Debug("Validate completed", "valid", resp.Valid, "issues", len(issues))
	return connect.NewResponse(resp), nil
}

// Finalize validates a receipt, freezes it and stores the authoritative
// record.
func (s *SessionService) Finalize(ctx context.Context, req *connect.Request[api.FinalizeRequest]) (*connect.Response[api.FinalizeResponse], error) {
	msg := req.Msg
	slog.Info("Finalize request received",
		"name", msg.Name,
		"items", len(msg.Items),
		"participants", len(msg.Participants),
		"group_id", msg.GroupID,
	)

	currency, err := s.currencyFor(msg.Currency)
	if err != nil {
		return nil, connectError(err)
	}
	in, err := fromAPIReceipt(msg.Receipt)
	if err != nil {
		return nil, connectError(err)
	}
	if len(in.participants) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument,
			fmt.Errorf("%w: add at least one participant", calculator.ErrInvalidParticipant))
	}

	if msg.GroupID != "" && msg.PayerID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("payer_id is required for group sessions"))
	}
	if err := validatePayerID(msg.PayerID, in.participants); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	if msg.GroupID != "" {
		group, err := s.store.GetGroup(ctx, msg.GroupID)
		if err != nil {
			slog.Error("Finalize failed - group lookup", "group_id", msg.GroupID, "error", err)
			return nil, connectError(err)
		}
		// A group session is kept in the group's currency.
		if currency, err = groupCurrency(group, msg.Currency); err != nil {
			return nil, connectError(err)
		}
	}

	d, err := in.draft()
	if err != nil {
		return nil, connectError(err)
	}
	valid, err := d.Validate(s.policy)
	if err != nil {
		slog.Warn("Finalize rejected", "error", err)
		return nil, connectError(err)
	}

	finalized := valid.Finalize(session.Meta{
		Name:     msg.Name,
		Currency: currency.Code,
		PayerID:  msg.PayerID,
		GroupID:  msg.GroupID,
	}, s.now())

	if err := s.store.CreateSession(ctx, finalized); err != nil {
		slog.Error("Finalize failed - store", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	s.metrics.SessionFinalized()
	s.autoAddParticipantsToGroup(ctx, msg.GroupID, in.participants)

	slog.Info("Session finalized",
		"session_id", finalized.ID,
		"grand_total", finalized.Result.GrandTotal,
		"digest", finalized.InputDigest,
	)

	return connect.NewResponse(&api.FinalizeResponse{Session: toAPISession(finalized)}), nil
}

// GetSession retrieves a finalized session.
func (s *SessionService) GetSession(ctx context.Context, req *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error) {
	if req.Msg.SessionID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("session_id required"))
	}

	f, err := s.store.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		slog.Error("GetSession failed", "session_id", req.Msg.SessionID, "error", err)
		return nil, connectError(err)
	}

	return connect.NewResponse(&api.GetSessionResponse{Session: toAPISession(f)}), nil
}

// sessionLimit applies the history limit policy: 5 by default, at most 100,
// unlimited when all is set.
func sessionLimit(limit int32, all bool) int {
	switch {
	case all:
		return 0
	case limit <= 0:
		return defaultSessionLimit
	case limit > maxSessionLimit:
		return maxSessionLimit
	default:
		return int(limit)
	}
}

// ListSessions returns the session history, most recent first.
func (s *SessionService) ListSessions(ctx context.Context, req *connect.Request[api.ListSessionsRequest]) (*connect.Response[api.ListSessionsResponse], error) {
	filter := storage.SessionFilter{
		GroupID: req.Msg.GroupID,
		Limit:   sessionLimit(req.Msg.Limit, req.Msg.All),
	}

	summaries, err := s.store.ListSessions(ctx, filter)
	if err != nil {
		slog.Error("ListSessions failed", "error", err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}

	slog.Debug("ListSessions successful", "count", len(summaries), "limit", filter.Limit)
	return connect.NewResponse(&api.ListSessionsResponse{Sessions: toAPISummaries(summaries)}), nil
}

// DeleteSession removes a finalized session.
func (s *SessionService) DeleteSession(ctx context.Context, req *connect.Request[api.DeleteSessionRequest]) (*connect.Response[api.DeleteSessionResponse], error) {
	slog.Info("DeleteSession request received", "session_id", req.Msg.SessionID)

	if err := s.store.DeleteSession(ctx, req.Msg.SessionID); err != nil {
		slog.Error("DeleteSession failed", "error", err)
		return nil, connectError(err)
	}

	slog.Info("Session deleted", "session_id", req.Msg.SessionID)
	return connect.NewResponse(&api.DeleteSessionResponse{}), nil
}

// ReplaySession recomputes a stored session from its stored inputs and
// reports whether inputs and result still match.
func (s *SessionService) ReplaySession(ctx context.Context, req *connect.Request[api.ReplaySessionRequest]) (*connect.Response[api.ReplaySessionResponse], error) {
	f, err := s.store.GetSession(ctx, req.Msg.SessionID)
	if err != nil {
		slog.Error("ReplaySession failed", "session_id", req.Msg.SessionID, "error", err)
		return nil, connectError(err)
	}

	report, err := f.Replay()
	if err != nil {
		slog.Error("ReplaySession failed - recompute", "session_id", f.ID, "error", err)
		return nil, connectError(err)
	}
	if !report.Verified() {
		slog.Warn("Replay mismatch",
			"session_id", f.ID,
			"digest_match", report.DigestMatch,
			"result_match", report.ResultMatch,
		)
	}

	return connect.NewResponse(&api.ReplaySessionResponse{
		Verified:       report.Verified(),
		DigestMatch:    report.DigestMatch,
		ResultMatch:    report.ResultMatch,
		StoredDigest:   f.InputDigest,
		ComputedDigest: report.Digest,
	}), nil
}
