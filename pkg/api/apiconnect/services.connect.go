// Package apiconnect wires the tabsplit services to Connect handlers and
// clients.
package apiconnect

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/tabsplit/pkg/api"
)

const (
	// SessionServiceName is the fully-qualified name of the SessionService service.
	SessionServiceName = "tabsplit.v1.SessionService"
	// GroupServiceName is the fully-qualified name of the GroupService service.
	GroupServiceName = "tabsplit.v1.GroupService"
)

// These constants are the fully-qualified names of the RPCs. They are used
// as the HTTP paths of the procedures and as the procedure label in metrics.
const (
	SessionServiceComputeProcedure       = "/tabsplit.v1.SessionService/Compute"
	SessionServiceValidateProcedure      = "/tabsplit.v1.SessionService/Validate"
	SessionServiceFinalizeProcedure      = "/tabsplit.v1.SessionService/Finalize"
	SessionServiceGetSessionProcedure    = "/tabsplit.v1.SessionService/GetSession"
	SessionServiceListSessionsProcedure  = "/tabsplit.v1.SessionService/ListSessions"
	SessionServiceDeleteSessionProcedure = "/tabsplit.v1.SessionService/DeleteSession"
	SessionServiceReplaySessionProcedure = "/tabsplit.v1.SessionService/ReplaySession"

	GroupServiceCreateGroupProcedure      = "/tabsplit.v1.GroupService/CreateGroup"
	GroupServiceGetGroupProcedure         = "/tabsplit.v1.GroupService/GetGroup"
	GroupServiceListGroupsProcedure       = "/tabsplit.v1.GroupService/ListGroups"
	GroupServiceDeleteGroupProcedure      = "/tabsplit.v1.GroupService/DeleteGroup"
	GroupServiceRecordSettlementProcedure = "/tabsplit.v1.GroupService/RecordSettlement"
	GroupServiceListSettlementsProcedure  = "/tabsplit.v1.GroupService/ListSettlements"
	GroupServiceGetBalancesProcedure      = "/tabsplit.v1.GroupService/GetBalances"
)

// withCodec puts the JSON codec ahead of caller options.
func withCodec[T any](opts []T, codec T) []T {
	return append([]T{codec}, opts...)
}

// SessionServiceHandler is implemented by the session service.
type SessionServiceHandler interface {
	Compute(context.Context, *connect.Request[api.ComputeRequest]) (*connect.Response[api.ComputeResponse], error)
	Validate(context.Context, *connect.Request[api.ValidateRequest]) (*connect.Response[api.ValidateResponse], error)
	Finalize(context.Context, *connect.Request[api.FinalizeRequest]) (*connect.Response[api.FinalizeResponse], error)
	GetSession(context.Context, *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error)
	ListSessions(context.Context, *connect.Request[api.ListSessionsRequest]) (*connect.Response[api.ListSessionsResponse], error)
	DeleteSession(context.Context, *connect.Request[api.DeleteSessionRequest]) (*connect.Response[api.DeleteSessionResponse], error)
	ReplaySession(context.Context, *connect.Request[api.ReplaySessionRequest]) (*connect.Response[api.ReplaySessionResponse], error)
}

// NewSessionServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewSessionServiceHandler(svc SessionServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withCodec(opts, connect.HandlerOption(connect.WithCodec(api.Codec{})))
	handlers := map[string]http.Handler{
		SessionServiceComputeProcedure:       connect.NewUnaryHandler(SessionServiceComputeProcedure, svc.Compute, opts...),
		SessionServiceValidateProcedure:      connect.NewUnaryHandler(SessionServiceValidateProcedure, svc.Validate, opts...),
		SessionServiceFinalizeProcedure:      connect.NewUnaryHandler(SessionServiceFinalizeProcedure, svc.Finalize, opts...),
		SessionServiceGetSessionProcedure:    connect.NewUnaryHandler(SessionServiceGetSessionProcedure, svc.GetSession, opts...),
		SessionServiceListSessionsProcedure:  connect.NewUnaryHandler(SessionServiceListSessionsProcedure, svc.ListSessions, opts...),
		SessionServiceDeleteSessionProcedure: connect.NewUnaryHandler(SessionServiceDeleteSessionProcedure, svc.DeleteSession, opts...),
		SessionServiceReplaySessionProcedure: connect.NewUnaryHandler(SessionServiceReplaySessionProcedure, svc.ReplaySession, opts...),
	}
	return "/" + SessionServiceName + "/", route(handlers)
}

// GroupServiceHandler is implemented by the group service.
type GroupServiceHandler interface {
	CreateGroup(context.Context, *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error)
	GetGroup(context.Context, *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error)
	ListGroups(context.Context, *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error)
	DeleteGroup(context.Context, *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error)
	RecordSettlement(context.Context, *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error)
	ListSettlements(context.Context, *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error)
	GetBalances(context.Context, *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error)
}

// NewGroupServiceHandler builds an HTTP handler from the service
// implementation.
func NewGroupServiceHandler(svc GroupServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = withCodec(opts, connect.HandlerOption(connect.WithCodec(api.Codec{})))
	handlers := map[string]http.Handler{
		GroupServiceCreateGroupProcedure:      connect.NewUnaryHandler(GroupServiceCreateGroupProcedure, svc.CreateGroup, opts...),
		GroupServiceGetGroupProcedure:         connect.NewUnaryHandler(GroupServiceGetGroupProcedure, svc.GetGroup, opts...),
		GroupServiceListGroupsProcedure:       connect.NewUnaryHandler(GroupServiceListGroupsProcedure, svc.ListGroups, opts...),
		GroupServiceDeleteGroupProcedure:      connect.NewUnaryHandler(GroupServiceDeleteGroupProcedure, svc.DeleteGroup, opts...),
		GroupServiceRecordSettlementProcedure: connect.NewUnaryHandler(GroupServiceRecordSettlementProcedure, svc.RecordSettlement, opts...),
		GroupServiceListSettlementsProcedure:  connect.NewUnaryHandler(GroupServiceListSettlementsProcedure, svc.ListSettlements, opts...),
		GroupServiceGetBalancesProcedure:      connect.NewUnaryHandler(GroupServiceGetBalancesProcedure, svc.GetBalances, opts...),
	}
	return "/" + GroupServiceName + "/", route(handlers)
}

func route(handlers map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := handlers[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

// SessionServiceClient is a client for the SessionService service.
type SessionServiceClient struct {
	compute       *connect.Client[api.ComputeRequest, api.ComputeResponse]
	validate      *connect.Client[api.ValidateRequest, api.ValidateResponse]
	finalize      *connect.Client[api.FinalizeRequest, api.FinalizeResponse]
	getSession    *connect.Client[api.GetSessionRequest, api.GetSessionResponse]
	listSessions  *connect.Client[api.ListSessionsRequest, api.ListSessionsResponse]
	deleteSession *connect.Client[api.DeleteSessionRequest, api.DeleteSessionResponse]
	replaySession *connect.Client[api.ReplaySessionRequest, api.ReplaySessionResponse]
}

// NewSessionServiceClient constructs a client for the SessionService
// service. baseURL is the scheme and host of the server, e.g.
// http://localhost:8080.
func NewSessionServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *SessionServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = withCodec(opts, connect.ClientOption(connect.WithCodec(api.Codec{})))
	return &SessionServiceClient{
		compute:       connect.NewClient[api.ComputeRequest, api.ComputeResponse](httpClient, baseURL+SessionServiceComputeProcedure, opts...),
		validate:      connect.NewClient[api.ValidateRequest, api.ValidateResponse](httpClient, baseURL+SessionServiceValidateProcedure, opts...),
		finalize:      connect.NewClient[api.FinalizeRequest, api.FinalizeResponse](httpClient, baseURL+SessionServiceFinalizeProcedure, opts...),
		getSession:    connect.NewClient[api.GetSessionRequest, api.GetSessionResponse](httpClient, baseURL+SessionServiceGetSessionProcedure, opts...),
		listSessions:  connect.NewClient[api.ListSessionsRequest, api.ListSessionsResponse](httpClient, baseURL+SessionServiceListSessionsProcedure, opts...),
		deleteSession: connect.NewClient[api.DeleteSessionRequest, api.DeleteSessionResponse](httpClient, baseURL+SessionServiceDeleteSessionProcedure, opts...),
		replaySession: connect.NewClient[api.ReplaySessionRequest, api.ReplaySessionResponse](httpClient, baseURL+SessionServiceReplaySessionProcedure, opts...),
	}
}

func (c *SessionServiceClient) Compute(ctx context.Context, req *connect.Request[api.ComputeRequest]) (*connect.Response[api.ComputeResponse], error) {
	return c.compute.CallUnary(ctx, req)
}

func (c *SessionServiceClient) Validate(ctx context.Context, req *connect.Request[api.ValidateRequest]) (*connect.Response[api.ValidateResponse], error) {
	return c.validate.CallUnary(ctx, req)
}

func (c *SessionServiceClient) Finalize(ctx context.Context, req *connect.Request[api.FinalizeRequest]) (*connect.Response[api.FinalizeResponse], error) {
	return c.finalize.CallUnary(ctx, req)
}

func (c *SessionServiceClient) GetSession(ctx context.Context, req *connect.Request[api.GetSessionRequest]) (*connect.Response[api.GetSessionResponse], error) {
	return c.getSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) ListSessions(ctx context.Context, req *connect.Request[api.ListSessionsRequest]) (*connect.Response[api.ListSessionsResponse], error) {
	return c.listSessions.CallUnary(ctx, req)
}

func (c *SessionServiceClient) DeleteSession(ctx context.Context, req *connect.Request[api.DeleteSessionRequest]) (*connect.Response[api.DeleteSessionResponse], error) {
	return c.deleteSession.CallUnary(ctx, req)
}

func (c *SessionServiceClient) ReplaySession(ctx context.Context, req *connect.Request[api.ReplaySessionRequest]) (*connect.Response[api.ReplaySessionResponse], error) {
	return c.replaySession.CallUnary(ctx, req)
}

// GroupServiceClient is a client for the GroupService service.
type GroupServiceClient struct {
	createGroup      *connect.Client[api.CreateGroupRequest, api.CreateGroupResponse]
	getGroup         *connect.Client[api.GetGroupRequest, api.GetGroupResponse]
	listGroups       *connect.Client[api.ListGroupsRequest, api.ListGroupsResponse]
	deleteGroup      *connect.Client[api.DeleteGroupRequest, api.DeleteGroupResponse]
	recordSettlement *connect.Client[api.RecordSettlementRequest, api.RecordSettlementResponse]
	listSettlements  *connect.Client[api.ListSettlementsRequest, api.ListSettlementsResponse]
	getBalances      *connect.Client[api.GetBalancesRequest, api.GetBalancesResponse]
}

// NewGroupServiceClient constructs a client for the GroupService service.
func NewGroupServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *GroupServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = withCodec(opts, connect.ClientOption(connect.WithCodec(api.Codec{})))
	return &GroupServiceClient{
		createGroup:      connect.NewClient[api.CreateGroupRequest, api.CreateGroupResponse](httpClient, baseURL+GroupServiceCreateGroupProcedure, opts...),
		getGroup:         connect.NewClient[api.GetGroupRequest, api.GetGroupResponse](httpClient, baseURL+GroupServiceGetGroupProcedure, opts...),
		listGroups:       connect.NewClient[api.ListGroupsRequest, api.ListGroupsResponse](httpClient, baseURL+GroupServiceListGroupsProcedure, opts...),
		deleteGroup:      connect.NewClient[api.DeleteGroupRequest, api.DeleteGroupResponse](httpClient, baseURL+GroupServiceDeleteGroupProcedure, opts...),
		recordSettlement: connect.NewClient[api.RecordSettlementRequest, api.RecordSettlementResponse](httpClient, baseURL+GroupServiceRecordSettlementProcedure, opts...),
		listSettlements:  connect.NewClient[api.ListSettlementsRequest, api.ListSettlementsResponse](httpClient, baseURL+GroupServiceListSettlementsProcedure, opts...),
		getBalances:      connect.NewClient[api.GetBalancesRequest, api.GetBalancesResponse](httpClient, baseURL+GroupServiceGetBalancesProcedure, opts...),
	}
}

func (c *GroupServiceClient) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	return c.createGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	return c.getGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	return c.listGroups.CallUnary(ctx, req)
}

func (c *GroupServiceClient) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	return c.deleteGroup.CallUnary(ctx, req)
}

func (c *GroupServiceClient) RecordSettlement(ctx context.Context, req *connect.Request[api.RecordSettlementRequest]) (*connect.Response[api.RecordSettlementResponse], error) {
	return c.recordSettlement.CallUnary(ctx, req)
}

func (c *GroupServiceClient) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	return c.listSettlements.CallUnary(ctx, req)
}

func (c *GroupServiceClient) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	return c.getBalances.CallUnary(ctx, req)
}
