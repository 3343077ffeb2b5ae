package api

// LineItem is one priced receipt line. Amounts are minor currency units.
type LineItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unitPrice"`
	Quantity   int64  `json:"quantity"`
	TotalPrice int64  `json:"totalPrice"`
	Kind       string `json:"kind,omitempty"`
}

// Participant is one person in a session or a group.
type Participant struct {
	UniqueID string `json:"uniqueId"`
	Username string `json:"username"`
}

// ItemAssignment is the split rule for one item. Mode is "equal" (uses
// ParticipantIDs) or "count" (uses Counts).
type ItemAssignment struct {
	ItemID         string           `json:"itemId"`
	Mode           string           `json:"mode"`
	ParticipantIDs []string         `json:"participantIds,omitempty"`
	Counts         map[string]int64 `json:"counts,omitempty"`
}

// Receipt is the full computation input.
type Receipt struct {
	Items        []LineItem       `json:"items"`
	Participants []Participant    `json:"participants"`
	Assignments  []ItemAssignment `json:"assignments"`
}

// ParticipantTotal is what one participant owes.
type ParticipantTotal struct {
	UniqueID   string `json:"uniqueId"`
	Username   string `json:"username"`
	AmountOwed int64  `json:"amountOwed"`
	// Display is AmountOwed formatted in the session currency.
	Display string `json:"display,omitempty"`
}

// ItemTotal is one item's total and how it was split.
type ItemTotal struct {
	ItemID string `json:"itemId"`
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Mode   string `json:"mode"`
	Total  int64  `json:"total"`
}

// Totals summarizes a computation.
type Totals struct {
	GrandTotal    int64              `json:"grandTotal"`
	ByParticipant []ParticipantTotal `json:"byParticipant"`
	ByItem        []ItemTotal        `json:"byItem"`
}

// Allocation is one participant's share of one item. The exact share ratio is
// ShareUnits / ShareBasis.
type Allocation struct {
	ItemID        string `json:"itemId"`
	ParticipantID string `json:"participantId"`
	ShareAmount   int64  `json:"shareAmount"`
	ShareUnits    int64  `json:"shareUnits"`
	ShareBasis    int64  `json:"shareBasis"`
}

// Issue is one validation problem.
type Issue struct {
	ItemID        string `json:"itemId,omitempty"`
	ParticipantID string `json:"participantId,omitempty"`
	Kind          string `json:"kind"`
	Message       string `json:"message"`
}

// Session is a finalized session with its inputs and allocation.
type Session struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	Currency     string           `json:"currency"`
	PayerID      string           `json:"payerId"`
	GroupID      string           `json:"groupId,omitempty"`
	InputDigest  string           `json:"inputDigest"`
	FinalizedAt  int64            `json:"finalizedAt"`
	Items        []LineItem       `json:"items"`
	Participants []Participant    `json:"participants"`
	Assignments  []ItemAssignment `json:"assignments"`
	Totals       Totals           `json:"totals"`
	Allocations  []Allocation     `json:"allocations"`
}

// SessionSummary is one entry of the session history.
type SessionSummary struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Slug             string `json:"slug"`
	Currency         string `json:"currency"`
	GroupID          string `json:"groupId,omitempty"`
	PayerID          string `json:"payerId"`
	GrandTotal       int64  `json:"grandTotal"`
	ParticipantCount int32  `json:"participantCount"`
	FinalizedAt      int64  `json:"finalizedAt"`
}

type ComputeRequest struct {
	Receipt
	Currency string `json:"currency,omitempty"`
}

type ComputeResponse struct {
	Totals      Totals       `json:"totals"`
	Allocations []Allocation `json:"allocations"`
	CacheKey    string       `json:"cacheKey"`
	Cached      bool         `json:"cached"`
}

type ValidateRequest struct {
	Receipt
}

type ValidateResponse struct {
	Valid       bool    `json:"valid"`
	Issues      []Issue `json:"issues"`
	InputDigest string  `json:"inputDigest,omitempty"`
}

type FinalizeRequest struct {
	Receipt
	Name     string `json:"name,omitempty"`
	Currency string `json:"currency,omitempty"`
	PayerID  string `json:"payerId"`
	GroupID  string `json:"groupId,omitempty"`
}

type FinalizeResponse struct {
	Session Session `json:"session"`
}

type GetSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type GetSessionResponse struct {
	Session Session `json:"session"`
}

type ListSessionsRequest struct {
	GroupID string `json:"groupId,omitempty"`
	// Limit defaults to 5 and is clamped to 100. All disables it.
	Limit int32 `json:"limit,omitempty"`
	All   bool  `json:"all,omitempty"`
}

type ListSessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

type DeleteSessionRequest struct {
	SessionID string `json:"sessionId"`
}

type DeleteSessionResponse struct{}

type ReplaySessionRequest struct {
	SessionID string `json:"sessionId"`
}

type ReplaySessionResponse struct {
	Verified       bool   `json:"verified"`
	DigestMatch    bool   `json:"digestMatch"`
	ResultMatch    bool   `json:"resultMatch"`
	StoredDigest   string `json:"storedDigest"`
	ComputedDigest string `json:"computedDigest"`
}

// Group is a reusable participant list.
type Group struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Currency  string        `json:"currency"`
	Members   []Participant `json:"members"`
	CreatedAt int64         `json:"createdAt"`
}

type CreateGroupRequest struct {
	Name    string        `json:"name"`
	Members []Participant `json:"members"`
	// Currency is the ISO 4217 code every session and settlement of the
	// group is kept in. Empty means the server default.
	Currency string `json:"currency,omitempty"`
}

type CreateGroupResponse struct {
	Group Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"groupId"`
}

type GetGroupResponse struct {
	Group    Group            `json:"group"`
	Sessions []SessionSummary `json:"sessions"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []Group `json:"groups"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"groupId"`
}

type DeleteGroupResponse struct{}

// Settlement is a payment between two group members.
type Settlement struct {
	ID        string `json:"id"`
	GroupID   string `json:"groupId"`
	FromID    string `json:"fromId"`
	ToID      string `json:"toId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	CreatedAt int64  `json:"createdAt"`
	Note      string `json:"note,omitempty"`
}

type RecordSettlementRequest struct {
	GroupID string `json:"groupId"`
	FromID  string `json:"fromId"`
	ToID    string `json:"toId"`
	// Amount is a decimal string in Currency, e.g. "12.50".
	Amount   string `json:"amount"`
	Currency string `json:"currency,omitempty"`
	Note     string `json:"note,omitempty"`
}

type RecordSettlementResponse struct {
	Settlement Settlement `json:"settlement"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"groupId"`
}

type ListSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

// MemberBalance is a member's position across a group's sessions. Positive
// NetBalance means the member is owed money.
type MemberBalance struct {
	MemberID   string `json:"memberId"`
	Username   string `json:"username"`
	NetBalance int64  `json:"netBalance"`
	TotalPaid  int64  `json:"totalPaid"`
	TotalOwed  int64  `json:"totalOwed"`
}

// Debt is one simplified payment that settles the group.
type Debt struct {
	FromID string `json:"fromId"`
	ToID   string `json:"toId"`
	Amount int64  `json:"amount"`
}

type GetBalancesRequest struct {
	GroupID string `json:"groupId"`
}

// GetBalancesResponse amounts are minor units of Currency.
type GetBalancesResponse struct {
	Currency string          `json:"currency"`
	Balances []MemberBalance `json:"balances"`
	Debts    []Debt          `json:"debts"`
}
