// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/session"
)

// ErrNotFound is returned (wrapped) when a record does not exist.
var ErrNotFound = errors.New("not found")

// SessionFilter narrows a session history listing.
type SessionFilter struct {
	// GroupID limits the listing to one group's sessions when set.
	GroupID string
	// Limit caps the number of sessions returned. Zero means no limit.
	Limit int
}

// Store defines the interface for session, group and settlement storage.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateSession persists a finalized session: its inputs, its result and
	// its input digest. An empty ID is assigned by the store.
	CreateSession(ctx context.Context, f *session.Finalized) error

	// GetSession retrieves a finalized session by its ID.
	// Returns an error wrapping ErrNotFound if the session does not exist.
	GetSession(ctx context.Context, sessionID string) (*session.Finalized, error)

	// ListSessions returns session summaries, most recently finalized first.
	ListSessions(ctx context.Context, filter SessionFilter) ([]*models.SessionSummary, error)

	// DeleteSession removes a session and everything stored with it.
	DeleteSession(ctx context.Context, sessionID string) error

	// CreateGroup persists a new group with its members.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroups returns all groups, newest first.
	ListGroups(ctx context.Context) ([]*models.Group, error)

	// DeleteGroup removes a group. Its sessions are kept but detached.
	DeleteGroup(ctx context.Context, groupID string) error

	// AddGroupMembers appends members that are not yet in the group.
	AddGroupMembers(ctx context.Context, groupID string, members []calculator.Participant) error

	// CreateSettlement persists a settlement between two group members.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error

	// ListSettlementsByGroup returns a group's settlements, newest first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// Close releases any resources held by the store.
	Close() error
}
