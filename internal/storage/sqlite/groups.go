package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/storage"
)

// CreateGroup persists a new group with its members.
func (s *SQLiteStore) CreateGroup(ctx context.Context, group *models.Group) error {
	// Generate ID if not set
	if group.ID == "" {
		group.ID = uuid.New().String()
	}
	if group.CreatedAt == 0 {
		group.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT INTO groups (id, name, currency, created_at) VALUES (?, ?, ?, ?)",
		group.ID, group.Name, group.Currency, group.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	if err := insertMembers(ctx, tx, group.ID, 0, group.Members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, groupID string, start int, members []calculator.Participant) error {
	pos := start
	for _, m := range members {
		res, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO group_members (group_id, member_id, name, position) VALUES (?, ?, ?, ?)",
			groupID, m.ID, m.Name, pos,
		)
		if err != nil {
			return fmt.Errorf("failed to insert group member: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			pos++
		}
	}
	return nil
}

// GetGroup retrieves a group by ID, including its members.
func (s *SQLiteStore) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	group := &models.Group{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, currency, created_at FROM groups WHERE id = ?",
		groupID,
	).Scan(&group.ID, &group.Name, &group.Currency, &group.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: group %s", storage.ErrNotFound, groupID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	members, err := s.members(ctx, "WHERE group_id = ?", groupID)
	if err != nil {
		return nil, err
	}
	group.Members = members[groupID]

	return group, nil
}

// ListGroups returns all groups with their members, newest first.
func (s *SQLiteStore) ListGroups(ctx context.Context) ([]*models.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, currency, created_at FROM groups ORDER BY created_at DESC, id",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	for rows.Next() {
		group := &models.Group{}
		if err := rows.Scan(&group.ID, &group.Name, &group.Currency, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate groups: %w", err)
	}
	rows.Close()

	members, err := s.members(ctx, "")
	if err != nil {
		return nil, err
	}
	for _, group := range groups {
		group.Members = members[group.ID]
	}

	return groups, nil
}

// members loads group members keyed by group ID, in join order.
func (s *SQLiteStore) members(ctx context.Context, where string, args ...any) (map[string][]calculator.Participant, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT group_id, member_id, name FROM group_members "+where+" ORDER BY group_id, position",
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get group members: %w", err)
	}
	defer rows.Close()

	out := map[string][]calculator.Participant{}
	for rows.Next() {
		var (
			groupID string
			member  calculator.Participant
		)
		if err := rows.Scan(&groupID, &member.ID, &member.Name); err != nil {
			return nil, fmt.Errorf("failed to scan group member: %w", err)
		}
		out[groupID] = append(out[groupID], member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate group members: %w", err)
	}
	return out, nil
}

// DeleteGroup removes a group, its members and its settlements. Sessions
// owned by the group are kept and detached.
func (s *SQLiteStore) DeleteGroup(ctx context.Context, groupID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := groupExists(ctx, tx, groupID); err != nil {
		return err
	}

	statements := []string{
		"UPDATE sessions SET group_id = NULL WHERE group_id = ?",
		"DELETE FROM settlements WHERE group_id = ?",
		"DELETE FROM group_members WHERE group_id = ?",
		"DELETE FROM groups WHERE id = ?",
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, groupID); err != nil {
			return fmt.Errorf("failed to delete group: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddGroupMembers appends members that are not already in the group.
func (s *SQLiteStore) AddGroupMembers(ctx context.Context, groupID string, members []calculator.Participant) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := groupExists(ctx, tx, groupID); err != nil {
		return err
	}

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM group_members WHERE group_id = ?",
		groupID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("failed to get member position: %w", err)
	}

	if err := insertMembers(ctx, tx, groupID, next, members); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func groupExists(ctx context.Context, tx *sql.Tx, groupID string) error {
	var exists int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM groups WHERE id = ?", groupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: group %s", storage.ErrNotFound, groupID)
	}
	if err != nil {
		return fmt.Errorf("failed to check group existence: %w", err)
	}
	return nil
}
