package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/session"
	"github.com/mmynk/tabsplit/internal/storage"
)

// CreateSession persists a finalized session with its inputs and result.
func (s *SQLiteStore) CreateSession(ctx context.Context, f *session.Finalized) error {
	if f.Result == nil {
		return fmt.Errorf("failed to insert session: no result")
	}
	// Generate ID if not set
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.FinalizedAt.IsZero() {
		f.FinalizedAt = time.Now().UTC()
	}
	if f.Name == "" {
		f.Name = generateTitle(f.Participants, f.FinalizedAt)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, name, slug, currency, payer_id, group_id, grand_total, input_digest, finalized_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, slug.Make(f.Name), f.Currency, f.PayerID, nullString(f.GroupID),
		f.Result.GrandTotal, f.InputDigest, f.FinalizedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}

	for i, p := range f.Participants {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_participants (session_id, participant_id, name, position, amount_owed)
			 VALUES (?, ?, ?, ?, ?)`,
			f.ID, p.ID, p.Name, i, f.Result.TotalFor(p.ID),
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	for i, item := range f.Items {
		alloc, ok := f.Result.Item(item.ID)
		if !ok {
			return fmt.Errorf("failed to insert item %s: no allocation in result", item.ID)
		}
		assignment, assigned := f.Assignments[item.ID]

		_, err = tx.ExecContext(ctx,
			`INSERT INTO session_items (session_id, item_id, name, kind, position, unit_price, quantity, total_price,
			                            has_assignment, split_mode, alloc_kind, alloc_mode, basis)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, item.ID, item.Name, string(item.Kind), i, item.UnitPrice, item.Quantity, item.TotalPrice,
			assigned, string(assignment.Mode), string(alloc.Kind), string(alloc.Mode), alloc.Basis,
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		if assigned {
			for _, id := range assignment.ParticipantIDs() {
				units := int64(1)
				if assignment.Mode == calculator.SplitCount {
					units = assignment.Counts[id]
				}
				_, err = tx.ExecContext(ctx,
					"INSERT INTO item_assignments (session_id, item_id, participant_id, units) VALUES (?, ?, ?, ?)",
					f.ID, item.ID, id, units,
				)
				if err != nil {
					return fmt.Errorf("failed to insert item assignment: %w", err)
				}
			}
		}

		for j, share := range alloc.Shares {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO allocations (session_id, item_id, participant_id, position, amount, units)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				f.ID, item.ID, share.ParticipantID, j, share.Amount, share.Units,
			)
			if err != nil {
				return fmt.Errorf("failed to insert allocation: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetSession retrieves a finalized session by ID, including its inputs and
// its stored result.
func (s *SQLiteStore) GetSession(ctx context.Context, sessionID string) (*session.Finalized, error) {
	f := &session.Finalized{
		Participants: []calculator.Participant{},
		Items:        []calculator.LineItem{},
		Assignments:  map[string]calculator.Assignment{},
		Result: &calculator.AllocationResult{
			Items:        []calculator.ItemAllocation{},
			Participants: []calculator.ParticipantTotal{},
		},
	}

	var (
		groupID     sql.NullString
		finalizedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, currency, payer_id, group_id, grand_total, input_digest, finalized_at
		 FROM sessions WHERE id = ?`,
		sessionID,
	).Scan(&f.ID, &f.Name, &f.Currency, &f.PayerID, &groupID, &f.Result.GrandTotal, &f.InputDigest, &finalizedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: session %s", storage.ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	f.GroupID = groupID.String
	f.FinalizedAt = time.Unix(0, finalizedAt).UTC()

	if err := s.loadParticipants(ctx, f); err != nil {
		return nil, err
	}
	if err := s.loadItems(ctx, f); err != nil {
		return nil, err
	}
	if err := s.loadAssignments(ctx, f); err != nil {
		return nil, err
	}
	if err := s.loadAllocations(ctx, f); err != nil {
		return nil, err
	}

	return f, nil
}

func (s *SQLiteStore) loadParticipants(ctx context.Context, f *session.Finalized) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT participant_id, name, amount_owed FROM session_participants WHERE session_id = ? ORDER BY position",
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var total calculator.ParticipantTotal
		if err := rows.Scan(&total.ParticipantID, &total.Name, &total.Amount); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		f.Participants = append(f.Participants, calculator.Participant{ID: total.ParticipantID, Name: total.Name})
		f.Result.Participants = append(f.Result.Participants, total)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate participants: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadItems(ctx context.Context, f *session.Finalized) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, name, kind, unit_price, quantity, total_price, has_assignment, split_mode,
		        alloc_kind, alloc_mode, basis
		 FROM session_items WHERE session_id = ? ORDER BY position`,
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			item                          calculator.LineItem
			alloc                         calculator.ItemAllocation
			assigned                      bool
			kind, mode, allocKind, allocM string
		)
		if err := rows.Scan(&item.ID, &item.Name, &kind, &item.UnitPrice, &item.Quantity, &item.TotalPrice,
			&assigned, &mode, &allocKind, &allocM, &alloc.Basis); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		item.Kind = calculator.ItemKind(kind)
		f.Items = append(f.Items, item)

		if assigned {
			a := calculator.Assignment{Mode: calculator.SplitMode(mode)}
			if a.Mode == calculator.SplitCount {
				a.Counts = map[string]int64{}
			}
			f.Assignments[item.ID] = a
		}

		alloc.ItemID = item.ID
		alloc.Name = item.Name
		alloc.Kind = calculator.ItemKind(allocKind)
		alloc.Mode = calculator.SplitMode(allocM)
		alloc.Total = item.TotalPrice
		alloc.Shares = []calculator.Share{}
		f.Result.Items = append(f.Result.Items, alloc)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate items: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadAssignments(ctx context.Context, f *session.Finalized) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, participant_id, units FROM item_assignments
		 WHERE session_id = ? ORDER BY item_id, participant_id`,
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get item assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID, participantID string
			units                 int64
		)
		if err := rows.Scan(&itemID, &participantID, &units); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		a := f.Assignments[itemID]
		if a.Mode == calculator.SplitCount {
			a.Counts[participantID] = units
		} else {
			a.Participants = append(a.Participants, participantID)
		}
		f.Assignments[itemID] = a
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate assignments: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadAllocations(ctx context.Context, f *session.Finalized) error {
	index := make(map[string]int, len(f.Result.Items))
	for i, it := range f.Result.Items {
		index[it.ItemID] = i
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id, participant_id, amount, units FROM allocations
		 WHERE session_id = ? ORDER BY item_id, position`,
		f.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get allocations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			itemID string
			share  calculator.Share
		)
		if err := rows.Scan(&itemID, &share.ParticipantID, &share.Amount, &share.Units); err != nil {
			return fmt.Errorf("failed to scan allocation: %w", err)
		}
		i, ok := index[itemID]
		if !ok {
			return fmt.Errorf("allocation for unknown item %s", itemID)
		}
		f.Result.Items[i].Shares = append(f.Result.Items[i].Shares, share)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate allocations: %w", err)
	}
	return nil
}

// ListSessions returns session summaries, most recently finalized first.
func (s *SQLiteStore) ListSessions(ctx context.Context, filter storage.SessionFilter) ([]*models.SessionSummary, error) {
	query := `SELECT s.id, s.name, s.slug, s.currency, s.group_id, s.payer_id, s.grand_total, s.finalized_at,
	                 (SELECT COUNT(*) FROM session_participants p WHERE p.session_id = s.id)
	          FROM sessions s`
	var args []any
	if filter.GroupID != "" {
		query += " WHERE s.group_id = ?"
		args = append(args, filter.GroupID)
	}
	query += " ORDER BY s.finalized_at DESC, s.id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var summaries []*models.SessionSummary
	for rows.Next() {
		summary := &models.SessionSummary{}
		var (
			groupID     sql.NullString
			finalizedAt int64
		)
		if err := rows.Scan(&summary.ID, &summary.Name, &summary.Slug, &summary.Currency, &groupID,
			&summary.PayerID, &summary.GrandTotal, &finalizedAt, &summary.ParticipantCount); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		summary.GroupID = groupID.String
		summary.FinalizedAt = time.Unix(0, finalizedAt).Unix()
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sessions: %w", err)
	}

	return summaries, nil
}

// DeleteSession removes a session with its items, assignments and allocations.
func (s *SQLiteStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// Check if session exists
	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM sessions WHERE id = ?", sessionID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: session %s", storage.ErrNotFound, sessionID)
	}
	if err != nil {
		return fmt.Errorf("failed to check session existence: %w", err)
	}

	for _, table := range []string{"allocations", "item_assignments", "session_items", "session_participants"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE session_id = ?", sessionID); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
