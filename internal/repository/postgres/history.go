package postgres

import (
	"context"
	"database/sql"
	"docchat/internal/repository/db"
	"fmt"
)

var historyUpdates = map[db.HistoryField]string{
	db.HistoryFieldFeedback: `UPDATE history SET feedback = $1 WHERE hist_id = $2`,
	db.HistoryFieldSources:  `UPDATE history SET sources = $1 WHERE hist_id = $2`,
}

const historyColumns = `hist_id, conv_id, prompt, answer, followup, feedback, sources, created_at`

func scanHistory(row interface{ Scan(...any) error }) (*db.HistoryTurn, error) {
	var h db.HistoryTurn
	var convID sql.NullInt64
	if err := row.Scan(&h.ID, &convID, &h.Prompt, &h.Answer, &h.FollowUp, &h.Feedback, &h.Sources, &h.CreatedAt); err != nil {
		return nil, err
	}
	h.ConversationID = intPtr(convID)
	return &h, nil
}

// AddHistory appends one turn and returns its id
func (s *Store) AddHistory(ctx context.Context, convID *int64, prompt, answer, followup string, feedback int) (int64, error) {
	var id int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		err := conn.QueryRowContext(ctx, `
		INSERT INTO history (conv_id, prompt, answer, followup, feedback)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING hist_id`, nullInt(convID), prompt, answer, followup, feedback).Scan(&id)
		if err != nil {
			return fmt.Errorf("error adding history: %w", err)
		}
		return nil
	})
	return id, err
}

// GetHistory returns up to limit turns newest-first; limit <= 0 returns all
func (s *Store) GetHistory(ctx context.Context, convID int64, limit int) ([]db.HistoryTurn, error) {
	query := `SELECT ` + historyColumns + ` FROM history WHERE conv_id = $1 ORDER BY hist_id DESC`
	args := []any{convID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	var turns []db.HistoryTurn
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("error querying history: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			h, err := scanHistory(rows)
			if err != nil {
				return fmt.Errorf("error scanning history: %w", err)
			}
			turns = append(turns, *h)
		}
		return rows.Err()
	})
	return turns, err
}

// GetHistoryTurn retrieves a single turn
func (s *Store) GetHistoryTurn(ctx context.Context, id int64) (*db.HistoryTurn, error) {
	var turn *db.HistoryTurn
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		h, err := scanHistory(conn.QueryRowContext(ctx, `SELECT `+historyColumns+` FROM history WHERE hist_id = $1`, id))
		if err != nil {
			return notFound(err, "history", id)
		}
		turn = h
		return nil
	})
	return turn, err
}

// UpdateHistoryField updates feedback or sources
func (s *Store) UpdateHistoryField(ctx context.Context, id int64, field db.HistoryField, value any) error {
	stmt, ok := historyUpdates[field]
	if !ok {
		return fmt.Errorf("%w: history.%s", db.ErrUnknownField, field)
	}
	return s.updateField(ctx, "history", stmt, field.Kind(), value, id)
}

// DeleteHistoryTurn removes one turn
func (s *Store) DeleteHistoryTurn(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "history", `DELETE FROM history WHERE hist_id = $1`, id)
}

// ClearHistory removes every turn of a conversation and reports how many were deleted
func (s *Store) ClearHistory(ctx context.Context, convID int64) (int64, error) {
	var n int64
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, `DELETE FROM history WHERE conv_id = $1`, convID)
		if err != nil {
			return fmt.Errorf("error clearing history: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}
