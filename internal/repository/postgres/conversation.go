package postgres

import (
	"context"
	"database/sql"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"fmt"

	"github.com/sirupsen/logrus"
)

var conversationUpdates = map[db.ConversationField]string{
	db.ConversationFieldTitle:     `UPDATE conversations SET title = $1 WHERE conv_id = $2`,
	db.ConversationFieldActive:    `UPDATE conversations SET active = $1 WHERE conv_id = $2`,
	db.ConversationFieldSummary:   `UPDATE conversations SET summary = $1 WHERE conv_id = $2`,
	db.ConversationFieldModel:     `UPDATE conversations SET model = $1 WHERE conv_id = $2`,
	db.ConversationFieldAssistant: `UPDATE conversations SET assistant = $1 WHERE conv_id = $2`,
	db.ConversationFieldDocument:  `UPDATE conversations SET doc_id = $1 WHERE conv_id = $2`,
}

const conversationColumns = `conv_id, user_id, doc_id, title, active, summary, model, assistant, created_at`

func scanConversation(row interface{ Scan(...any) error }) (*db.Conversation, error) {
	var c db.Conversation
	var docID, assistant sql.NullInt64
	if err := row.Scan(&c.ID, &c.UserID, &docID, &c.Title, &c.Active, &c.Summary, &c.Model, &assistant, &c.CreatedAt); err != nil {
		return nil, err
	}
	c.DocID = intPtr(docID)
	c.AssistantID = intPtr(assistant)
	return &c, nil
}

// CreateConversation creates a new conversation for a user
func (s *Store) CreateConversation(ctx context.Context, nc db.NewConversation) (*db.Conversation, error) {
	var conv *db.Conversation
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `
		INSERT INTO conversations (user_id, doc_id, title, model, assistant)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+conversationColumns,
			nc.UserID, nullInt(nc.DocID), nc.Title, nc.Model, nullInt(nc.AssistantID))
		c, err := scanConversation(row)
		if err != nil {
			return fmt.Errorf("error creating conversation: %w", err)
		}
		conv = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{"conversation_id": conv.ID, "user_id": conv.UserID}).Info("Created new conversation")
	return conv, nil
}

// GetConversation retrieves a specific conversation
func (s *Store) GetConversation(ctx context.Context, id int64) (*db.Conversation, error) {
	var conv *db.Conversation
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		c, err := scanConversation(conn.QueryRowContext(ctx, `SELECT `+conversationColumns+` FROM conversations WHERE conv_id = $1`, id))
		if err != nil {
			return notFound(err, "conversation", id)
		}
		conv = c
		return nil
	})
	return conv, err
}

// ListConversations returns a user's active conversations, newest first
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]db.Conversation, error) {
	var conversations []db.Conversation
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE user_id = $1 AND active
		ORDER BY conv_id DESC`, userID)
		if err != nil {
			return fmt.Errorf("error querying conversations: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanConversation(rows)
			if err != nil {
				return fmt.Errorf("error scanning conversation: %w", err)
			}
			conversations = append(conversations, *c)
		}
		return rows.Err()
	})
	return conversations, err
}

// UpdateConversationField updates a single whitelisted column
func (s *Store) UpdateConversationField(ctx context.Context, id int64, field db.ConversationField, value any) error {
	stmt, ok := conversationUpdates[field]
	if !ok {
		return fmt.Errorf("%w: conversation.%s", db.ErrUnknownField, field)
	}
	return s.updateField(ctx, "conversation", stmt, field.Kind(), value, id)
}

// DeleteConversation deletes a conversation and its history in one transaction
func (s *Store) DeleteConversation(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM history WHERE conv_id = $1`, id); err != nil {
			return fmt.Errorf("error deleting history: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM conversations WHERE conv_id = $1`, id)
		if err != nil {
			return fmt.Errorf("error deleting conversation: %w", err)
		}
		return expectRow(res, "conversation", id)
	})
}
