package postgres

import (
	"context"
	"database/sql"
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var modelUpdates = map[db.ModelField]string{
	db.ModelFieldName:        `UPDATE models SET name = $1 WHERE model_id = $2`,
	db.ModelFieldDescription: `UPDATE models SET description = $1 WHERE model_id = $2`,
	db.ModelFieldPriceIn:     `UPDATE models SET price_in = $1 WHERE model_id = $2`,
	db.ModelFieldPriceOut:    `UPDATE models SET price_out = $1 WHERE model_id = $2`,
}

var assistantUpdates = map[db.AssistantField]string{
	db.AssistantFieldName:         `UPDATE assistants SET name = $1 WHERE assist_id = $2`,
	db.AssistantFieldDescription:  `UPDATE assistants SET description = $1 WHERE assist_id = $2`,
	db.AssistantFieldWelcome:      `UPDATE assistants SET welcome = $1 WHERE assist_id = $2`,
	db.AssistantFieldSystemPrompt: `UPDATE assistants SET system_prompt = $1 WHERE assist_id = $2`,
}

const (
	modelColumns     = `model_id, name, description, price_in, price_out`
	assistantColumns = `assist_id, user_id, name, description, welcome, system_prompt`
)

func scanModel(row interface{ Scan(...any) error }) (*db.Model, error) {
	var m db.Model
	if err := row.Scan(&m.ID, &m.Name, &m.Description, &m.PriceIn, &m.PriceOut); err != nil {
		return nil, err
	}
	return &m, nil
}

func scanAssistant(row interface{ Scan(...any) error }) (*db.Assistant, error) {
	var a db.Assistant
	if err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Description, &a.Welcome, &a.SystemPrompt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Models

func (s *Store) CreateModel(ctx context.Context, m db.Model) (*db.Model, error) {
	var model *db.Model
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		created, err := scanModel(conn.QueryRowContext(ctx, `
		INSERT INTO models (name, description, price_in, price_out)
		VALUES ($1, $2, $3, $4)
		RETURNING `+modelColumns, m.Name, m.Description, m.PriceIn, m.PriceOut))
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("model %s: %w", m.Name, db.ErrDuplicate)
			}
			return fmt.Errorf("error creating model: %w", err)
		}
		model = created
		return nil
	})
	return model, err
}

func (s *Store) GetModel(ctx context.Context, id int64) (*db.Model, error) {
	var model *db.Model
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		m, err := scanModel(conn.QueryRowContext(ctx, `SELECT `+modelColumns+` FROM models WHERE model_id = $1`, id))
		if err != nil {
			return notFound(err, "model", id)
		}
		model = m
		return nil
	})
	return model, err
}

func (s *Store) ListModels(ctx context.Context) ([]db.Model, error) {
	var models []db.Model
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT `+modelColumns+` FROM models ORDER BY model_id`)
		if err != nil {
			return fmt.Errorf("error querying models: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanModel(rows)
			if err != nil {
				return fmt.Errorf("error scanning model: %w", err)
			}
			models = append(models, *m)
		}
		return rows.Err()
	})
	return models, err
}

func (s *Store) UpdateModelField(ctx context.Context, id int64, field db.ModelField, value any) error {
	stmt, ok := modelUpdates[field]
	if !ok {
		return fmt.Errorf("%w: model.%s", db.ErrUnknownField, field)
	}
	return s.updateField(ctx, "model", stmt, field.Kind(), value, id)
}

func (s *Store) DeleteModel(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "model", `DELETE FROM models WHERE model_id = $1`, id)
}

// SeedModels inserts the configured chat models that are not in the table yet
func SeedModels(ctx context.Context, store db.ModelStore, models []config.ChatModel) error {
	seeded := 0
	for _, m := range models {
		_, err := store.CreateModel(ctx, db.Model{Name: m.ID, Description: m.Description, PriceIn: m.PriceIn, PriceOut: m.PriceOut})
		if errors.Is(err, db.ErrDuplicate) {
			continue
		}
		if err != nil {
			return fmt.Errorf("error seeding model %s: %w", m.ID, err)
		}
		seeded++
	}
	logger.Log.WithFields(logrus.Fields{"seeded": seeded, "configured": len(models)}).Info("Model catalog seeded")
	return nil
}

// Assistants

func (s *Store) CreateAssistant(ctx context.Context, a db.Assistant) (*db.Assistant, error) {
	var assistant *db.Assistant
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		created, err := scanAssistant(conn.QueryRowContext(ctx, `
		INSERT INTO assistants (user_id, name, description, welcome, system_prompt)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+assistantColumns, a.UserID, a.Name, a.Description, a.Welcome, a.SystemPrompt))
		if err != nil {
			return fmt.Errorf("error creating assistant: %w", err)
		}
		assistant = created
		return nil
	})
	return assistant, err
}

func (s *Store) GetAssistant(ctx context.Context, id int64) (*db.Assistant, error) {
	var assistant *db.Assistant
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		a, err := scanAssistant(conn.QueryRowContext(ctx, `SELECT `+assistantColumns+` FROM assistants WHERE assist_id = $1`, id))
		if err != nil {
			return notFound(err, "assistant", id)
		}
		assistant = a
		return nil
	})
	return assistant, err
}

func (s *Store) ListAssistants(ctx context.Context, userID int64) ([]db.Assistant, error) {
	var assistants []db.Assistant
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `SELECT `+assistantColumns+` FROM assistants WHERE user_id = $1 ORDER BY assist_id`, userID)
		if err != nil {
			return fmt.Errorf("error querying assistants: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			a, err := scanAssistant(rows)
			if err != nil {
				return fmt.Errorf("error scanning assistant: %w", err)
			}
			assistants = append(assistants, *a)
		}
		return rows.Err()
	})
	return assistants, err
}

func (s *Store) UpdateAssistantField(ctx context.Context, id int64, field db.AssistantField, value any) error {
	stmt, ok := assistantUpdates[field]
	if !ok {
		return fmt.Errorf("%w: assistant.%s", db.ErrUnknownField, field)
	}
	return s.updateField(ctx, "assistant", stmt, field.Kind(), value, id)
}

func (s *Store) DeleteAssistant(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "assistant", `DELETE FROM assistants WHERE assist_id = $1`, id)
}

// Errors

func (s *Store) SaveError(ctx context.Context, text, metadata string) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		if _, err := conn.ExecContext(ctx, `INSERT INTO errors (error_text, metadata) VALUES ($1, $2)`, text, metadata); err != nil {
			return fmt.Errorf("error saving error record: %w", err)
		}
		return nil
	})
}

// ListErrors returns error records created at or after since, newest first
func (s *Store) ListErrors(ctx context.Context, since time.Time) ([]db.ErrorRecord, error) {
	var records []db.ErrorRecord
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, `
		SELECT error_text, metadata, created_at
		FROM errors
		WHERE created_at >= $1
		ORDER BY created_at DESC`, since)
		if err != nil {
			return fmt.Errorf("error querying errors: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var r db.ErrorRecord
			if err := rows.Scan(&r.Text, &r.Metadata, &r.Date); err != nil {
				return fmt.Errorf("error scanning error record: %w", err)
			}
			records = append(records, r)
		}
		return rows.Err()
	})
	return records, err
}
