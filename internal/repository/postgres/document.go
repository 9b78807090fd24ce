package postgres

import (
	"context"
	"database/sql"
	"docchat/internal/repository/db"
	"fmt"
)

// updated is bumped on every change
var documentUpdates = map[db.DocumentField]string{
	db.DocumentFieldName:    `UPDATE documents SET name = $1, updated = CURRENT_TIMESTAMP WHERE doc_id = $2`,
	db.DocumentFieldSummary: `UPDATE documents SET summary = $1, updated = CURRENT_TIMESTAMP WHERE doc_id = $2`,
	db.DocumentFieldSteps:   `UPDATE documents SET steps = $1, updated = CURRENT_TIMESTAMP WHERE doc_id = $2`,
	db.DocumentFieldActive:  `UPDATE documents SET active = $1, updated = CURRENT_TIMESTAMP WHERE doc_id = $2`,
}

const documentColumns = `doc_id, user_id, name, summary, steps, updated, active`

func scanDocument(row interface{ Scan(...any) error }) (*db.Document, error) {
	var d db.Document
	if err := row.Scan(&d.ID, &d.UserID, &d.Name, &d.Summary, &d.Steps, &d.Updated, &d.Active); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) CreateDocument(ctx context.Context, userID int64, name string) (*db.Document, error) {
	var doc *db.Document
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		d, err := scanDocument(conn.QueryRowContext(ctx, `
		INSERT INTO documents (user_id, name)
		VALUES ($1, $2)
		RETURNING `+documentColumns, userID, name))
		if err != nil {
			return fmt.Errorf("error creating document: %w", err)
		}
		doc = d
		return nil
	})
	return doc, err
}

func (s *Store) GetDocument(ctx context.Context, id int64) (*db.Document, error) {
	var doc *db.Document
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		d, err := scanDocument(conn.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE doc_id = $1`, id))
		if err != nil {
			return notFound(err, "document", id)
		}
		doc = d
		return nil
	})
	return doc, err
}

// GetDocumentByName finds a user's active document with the given name
func (s *Store) GetDocumentByName(ctx context.Context, userID int64, name string) (*db.Document, error) {
	var doc *db.Document
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		d, err := scanDocument(conn.QueryRowContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE user_id = $1 AND name = $2 AND active
		ORDER BY doc_id DESC
		LIMIT 1`, userID, name))
		if err != nil {
			return notFound(err, "document", name)
		}
		doc = d
		return nil
	})
	return doc, err
}

func (s *Store) ListDocuments(ctx context.Context, userID int64) ([]db.Document, error) {
	return s.listDocuments(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE user_id = $1 AND active
		ORDER BY updated DESC`, userID)
}

// ListAllDocuments returns every active document regardless of owner
func (s *Store) ListAllDocuments(ctx context.Context) ([]db.Document, error) {
	return s.listDocuments(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE active
		ORDER BY updated DESC`)
}

func (s *Store) listDocuments(ctx context.Context, query string, args ...any) ([]db.Document, error) {
	var docs []db.Document
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		rows, err := conn.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("error querying documents: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			d, err := scanDocument(rows)
			if err != nil {
				return fmt.Errorf("error scanning document: %w", err)
			}
			docs = append(docs, *d)
		}
		return rows.Err()
	})
	return docs, err
}

func (s *Store) UpdateDocumentField(ctx context.Context, id int64, field db.DocumentField, value any) error {
	stmt, ok := documentUpdates[field]
	if !ok {
		return fmt.Errorf("%w: document.%s", db.ErrUnknownField, field)
	}
	return s.updateField(ctx, "document", stmt, field.Kind(), value, id)
}

func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	return s.UpdateDocumentField(ctx, id, db.DocumentFieldActive, false)
}
