package postgres

import (
	"context"
	"database/sql"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"fmt"

	"github.com/sirupsen/logrus"
)

var userUpdates = map[db.UserField]string{
	db.UserFieldName:   `UPDATE users SET name = $1 WHERE user_id = $2`,
	db.UserFieldEmail:  `UPDATE users SET email = $1 WHERE user_id = $2`,
	db.UserFieldRole:   `UPDATE users SET role = $1 WHERE user_id = $2`,
	db.UserFieldActive: `UPDATE users SET active = $1 WHERE user_id = $2`,
}

const userColumns = `user_id, name, email, password, role, active`

func scanUser(row interface{ Scan(...any) error }) (*db.User, error) {
	var u db.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Active); err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser stores a user; passwordHash must already be hashed
func (s *Store) CreateUser(ctx context.Context, name, email, passwordHash, role string) (*db.User, error) {
	if role == "" {
		role = "user"
	}
	var user *db.User
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		row := conn.QueryRowContext(ctx, `
		INSERT INTO users (name, email, password, role)
		VALUES ($1, $2, $3, $4)
		RETURNING `+userColumns, name, email, passwordHash, role)
		u, err := scanUser(row)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("email %s: %w", email, db.ErrDuplicate)
			}
			return fmt.Errorf("error creating user: %w", err)
		}
		user = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Log.WithFields(logrus.Fields{"user_id": user.ID, "role": user.Role}).Info("Created new user")
	return user, nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id int64) (*db.User, error) {
	var user *db.User
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		u, err := scanUser(conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = $1`, id))
		if err != nil {
			return notFound(err, "user", id)
		}
		user = u
		return nil
	})
	return user, err
}

// GetUserByEmail retrieves a user by email
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*db.User, error) {
	var user *db.User
	err := s.withConn(ctx, func(conn *sql.Conn) error {
		u, err := scanUser(conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
		if err != nil {
			return notFound(err, "user", email)
		}
		user = u
		return nil
	})
	return user, err
}

// UpdateUserField updates a single whitelisted column
func (s *Store) UpdateUserField(ctx context.Context, id int64, field db.UserField, value any) error {
	stmt, ok := userUpdates[field]
	if !ok {
		return fmt.Errorf("%w: user.%s", db.ErrUnknownField, field)
	}
	return s.updateField(ctx, "user", stmt, field.Kind(), value, id)
}

// UpdateUserPassword replaces the stored hash
func (s *Store) UpdateUserPassword(ctx context.Context, id int64, passwordHash string) error {
	return s.updateField(ctx, "user", `UPDATE users SET password = $1 WHERE user_id = $2`, db.KindText, passwordHash, id)
}

// DeleteUser removes a user and, through cascades, everything they own
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.deleteRow(ctx, "user", `DELETE FROM users WHERE user_id = $1`, id)
}
