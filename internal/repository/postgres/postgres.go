package postgres

import (
	"context"
	"database/sql"
	"docchat/internal/config"
	"docchat/internal/logger"
	"docchat/internal/repository/db"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Ensure Store implements db.Database interface
var _ db.Database = (*Store)(nil)

// Store implements db.Database on a pooled *sql.DB. Every operation borrows a
// connection for its own duration and returns it on all paths.
type Store struct {
	pool *sql.DB
}

// Open connects to PostgreSQL and configures the pool. It does not migrate.
func Open(ctx context.Context, dbConfig config.DatabaseConfig) (*Store, error) {
	logger.Log.WithFields(logrus.Fields{
		"host": dbConfig.Host,
		"db":   dbConfig.Name,
	}).Info("Connecting to PostgreSQL")

	pool, err := sql.Open("postgres", dbConfig.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	pool.SetMaxOpenConns(dbConfig.MaxOpenConns)
	pool.SetMaxIdleConns(dbConfig.MaxIdleConns)
	pool.SetConnMaxLifetime(dbConfig.ConnLifetime)

	if err = pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}

	logger.Log.Info("Successfully connected to PostgreSQL")
	return &Store{pool: pool}, nil
}

// NewStore wraps an existing pool
func NewStore(pool *sql.DB) *Store {
	return &Store{pool: pool}
}

// Close closes the pool
func (s *Store) Close() error {
	if s.pool != nil {
		return s.pool.Close()
	}
	return nil
}

// Migrate applies ("up") or reverts ("down") the embedded migrations
func (s *Store) Migrate(direction string) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("error opening embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(s.pool, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("error creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("error creating migration instance: %w", err)
	}

	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error running migrations: %w", err)
	}

	version, dirty, _ := m.Version()
	logger.Log.WithFields(logrus.Fields{"direction": direction, "version": version, "dirty": dirty}).Info("Database migrations applied")
	return nil
}

func (s *Store) withConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := s.pool.Conn(ctx)
	if err != nil {
		return fmt.Errorf("error acquiring connection: %w", err)
	}
	defer conn.Close()
	return fn(conn)
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("error starting transaction: %w", err)
		}
		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				logger.Log.WithError(rbErr).Warn("Rollback failed")
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("error committing transaction: %w", err)
		}
		return nil
	})
}

// updateField runs one of the fixed per-field statements; $1 is the value, $2 the id
func (s *Store) updateField(ctx context.Context, entity, stmt string, kind db.Kind, value any, id int64) error {
	v, err := db.Coerce(kind, value)
	if err != nil {
		return err
	}
	return s.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, stmt, v, id)
		if err != nil {
			return fmt.Errorf("error updating %s: %w", entity, err)
		}
		return expectRow(res, entity, id)
	})
}

func (s *Store) deleteRow(ctx context.Context, entity, stmt string, id int64) error {
	return s.withConn(ctx, func(conn *sql.Conn) error {
		res, err := conn.ExecContext(ctx, stmt, id)
		if err != nil {
			return fmt.Errorf("error deleting %s: %w", entity, err)
		}
		return expectRow(res, entity, id)
	})
}

func expectRow(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", entity, id, db.ErrNotFound)
	}
	return nil
}

// notFound maps sql.ErrNoRows to db.ErrNotFound and wraps everything else
func notFound(err error, entity string, id any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", entity, id, db.ErrNotFound)
	}
	return fmt.Errorf("error retrieving %s: %w", entity, err)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func nullInt(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func intPtr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}
