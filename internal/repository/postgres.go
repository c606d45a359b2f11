package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"
)

// PostgresStore implements Store on top of database/sql and lib/pq
type PostgresStore struct {
	db   *sql.DB
	conn DBTX
	inTx bool
}

// NewPostgresStore creates a store backed by db
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, conn: db}
}

func (s *PostgresStore) Assessments() Assessments     { return NewAssessmentRepository(s.conn) }
func (s *PostgresStore) Assignments() Assignments     { return NewAssignmentRepository(s.conn) }
func (s *PostgresStore) Comments() Comments           { return NewCommentRepository(s.conn) }
func (s *PostgresStore) Notifications() Notifications { return NewNotificationRepository(s.conn) }
func (s *PostgresStore) TaxonLinks() TaxonLinks       { return NewTaxonLinkRepository(s.conn) }
func (s *PostgresStore) Users() Users                 { return NewUserRepository(s.conn) }
func (s *PostgresStore) Audit() Audit                 { return NewAuditRepository(s.conn) }

// InTx runs fn inside a database transaction
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rollback only if not committed
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			slog.Error("Failed to rollback transaction", "error", err)
		}
	}()

	if err := fn(&PostgresStore{db: s.db, conn: tx, inTx: true}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// isUniqueViolation reports whether err is a Postgres unique_violation
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("Failed to close rows", "error", err)
	}
}
