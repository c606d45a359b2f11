package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"landrace-threat/internal/models"
)

// ErrDuplicate is returned when an insert violates a uniqueness constraint
var ErrDuplicate = errors.New("duplicate record")

// isAssessmentID reports whether id is a canonical UUID. Other values can
// never match an assessment row and must not reach a uuid column.
func isAssessmentID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store groups the repositories of the workflow. Lookups return (nil, nil)
// when a row does not exist.
type Store interface {
	Assessments() Assessments
	Assignments() Assignments
	Comments() Comments
	Notifications() Notifications
	TaxonLinks() TaxonLinks
	Users() Users
	Audit() Audit

	// InTx runs fn against a store whose writes commit together. Calling
	// InTx on a store that is already inside a transaction reuses it.
	InTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}

// Assessments persists assessment records
type Assessments interface {
	Create(ctx context.Context, a *models.Assessment) error
	GetByID(ctx context.Context, id string) (*models.Assessment, error)
	// GetDraft only returns records that are not yet published
	GetDraft(ctx context.Context, id string) (*models.Assessment, error)
	GetPublished(ctx context.Context, publicID string) (*models.Assessment, error)
	// Update writes a if the stored version and status still match the
	// expected ones. It reports false when nothing matched.
	Update(ctx context.Context, a *models.Assessment, expectedVersion int, expectedStatus models.Status) (bool, error)
	SetArchiveURL(ctx context.Context, id, url string) error
	Delete(ctx context.Context, id string) (int64, error)
	// ListByStatus lists unpublished assessments in the given status
	ListByStatus(ctx context.Context, status models.Status) ([]models.Assessment, error)
	// ListUnreconciled lists approved assessments that are not published or
	// still own team, comment or taxon rows
	ListUnreconciled(ctx context.Context) ([]models.Assessment, error)
}

// Assignments persists team membership
type Assignments interface {
	// Create returns ErrDuplicate when the user already has a role
	Create(ctx context.Context, a *models.Assignment) error
	Get(ctx context.Context, assessmentID, userID string) (*models.Assignment, error)
	ListByAssessment(ctx context.Context, assessmentID string) ([]models.Assignment, error)
	UpdateRole(ctx context.Context, assessmentID, userID string, role models.Role) (int64, error)
	Delete(ctx context.Context, assessmentID, userID string) (int64, error)
	DeleteByAssessment(ctx context.Context, assessmentID string) (int64, error)
}

// Comments persists the append-only feedback log
type Comments interface {
	Create(ctx context.Context, c *models.Comment) error
	// ListByAssessment returns comments oldest first
	ListByAssessment(ctx context.Context, assessmentID string) ([]models.Comment, error)
	CountByAssessment(ctx context.Context, assessmentID string) (int, error)
	DeleteByAssessment(ctx context.Context, assessmentID string) (int64, error)
}

// Notifications persists in-app notifications
type Notifications interface {
	Create(ctx context.Context, n *models.Notification) error
	GetByID(ctx context.Context, id int64) (*models.Notification, error)
	// ListByRecipient returns notifications newest first
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]models.Notification, error)
	MarkRead(ctx context.Context, id int64) (int64, error)
}

// TaxonLinks persists the optional taxonomy link of a draft
type TaxonLinks interface {
	Set(ctx context.Context, link *models.TaxonLink) error
	Get(ctx context.Context, assessmentID string) (*models.TaxonLink, error)
	DeleteByAssessment(ctx context.Context, assessmentID string) (int64, error)
}

// Users is the directory of known users
type Users interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	Upsert(ctx context.Context, u *models.User) error
}

// Audit persists audit log entries
type Audit interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, limit, offset int) ([]models.AuditLog, error)
}
