package service

import (
	"context"
	"log/slog"

	"landrace-threat/internal/errs"
	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
)

// AuditService handles audit logging
type AuditService struct {
	store repository.Store
}

// NewAuditService creates a new audit service
func NewAuditService(store repository.Store) *AuditService {
	return &AuditService{
		store: store,
	}
}

// Log creates an audit log entry, ignoring errors
// This is the recommended way to log audit events as it won't fail the main operation
func (s *AuditService) Log(ctx context.Context, userID, action, resource, details string) {
	if err := s.LogError(ctx, userID, action, resource, details); err != nil {
		slog.Warn("Failed to write audit log",
			"user_id", userID,
			"action", action,
			"resource", resource,
			"error", err,
		)
	}
}

// LogError creates an audit log entry and returns any error
// Use this when you need to handle audit logging errors explicitly
func (s *AuditService) LogError(ctx context.Context, userID, action, resource, details string) error {
	entry := &models.AuditLog{
		Action:   action,
		Resource: resource,
		Details:  details,
	}
	if userID != "" {
		entry.UserID = &userID
	}
	return s.store.Audit().Create(ctx, entry)
}

// List returns audit entries newest first
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]models.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	logs, err := s.store.Audit().List(ctx, limit, offset)
	if err != nil {
		return nil, errs.Dependency(err, "failed to list audit logs")
	}
	if logs == nil {
		logs = []models.AuditLog{}
	}
	return logs, nil
}
