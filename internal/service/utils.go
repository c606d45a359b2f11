package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"landrace-threat/internal/errs"
	"landrace-threat/internal/metrics"
	"landrace-threat/internal/models"
	"landrace-threat/pkg/validator"
)

// publicIDPrefix starts every published assessment identifier
const publicIDPrefix = "LTA"

// newPublicID returns an identifier of the form LTA-<year>-<8 hex digits>
func newPublicID(now time.Time) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("%s-%d-%s", publicIDPrefix, now.Year(), strings.ToUpper(raw[:8]))
}

// blank reports whether s has no visible characters
func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// singleLine rejects values containing control characters
func singleLine(fields map[string]*string) error {
	for name, value := range fields {
		if value != nil && validator.ValidateSingleLine(*value) != nil {
			return errs.Validation("%s must not contain control characters", name)
		}
	}
	return nil
}

// timePtr returns a pointer to t
func timePtr(t time.Time) *time.Time {
	return &t
}

// strPtr returns a pointer to s
func strPtr(s string) *string {
	return &s
}

// findMember returns the assignment of userID in team, or nil
func findMember(team []models.Assignment, userID string) *models.Assignment {
	for i := range team {
		if team[i].UserID == userID {
			return &team[i]
		}
	}
	return nil
}

// hasRole reports whether any member of team holds role
func hasRole(team []models.Assignment, role models.Role) bool {
	for _, a := range team {
		if a.Role == role {
			return true
		}
	}
	return false
}

// storeError turns a repository failure into a DependencyFailure unless it
// already carries a workflow kind
func storeError(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	if errs.KindOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Dependency(err, "operation timed out")
	}
	return errs.Dependency(err, format, args...)
}

// outcomeOf labels an operation result for metrics
func outcomeOf(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	if kind := errs.KindOf(err); kind != "" {
		return string(kind)
	}
	return metrics.OutcomeError
}
