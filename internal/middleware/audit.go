package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"landrace-threat/internal/models"
	"landrace-threat/internal/repository"
)

// AuditMiddleware logs operational actions
type AuditMiddleware struct {
	store repository.Store
}

// NewAuditMiddleware creates a new audit middleware
func NewAuditMiddleware(store repository.Store) *AuditMiddleware {
	return &AuditMiddleware{
		store: store,
	}
}

// Log records action after the wrapped handler ran. Failures to write the
// entry never affect the response.
func (m *AuditMiddleware) Log(action, resource string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			entry := &models.AuditLog{
				Action:   action,
				Resource: resource,
				Details: fmt.Sprintf("%s %s from %s (%s) returned %d",
					r.Method, r.URL.Path, getIP(r), r.UserAgent(), wrapped.statusCode),
			}
			if id, ok := GetUserID(r); ok {
				entry.UserID = &id
			}

			if err := m.store.Audit().Create(r.Context(), entry); err != nil {
				slog.Warn("Failed to write audit log", "action", action, "error", err)
			}
		})
	}
}
