package middleware

import (
	"net/http"
	"slices"
)

// AdminMiddleware restricts operational endpoints to configured users
type AdminMiddleware struct {
	adminIDs []string
}

// NewAdminMiddleware creates a new admin middleware
func NewAdminMiddleware(adminIDs []string) *AdminMiddleware {
	return &AdminMiddleware{
		adminIDs: adminIDs,
	}
}

// IsAdmin reports whether userID is a configured administrator
func (m *AdminMiddleware) IsAdmin(userID string) bool {
	return userID != "" && slices.Contains(m.adminIDs, userID)
}

// RequireAdmin rejects requests from users who are not administrators. It
// must run after Authenticate.
func (m *AdminMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserID(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}

		if !m.IsAdmin(userID) {
			respondWithError(w, http.StatusForbidden, "Insufficient permissions")
			return
		}

		next.ServeHTTP(w, r)
	})
}
