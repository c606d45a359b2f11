package middleware

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"landrace-threat/internal/auth"
	"landrace-threat/internal/directory"
	"landrace-threat/internal/models"
	"landrace-threat/pkg/validator"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
	UserNameKey  contextKey = "user_name"
)

// AuthMiddleware validates JWT tokens
type AuthMiddleware struct {
	authService *auth.Service
	directory   *directory.Directory
}

// NewAuthMiddleware creates a new auth middleware. Every authenticated user
// is recorded in dir so that names and addresses resolve for notifications.
func NewAuthMiddleware(authService *auth.Service, dir *directory.Directory) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		directory:   dir,
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func (m *AuthMiddleware) withClaims(r *http.Request, claims *auth.JWTClaims) *http.Request {
	if m.directory != nil {
		u := &models.User{
			ID:          claims.UserID,
			Email:       validator.SanitizeEmail(claims.Email),
			DisplayName: validator.SanitizeString(claims.Name),
		}
		if err := m.directory.Remember(r.Context(), u); err != nil {
			slog.Warn("Failed to record user in directory", "user_id", claims.UserID, "error", err)
		}
	}

	ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
	ctx = context.WithValue(ctx, UserNameKey, claims.Name)
	return r.WithContext(ctx)
}

// Authenticate validates the JWT token and adds user info to context
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			respondWithError(w, http.StatusUnauthorized, "Missing authorization header")
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Invalid authorization header format")
			return
		}

		claims, err := m.authService.ValidateToken(token)
		if err != nil {
			slog.Debug("Rejected token", "error", err)
			respondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		next.ServeHTTP(w, m.withClaims(r, claims))
	})
}

// OptionalAuth validates JWT token if present but doesn't require it
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := bearerToken(r); ok {
			if claims, err := m.authService.ValidateToken(token); err == nil {
				r = m.withClaims(r, claims)
			}
		}

		next.ServeHTTP(w, r)
	})
}

// GetUserID retrieves the user ID from the request context
func GetUserID(r *http.Request) (string, bool) {
	userID, ok := r.Context().Value(UserIDKey).(string)
	return userID, ok && userID != ""
}

// GetUserEmail retrieves the user email from the request context
func GetUserEmail(r *http.Request) (string, bool) {
	email, ok := r.Context().Value(UserEmailKey).(string)
	return email, ok
}

// WithUserID returns a context carrying userID, for tests and internal callers
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// Helper function to respond with JSON error
func respondWithError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
