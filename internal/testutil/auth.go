package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"landrace-threat/internal/auth"
	"landrace-threat/internal/models"
)

// AuthHelper signs requests with tokens accepted by the given service
type AuthHelper struct {
	Service *auth.Service
}

// NewAuthHelper creates a new auth helper
func NewAuthHelper(svc *auth.Service) *AuthHelper {
	return &AuthHelper{Service: svc}
}

// GenerateToken generates a JWT token for a user
func (h *AuthHelper) GenerateToken(t *testing.T, user *models.User) string {
	t.Helper()

	token, err := h.Service.GenerateToken(user.ID, user.Email, user.DisplayName)
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	return token
}

// AddAuthHeader adds an authorization header to the request
func (h *AuthHelper) AddAuthHeader(t *testing.T, req *http.Request, user *models.User) {
	t.Helper()
	req.Header.Set("Authorization", "Bearer "+h.GenerateToken(t, user))
}

// CreateAuthenticatedRequest creates a request with auth header
func (h *AuthHelper) CreateAuthenticatedRequest(t *testing.T, method, url string, user *models.User) *http.Request {
	t.Helper()

	req := httptest.NewRequest(method, url, nil)
	h.AddAuthHeader(t, req, user)
	return req
}

// TestResponse holds response data for assertions
type TestResponse struct {
	*httptest.ResponseRecorder
}

// NewTestResponse creates a new test response recorder
func NewTestResponse() *TestResponse {
	return &TestResponse{
		ResponseRecorder: httptest.NewRecorder(),
	}
}

// AssertStatus asserts the HTTP status code
func (r *TestResponse) AssertStatus(t *testing.T, expected int) {
	t.Helper()

	if r.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, r.Code, r.Body.String())
	}
}

// AssertStatusOK asserts 200 OK
func (r *TestResponse) AssertStatusOK(t *testing.T) {
	t.Helper()
	r.AssertStatus(t, http.StatusOK)
}

// AssertStatusUnauthorized asserts 401 Unauthorized
func (r *TestResponse) AssertStatusUnauthorized(t *testing.T) {
	t.Helper()
	r.AssertStatus(t, http.StatusUnauthorized)
}

// AssertStatusForbidden asserts 403 Forbidden
func (r *TestResponse) AssertStatusForbidden(t *testing.T) {
	t.Helper()
	r.AssertStatus(t, http.StatusForbidden)
}
