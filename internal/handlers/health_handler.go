package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// HealthCheck reports whether a dependency is usable
type HealthCheck func(ctx context.Context) error

// HealthHandler reports service health
type HealthHandler struct {
	version string
	checks  map[string]HealthCheck
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(version string, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{
		version: version,
		checks:  checks,
	}
}

// Health runs all checks
// @Summary Health check
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]interface{} "Healthy"
// @Failure 503 {object} map[string]interface{} "A dependency is unhealthy"
// @Router /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			slog.Warn("Health check failed", "check", name, "error", err)
			results[name] = "error"
			status = "unhealthy"
			code = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	respondWithJSON(w, code, map[string]interface{}{
		"status":  status,
		"version": h.version,
		"checks":  results,
	})
}
