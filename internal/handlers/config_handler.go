package handlers

import (
	"net/http"

	"landrace-threat/internal/config"
)

// ConfigHandler handles configuration requests
type ConfigHandler struct {
	config *config.Config
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{
		config: cfg,
	}
}

// AppConfig is the public configuration the frontend needs
type AppConfig struct {
	Name             string `json:"name"`
	Version          string `json:"version"`
	TeamPolicy       string `json:"team_policy"`
	TransitionEmails bool   `json:"transition_emails"`
	ArchiveEnabled   bool   `json:"archive_enabled"`
}

// GetAppConfig returns the public app configuration for the frontend
// @Summary Get app configuration
// @Description Get public app configuration (team policy and notification settings)
// @Tags Configuration
// @Produce json
// @Success 200 {object} AppConfig "App configuration"
// @Router /config/app [get]
func (h *ConfigHandler) GetAppConfig(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, AppConfig{
		Name:             h.config.App.Name,
		Version:          h.config.App.Version,
		TeamPolicy:       h.config.Workflow.TeamPolicy,
		TransitionEmails: h.config.Workflow.TransitionEmails && h.config.Email.Enabled(),
		ArchiveEnabled:   h.config.ObjectStore.Driver != config.ObjectStoreNone,
	})
}
