package handlers

import (
	"net/http"

	"landrace-threat/internal/middleware"
)

// Routes holds everything needed to register the API endpoints
type Routes struct {
	Auth  *middleware.AuthMiddleware
	Admin *middleware.AdminMiddleware
	Audit *middleware.AuditMiddleware

	Assessments   *AssessmentHandler
	Team          *TeamHandler
	Notifications *NotificationHandler
	Scoring       *ScoringHandler
	AuditLogs     *AuditHandler
	Operations    *AdminHandler
	Health        *HealthHandler
	Config        *ConfigHandler
}

// Register adds all API routes to mux
func (rt *Routes) Register(mux *http.ServeMux) {
	protected := func(h http.HandlerFunc) http.Handler {
		return rt.Auth.Authenticate(h)
	}
	// Admin calls are audited whether or not they are allowed
	admin := func(action string, h http.HandlerFunc) http.Handler {
		return rt.Auth.Authenticate(
			rt.Audit.Log(action, "admin")(
				rt.Admin.RequireAdmin(h),
			),
		)
	}

	// Assessments
	mux.Handle("POST /api/v1/assessments", protected(rt.Assessments.CreateAssessment))
	mux.Handle("GET /api/v1/assessments/{id}", protected(rt.Assessments.GetAssessment))
	mux.Handle("PUT /api/v1/assessments/{id}", protected(rt.Assessments.UpdateAssessment))
	mux.Handle("DELETE /api/v1/assessments/{id}", protected(rt.Assessments.DeleteAssessment))
	mux.Handle("PUT /api/v1/assessments/{id}/taxon", protected(rt.Assessments.LinkTaxon))

	// Lifecycle
	mux.Handle("POST /api/v1/assessments/{id}/submit", protected(rt.Assessments.SubmitAssessment))
	mux.Handle("POST /api/v1/assessments/{id}/return", protected(rt.Assessments.ReturnAssessment))
	mux.Handle("POST /api/v1/assessments/{id}/approve", protected(rt.Assessments.ApproveAssessment))

	// Team and comments
	mux.Handle("GET /api/v1/assessments/{id}/team", protected(rt.Team.ListTeam))
	mux.Handle("POST /api/v1/assessments/{id}/team", protected(rt.Team.InviteMember))
	mux.Handle("PUT /api/v1/assessments/{id}/team/{userId}", protected(rt.Team.ChangeMemberRole))
	mux.Handle("DELETE /api/v1/assessments/{id}/team/{userId}", protected(rt.Team.RemoveMember))
	mux.Handle("GET /api/v1/assessments/{id}/comments", protected(rt.Team.ListComments))
	mux.Handle("POST /api/v1/assessments/{id}/comments", protected(rt.Team.AddComment))

	// Notifications
	mux.Handle("GET /api/v1/notifications", protected(rt.Notifications.ListNotifications))
	mux.Handle("POST /api/v1/notifications/{id}/read", protected(rt.Notifications.MarkRead))

	// Public routes
	mux.HandleFunc("GET /api/v1/published/{publicId}", rt.Assessments.GetPublished)
	mux.HandleFunc("GET /api/v1/scoring/criteria", rt.Scoring.GetCriteria)
	mux.HandleFunc("POST /api/v1/scoring/preview", rt.Scoring.Preview)
	mux.HandleFunc("GET /api/v1/config/app", rt.Config.GetAppConfig)

	// Admin routes
	mux.Handle("GET /api/v1/admin/audit-logs", admin("audit.list", rt.AuditLogs.ListAuditLogs))
	mux.Handle("POST /api/v1/admin/reconcile", admin("reconcile.run", rt.Operations.Reconcile))

	mux.HandleFunc("GET /health", rt.Health.Health)
}
