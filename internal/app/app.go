// Package app wires configuration, storage and services into a running
// application. cmd/api and cmd/lrtctl share it.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"

	_ "landrace-threat/docs" // This is for Swagger
	"landrace-threat/internal/auth"
	"landrace-threat/internal/config"
	"landrace-threat/internal/database"
	"landrace-threat/internal/directory"
	"landrace-threat/internal/email"
	"landrace-threat/internal/handlers"
	"landrace-threat/internal/metrics"
	"landrace-threat/internal/middleware"
	"landrace-threat/internal/notify"
	"landrace-threat/internal/objectstore"
	"landrace-threat/internal/repository"
	"landrace-threat/internal/repository/memory"
	"landrace-threat/internal/scheduler"
	"landrace-threat/internal/service"
	"landrace-threat/internal/vault"
)

// App holds the wired components
type App struct {
	Config     *config.Config
	DB         *database.Database // nil with the memory driver
	Store      repository.Store
	Vault      *vault.Client // nil unless VAULT_ENABLED
	Auth       *auth.Service
	Email      *email.Service
	Directory  *directory.Directory
	Dispatcher *notify.Dispatcher
	Workflow   *service.WorkflowService
	Reminders  *service.ReminderService
	Audit      *service.AuditService
	Metrics    *metrics.WorkflowMetrics
}

// New builds the application. With Vault enabled, its secrets are applied to
// cfg before anything else is created.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	if cfg.Vault.Enabled {
		client, err := vault.NewClient(&cfg.Vault)
		if err != nil {
			return nil, err
		}
		if err := client.ApplyTo(ctx, cfg); err != nil {
			return nil, fmt.Errorf("failed to load secrets from vault: %w", err)
		}
		a.Vault = client
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	m, err := metrics.NewWorkflowMetrics(metrics.NewRegistry())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Metrics = m

	archive, err := newArchive(ctx, &cfg.ObjectStore)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Auth = auth.NewService(&cfg.JWT)
	a.Email = email.NewService(&cfg.Email)
	a.Directory = directory.New(a.Store.Users(), cfg.Workflow.DirectoryCacheTTL)
	a.Audit = service.NewAuditService(a.Store)

	// An interface holding a nil *email.Service would not compare equal to nil
	var mailer notify.Mailer
	if cfg.Email.Enabled() {
		mailer = a.Email
	} else {
		slog.Warn("SMTP is not configured - emails will not be sent")
	}

	a.Dispatcher = notify.NewDispatcher(a.Store, a.Directory, a.Email, mailer, notify.Options{
		Concurrency:      cfg.Workflow.NotifyConcurrency,
		TransitionEmails: cfg.Workflow.TransitionEmails,
		Metrics:          m,
	})
	a.Workflow = service.NewWorkflowService(a.Store, a.Dispatcher, a.Directory, service.Options{
		OperationTimeout: cfg.Workflow.OperationTimeout,
		TeamPolicy:       cfg.Workflow.TeamPolicy,
		Archive:          archive,
		Metrics:          m,
	})
	a.Reminders = service.NewReminderService(a.Store, a.Directory, a.Email, mailer, m)

	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case config.DriverMemory:
		slog.Warn("Using the in-memory store - data is lost on restart")
		a.Store = memory.New()
		return nil
	case config.DriverPostgres:
		db, err := database.New(&a.Config.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("Database connection established")

		if a.Config.Database.AutoMigrate {
			if err := db.Migrate(ctx); err != nil {
				db.Close()
				return fmt.Errorf("failed to run migrations: %w", err)
			}
			slog.Info("Database migrations completed")
		}
		a.DB = db
		a.Store = repository.NewPostgresStore(db.DB)
		return nil
	default:
		return fmt.Errorf("unknown database driver %q", a.Config.Database.Driver)
	}
}

// newArchive returns nil when snapshots are disabled
func newArchive(ctx context.Context, cfg *config.ObjectStoreConfig) (objectstore.Store, error) {
	switch cfg.Driver {
	case config.ObjectStoreS3:
		s3, err := objectstore.NewS3(ctx, objectstore.S3Config{
			Region:          cfg.Region,
			Bucket:          cfg.Bucket,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			PathStyle:       cfg.PathStyle,
			Prefix:          cfg.Prefix,
			PublicBaseURL:   cfg.PublicBaseURL,
			PresignExpiry:   cfg.PresignExpiry,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 archive: %w", err)
		}
		slog.Info("Publishing snapshots to S3", "bucket", cfg.Bucket, "prefix", cfg.Prefix)
		return s3, nil
	case config.ObjectStoreMemory:
		return objectstore.NewMemory(cfg.Bucket), nil
	default:
		return nil, nil
	}
}

// Scheduler returns the periodic jobs of the application
func (a *App) Scheduler() *scheduler.Scheduler {
	return scheduler.NewScheduler(a.Reminders, a.Workflow, a.Metrics, &a.Config.Scheduler)
}

// HealthChecks lists the dependencies reported by /health
func (a *App) HealthChecks() map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{
		"database": a.Store.Ping,
	}
	if a.DB != nil {
		checks["database"] = a.DB.HealthCheck
	}
	if a.Vault != nil {
		checks["vault"] = a.Vault.Health
	}
	return checks
}

// Handler builds the HTTP handler with all routes and global middleware
func (a *App) Handler() http.Handler {
	cfg := a.Config
	mux := http.NewServeMux()

	routes := &handlers.Routes{
		Auth:          middleware.NewAuthMiddleware(a.Auth, a.Directory),
		Admin:         middleware.NewAdminMiddleware(cfg.App.AdminUserIDs),
		Audit:         middleware.NewAuditMiddleware(a.Store),
		Assessments:   handlers.NewAssessmentHandler(a.Workflow),
		Team:          handlers.NewTeamHandler(a.Workflow),
		Notifications: handlers.NewNotificationHandler(a.Dispatcher),
		Scoring:       handlers.NewScoringHandler(a.Workflow.Catalogue()),
		AuditLogs:     handlers.NewAuditHandler(a.Audit),
		Operations:    handlers.NewAdminHandler(a.Workflow),
		Health:        handlers.NewHealthHandler(cfg.App.Version, a.HealthChecks()),
		Config:        handlers.NewConfigHandler(cfg),
	}
	routes.Register(mux)

	mux.Handle("GET /metrics", a.Metrics.Handler())
	mux.Handle("/swagger/", httpSwagger.WrapHandler)

	corsMw := middleware.NewCORSMiddleware(&cfg.CORS)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit)

	return middleware.LoggingMiddleware(
		middleware.SecurityHeaders(
			corsMw.Handler(
				rateLimiter.Limit(mux),
			),
		),
	)
}

// Close releases the database connection
func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}
	return nil
}
