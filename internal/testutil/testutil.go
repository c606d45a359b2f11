// Package testutil starts the containers used by integration tests and
// provides fixtures and HTTP helpers.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/vault"
	"github.com/testcontainers/testcontainers-go/wait"

	"landrace-threat/internal/config"
	"landrace-threat/internal/database"
	"landrace-threat/migrations"
)

// VaultToken is the root token of the dev-mode Vault container
const VaultToken = "test-token"

// SetupPostgres starts a PostgreSQL container, applies all migrations and
// returns an open connection. The container is removed when the test ends.
// Skipped in short mode.
func SetupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping PostgreSQL container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:18",
		postgres.WithDatabase("landrace_test"),
		postgres.WithUsername("landrace_test"),
		postgres.WithPassword("landrace_test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.PingContext(ctx); err != nil {
		t.Fatalf("Failed to ping database: %v", err)
	}

	if err := database.NewMigrationExecutor(db).RunMigrations(ctx, migrations.FS); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return db
}

// SetupVault starts a dev-mode Vault container and returns a configuration
// pointing at it. Skipped in short mode.
func SetupVault(t *testing.T, secretPath string) *config.VaultConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Vault container test in short mode")
	}
	ctx := context.Background()

	container, err := vault.Run(ctx,
		"hashicorp/vault:1.15",
		vault.WithToken(VaultToken),
		testcontainers.WithWaitStrategy(
			wait.ForLog("Vault server started!").
				WithStartupTimeout(30*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start Vault container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("Failed to terminate Vault container: %v", err)
		}
	})

	addr, err := container.HttpHostAddress(ctx)
	if err != nil {
		t.Fatalf("Failed to get Vault address: %v", err)
	}

	return &config.VaultConfig{
		Address:    addr,
		Token:      VaultToken,
		SecretPath: secretPath,
		Enabled:    true,
	}
}
