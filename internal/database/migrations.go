package database

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"sort"
	"strings"
)

// Migration represents a database migration
type Migration struct {
	Version  string
	Name     string
	Title    string // Human-readable title derived from filename
	UpSQL    string
	DownSQL  string
	Checksum string // SHA256 checksum of UpSQL content
}

// MigrationExecutor handles database migrations
type MigrationExecutor struct {
	db *sql.DB
}

// NewMigrationExecutor creates a new migration executor
func NewMigrationExecutor(db *sql.DB) *MigrationExecutor {
	return &MigrationExecutor{db: db}
}

// RunMigrations executes all pending migrations found at the root of fsys
func (m *MigrationExecutor) RunMigrations(ctx context.Context, fsys fs.FS) error {
	if err := m.createMigrationsTable(ctx); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := ReadMigrations(fsys)
	if err != nil {
		return fmt.Errorf("failed to read migration files: %w", err)
	}

	if err := m.validateMigrationChecksums(ctx, migrations); err != nil {
		return fmt.Errorf("migration validation failed: %w", err)
	}

	applied, err := m.AppliedVersions(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if !slices.Contains(applied, migration.Version) {
			if err := m.executeMigration(ctx, migration); err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", migration.Version, err)
			}
			slog.Info("Applied migration", "version", migration.Version, "title", migration.Title)
		}
	}

	return nil
}

// createMigrationsTable creates the migrations tracking table
func (m *MigrationExecutor) createMigrationsTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			title VARCHAR(500),
			checksum VARCHAR(64),
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := m.db.ExecContext(ctx, query)
	return err
}

// ReadMigrations collects NNN_name.up.sql / NNN_name.down.sql pairs from the
// root of fsys, sorted by version. Versions without an up file are skipped.
func ReadMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, err
	}

	byVersion := make(map[string]*Migration)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		filename := entry.Name()
		isUp := strings.HasSuffix(filename, ".up.sql")
		isDown := strings.HasSuffix(filename, ".down.sql")
		if !isUp && !isDown {
			continue
		}

		version, rest, ok := strings.Cut(filename, "_")
		if !ok {
			continue
		}

		content, err := fs.ReadFile(fsys, filename)
		if err != nil {
			return nil, err
		}

		migration := byVersion[version]
		if migration == nil {
			name := strings.TrimSuffix(strings.TrimSuffix(rest, ".up.sql"), ".down.sql")
			migration = &Migration{
				Version: version,
				Name:    name,
				Title:   strings.ReplaceAll(name, "_", " "),
			}
			byVersion[version] = migration
		}

		if isUp {
			migration.UpSQL = string(content)
			migration.Checksum = calculateChecksum(migration.UpSQL)
		} else {
			migration.DownSQL = string(content)
		}
	}

	var migrations []Migration
	for _, migration := range byVersion {
		if migration.UpSQL != "" {
			migrations = append(migrations, *migration)
		}
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// AppliedVersions returns the versions recorded in schema_migrations
func (m *MigrationExecutor) AppliedVersions(ctx context.Context) ([]string, error) {
	query := `SELECT version FROM schema_migrations ORDER BY version`
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func(rows *sql.Rows) {
		err := rows.Close()
		if err != nil {
			slog.Error("Failed to close rows", "error", err)
		}
	}(rows)

	var versions []string
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		versions = append(versions, version)
	}

	return versions, rows.Err()
}

// executeMigration executes a single migration
func (m *MigrationExecutor) executeMigration(ctx context.Context, migration Migration) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Rollback only if not committed
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("Failed to rollback transaction", "error", err)
		}
	}()

	// Execute migration SQL
	if _, err := tx.ExecContext(ctx, migration.UpSQL); err != nil {
		return fmt.Errorf("migration SQL failed: %w", err)
	}

	// Record migration with title and checksum
	query := `INSERT INTO schema_migrations (version, title, checksum) VALUES ($1, $2, $3)`
	if _, err := tx.ExecContext(ctx, query, migration.Version, migration.Title, migration.Checksum); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}

// validateMigrationChecksums verifies that applied migrations haven't been modified
func (m *MigrationExecutor) validateMigrationChecksums(ctx context.Context, migrations []Migration) error {
	query := `SELECT version, title, checksum FROM schema_migrations WHERE checksum IS NOT NULL`
	rows, err := m.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	appliedChecksums := make(map[string]struct {
		title    string
		checksum string
	})

	for rows.Next() {
		var version, title, checksum string
		if err := rows.Scan(&version, &title, &checksum); err != nil {
			return err
		}
		appliedChecksums[version] = struct {
			title    string
			checksum string
		}{title: title, checksum: checksum}
	}

	// Check for mismatches
	var mismatches []string
	for _, migration := range migrations {
		if applied, exists := appliedChecksums[migration.Version]; exists {
			if applied.checksum != migration.Checksum {
				mismatch := fmt.Sprintf(
					"\n  Migration %s (%s):\n    Expected checksum: %s\n    Current checksum:  %s",
					migration.Version, migration.Title, applied.checksum, migration.Checksum,
				)
				mismatches = append(mismatches, mismatch)
			}
		}
	}

	if len(mismatches) > 0 {
		return fmt.Errorf(
			"CRITICAL: Applied migrations have been modified!%s\n\n"+
				"This indicates that migration files that were already applied to the database have been changed.\n"+
				"Modifying applied migrations can lead to inconsistent database states across environments.\n"+
				"Please restore the original migration files or create a new migration to apply the changes.",
			strings.Join(mismatches, ""),
		)
	}

	return nil
}

// calculateChecksum generates a SHA256 checksum for migration content
func calculateChecksum(content string) string {
	hash := sha256.Sum256([]byte(content))
	return hex.EncodeToString(hash[:])
}
