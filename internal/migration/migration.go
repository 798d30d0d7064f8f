package migration

import (
	"context"

	"exocompare/internal/errors"

	"github.com/jmoiron/sqlx"
)

// MigrationRunner handles database schema migrations. Statements use only
// types both Postgres and SQLite accept.
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Run executes all database migrations in the correct order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	if err := r.createSchemaVersionTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create schema_version table", err)
	}

	if err := r.createAnalysisResultsTable(ctx, db); err != nil {
		return errors.DatabaseError("failed to create analysis_results table", err)
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.DatabaseError("failed to create indexes", err)
	}

	if err := r.recordVersion(ctx, db); err != nil {
		return errors.DatabaseError("failed to record schema version", err)
	}

	return nil
}

func (r *MigrationRunner) createSchemaVersionTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version VARCHAR(32) PRIMARY KEY,
			applied_at VARCHAR(32) NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createAnalysisResultsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS analysis_results (
			run_id VARCHAR(64) PRIMARY KEY,
			generated_utc VARCHAR(32) NOT NULL,
			baseline_method VARCHAR(128) NOT NULL,
			schema_hash VARCHAR(80) NOT NULL,
			metrics_json TEXT NOT NULL
		)
	`)
	return err
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_analysis_results_generated
		ON analysis_results (generated_utc)
	`)
	return err
}

func (r *MigrationRunner) recordVersion(ctx context.Context, db *sqlx.DB) error {
	var n int
	if err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM schema_version WHERE version = ?`), r.version); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	_, err := db.ExecContext(ctx, db.Rebind(`INSERT INTO schema_version (version, applied_at) VALUES (?, CURRENT_TIMESTAMP)`), r.version)
	return err
}
