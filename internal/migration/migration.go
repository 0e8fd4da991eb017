package migration

import (
	"context"

	"botscan/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
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
	if err := r.createScanRecordsTable(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create scan_records table")
	}

	if err := r.addFeedbackColumns(ctx, db); err != nil {
		return errors.Wrap(err, "failed to add scan_records feedback columns")
	}

	if err := r.createIndexes(ctx, db); err != nil {
		return errors.Wrap(err, "failed to create indexes")
	}

	return nil
}

func (r *MigrationRunner) createScanRecordsTable(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS scan_records (
			id UUID PRIMARY KEY,
			username VARCHAR(64) NOT NULL,
			classification VARCHAR(16) NOT NULL,
			is_bot BOOLEAN NOT NULL DEFAULT false,
			bot_confidence INTEGER NOT NULL CHECK (bot_confidence BETWEEN 0 AND 100),
			human_confidence INTEGER NOT NULL CHECK (human_confidence BETWEEN 0 AND 100),
			profile JSONB NOT NULL DEFAULT '{}',
			report JSONB NOT NULL DEFAULT '{}',
			scanned_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		)
	`)
	return err
}

// Feedback arrived after the first release of the table.
func (r *MigrationRunner) addFeedbackColumns(ctx context.Context, db *sqlx.DB) error {
	statements := []string{
		"ALTER TABLE scan_records ADD COLUMN IF NOT EXISTS feedback VARCHAR(16)",
		"ALTER TABLE scan_records ADD COLUMN IF NOT EXISTS feedback_comment TEXT",
		"ALTER TABLE scan_records ADD COLUMN IF NOT EXISTS feedback_at TIMESTAMP WITH TIME ZONE",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *MigrationRunner) createIndexes(ctx context.Context, db *sqlx.DB) error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_scans_username ON scan_records(LOWER(username))",
		"CREATE INDEX IF NOT EXISTS idx_scans_username_scanned_at ON scan_records(LOWER(username), scanned_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_scans_classification ON scan_records(classification)",
	}

	for _, index := range indexes {
		if _, err := db.ExecContext(ctx, index); err != nil {
			return err
		}
	}
	return nil
}
