package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"botscan/internal/errors"
	"botscan/models"
	"botscan/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ScanRecordRepositoryImpl implements ScanRecordRepository for PostgreSQL
type ScanRecordRepositoryImpl struct {
	db *sqlx.DB
}

// NewScanRecordRepository creates a new PostgreSQL scan history repository
func NewScanRecordRepository(db *sqlx.DB) ports.ScanRecordRepository {
	return &ScanRecordRepositoryImpl{db: db}
}

const scanColumns = `id, username, classification, is_bot, bot_confidence, human_confidence,
	profile, report, feedback, feedback_comment, scanned_at`

// SaveScan stores a completed analysis
func (r *ScanRecordRepositoryImpl) SaveScan(ctx context.Context, record *models.ScanRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	// JSONB implements driver.Valuer, so profile and report go in as JSON
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO scan_records (id, username, classification, is_bot, bot_confidence, human_confidence, profile, report, scanned_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, record.ID, record.Username, record.Classification, record.IsBot, record.BotConfidence,
		record.HumanConfidence, record.Profile, record.Report, record.ScannedAt)
	if err != nil {
		return errors.DatabaseError("failed to save scan", err)
	}
	return nil
}

// GetScan retrieves a scan by ID
func (r *ScanRecordRepositoryImpl) GetScan(ctx context.Context, id uuid.UUID) (*models.ScanRecord, error) {
	var record models.ScanRecord
	err := r.db.GetContext(ctx, &record, `SELECT `+scanColumns+` FROM scan_records WHERE id = $1`, id)
	if err != nil {
		return nil, mapNoRows(err, "scan")
	}
	return &record, nil
}

// LatestScan returns the most recent scan for a username
func (r *ScanRecordRepositoryImpl) LatestScan(ctx context.Context, username string) (*models.ScanRecord, error) {
	var record models.ScanRecord
	err := r.db.GetContext(ctx, &record, `
		SELECT `+scanColumns+`
		FROM scan_records
		WHERE LOWER(username) = LOWER($1)
		ORDER BY scanned_at DESC
		LIMIT 1
	`, username)
	if err != nil {
		return nil, mapNoRows(err, "scan for "+username)
	}
	return &record, nil
}

// ListScans returns the newest scans for a username, optionally limited
func (r *ScanRecordRepositoryImpl) ListScans(ctx context.Context, username string, limit int) ([]*models.ScanRecord, error) {
	query := `
		SELECT ` + scanColumns + `
		FROM scan_records
		WHERE LOWER(username) = LOWER($1)
		ORDER BY scanned_at DESC`
	args := []interface{}{username}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	records := []*models.ScanRecord{}
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, errors.DatabaseError("failed to list scans", err)
	}
	return records, nil
}

// AttachFeedback stores a verdict on an existing scan
func (r *ScanRecordRepositoryImpl) AttachFeedback(ctx context.Context, id uuid.UUID, verdict models.Verdict, comment string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE scan_records
		SET feedback = $2, feedback_comment = $3, feedback_at = NOW()
		WHERE id = $1
	`, id, verdict, comment)
	if err != nil {
		return errors.DatabaseError("failed to attach feedback", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("scan")
	}
	return nil
}

// Backend names the storage implementation
func (r *ScanRecordRepositoryImpl) Backend() string {
	return "postgres"
}

func mapNoRows(err error, resource string) error {
	if stderrors.Is(err, sql.ErrNoRows) {
		return errors.NotFound(resource)
	}
	return errors.DatabaseError("failed to load "+resource, err)
}
