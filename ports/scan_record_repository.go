package ports

import (
	"context"

	"botscan/models"

	"github.com/google/uuid"
)

// ScanRecordRepository defines the interface for local scan history
type ScanRecordRepository interface {
	// SaveScan stores a completed analysis
	SaveScan(ctx context.Context, record *models.ScanRecord) error

	// GetScan retrieves a scan by ID
	GetScan(ctx context.Context, id uuid.UUID) (*models.ScanRecord, error)

	// LatestScan returns the most recent scan for a username
	LatestScan(ctx context.Context, username string) (*models.ScanRecord, error)

	// ListScans returns the newest scans for a username, optionally limited
	ListScans(ctx context.Context, username string, limit int) ([]*models.ScanRecord, error)

	// AttachFeedback stores a verdict on an existing scan
	AttachFeedback(ctx context.Context, id uuid.UUID, verdict models.Verdict, comment string) error

	// Backend names the storage implementation for health reporting
	Backend() string
}
