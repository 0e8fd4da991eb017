package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"botscan/internal/errors"
	"botscan/models"
	"botscan/ports"

	"github.com/google/uuid"
)

// ScanRecordRepository keeps scan history in process memory. Used when no
// database is configured.
type ScanRecordRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*models.ScanRecord
}

// NewScanRecordRepository creates an empty in-memory repository
func NewScanRecordRepository() ports.ScanRecordRepository {
	return &ScanRecordRepository{records: make(map[uuid.UUID]*models.ScanRecord)}
}

func (r *ScanRecordRepository) SaveScan(ctx context.Context, record *models.ScanRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	copied := *record
	r.mu.Lock()
	r.records[record.ID] = &copied
	r.mu.Unlock()
	return nil
}

func (r *ScanRecordRepository) GetScan(ctx context.Context, id uuid.UUID) (*models.ScanRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	record, ok := r.records[id]
	if !ok {
		return nil, errors.NotFound("scan")
	}
	copied := *record
	return &copied, nil
}

func (r *ScanRecordRepository) LatestScan(ctx context.Context, username string) (*models.ScanRecord, error) {
	records, _ := r.ListScans(ctx, username, 1)
	if len(records) == 0 {
		return nil, errors.NotFound("scan for " + username)
	}
	return records[0], nil
}

func (r *ScanRecordRepository) ListScans(ctx context.Context, username string, limit int) ([]*models.ScanRecord, error) {
	r.mu.RLock()
	matches := []*models.ScanRecord{}
	for _, record := range r.records {
		if strings.EqualFold(record.Username, username) {
			copied := *record
			matches = append(matches, &copied)
		}
	}
	r.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].ScannedAt.After(matches[j].ScannedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *ScanRecordRepository) AttachFeedback(ctx context.Context, id uuid.UUID, verdict models.Verdict, comment string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return errors.NotFound("scan")
	}
	record.Feedback = &verdict
	record.FeedbackComment = &comment
	return nil
}

func (r *ScanRecordRepository) Backend() string {
	return "memory"
}
