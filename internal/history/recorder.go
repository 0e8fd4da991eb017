// Package history keeps a local record of finished analyses and the
// feedback given on them.
package history

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"botscan/internal"
	"botscan/internal/errors"
	"botscan/internal/metrics"
	"botscan/internal/session"
	"botscan/models"
	"botscan/ports"

	"github.com/google/uuid"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/singleflight"
)

const queueSize = 64

// pendingScan is the record minted for a session's latest Ready state.
// written is closed once the worker has tried to save it.
type pendingScan struct {
	record  *models.ScanRecord
	written chan struct{}
}

// Recorder persists Ready sessions off the orchestrator's critical
// section. It is a session.Publisher.
type Recorder struct {
	repo    ports.ScanRecordRepository
	metrics *metrics.Metrics
	logger  *internal.Logger

	mu       sync.Mutex
	queue    chan *pendingScan
	sessions map[string]*pendingScan
	closed   bool
	done     chan struct{}

	summaries singleflight.Group
}

// NewRecorder starts the background writer
func NewRecorder(repo ports.ScanRecordRepository, m *metrics.Metrics, logger *internal.Logger) *Recorder {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	r := &Recorder{
		repo:     repo,
		metrics:  m,
		logger:   logger.Named("History"),
		queue:    make(chan *pendingScan, queueSize),
		sessions: make(map[string]*pendingScan),
		done:     make(chan struct{}),
	}
	go r.worker()
	return r
}

// Publish queues a scan record for every Ready transition and remembers it
// as the session's current scan until the next reset. It never blocks;
// records are dropped when the queue is full.
func (r *Recorder) Publish(event session.Event) {
	switch {
	case event.Type == session.EventReset:
		r.ForgetSession(event.SessionID)
		return
	case event.Type != session.EventState || event.State == nil || event.State.Kind != session.KindReady:
		return
	}
	st := event.State
	pending := &pendingScan{
		record:  models.NewScanRecord(st.Username, *st.Profile, *st.Report, st.EnteredAt),
		written: make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	select {
	case r.queue <- pending:
		if event.SessionID != "" {
			r.sessions[event.SessionID] = pending
		}
	default:
		delete(r.sessions, event.SessionID)
		close(pending.written)
		r.metrics.HistoryWrite(errors.InternalError("queue full"))
		r.logger.Warn("queue full, dropping scan of %s", st.Username)
	}
}

// ForgetSession drops the scan remembered for sessionID
func (r *Recorder) ForgetSession(sessionID string) {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()
}

func (r *Recorder) worker() {
	defer close(r.done)
	for pending := range r.queue {
		record := pending.record
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := r.repo.SaveScan(ctx, record)
		cancel()
		close(pending.written)
		r.metrics.HistoryWrite(err)
		if err != nil {
			r.logger.Error("failed to save scan of %s: %v", record.Username, err)
			continue
		}
		r.summaries.Forget(key(record.Username))
		r.logger.Debug("saved scan %s of %s (%s)", record.ID, record.Username, record.Classification)
	}
}

// Close stops accepting records and waits for queued ones to be written
func (r *Recorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		<-r.done
		return
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()
	<-r.done
}

// AttachFeedback stores a verdict on the scan it rates. Feedback sent from
// a session goes to that session's scan, waiting for it to be written if
// needed. Otherwise it goes to the latest stored scan of the username.
func (r *Recorder) AttachFeedback(ctx context.Context, record models.FeedbackRecord) error {
	id, err := r.scanFor(ctx, record)
	if err != nil {
		return err
	}
	if err := r.repo.AttachFeedback(ctx, id, record.Verdict, record.Comment); err != nil {
		return err
	}
	r.summaries.Forget(key(record.Username))
	return nil
}

func (r *Recorder) scanFor(ctx context.Context, record models.FeedbackRecord) (uuid.UUID, error) {
	r.mu.Lock()
	pending, ok := r.sessions[record.SessionID]
	r.mu.Unlock()

	if ok && record.SessionID != "" && key(pending.record.Username) == key(record.Username) {
		select {
		case <-pending.written:
			return pending.record.ID, nil
		case <-ctx.Done():
			return uuid.Nil, errors.Wrap(ctx.Err(), "scan was not saved in time")
		}
	}

	latest, err := r.repo.LatestScan(ctx, record.Username)
	if err != nil {
		return uuid.Nil, err
	}
	return latest.ID, nil
}

// Recent lists the newest scans of username
func (r *Recorder) Recent(ctx context.Context, username string, limit int) ([]*models.ScanRecord, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.ValidationError("username is required")
	}
	return r.repo.ListScans(ctx, username, limit)
}

// Summary aggregates every scan of username. Concurrent requests for the
// same username share one repository read.
func (r *Recorder) Summary(ctx context.Context, username string) (*models.ScanSummary, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.ValidationError("username is required")
	}
	v, err, _ := r.summaries.Do(key(username), func() (interface{}, error) {
		records, err := r.repo.ListScans(ctx, username, 0)
		if err != nil {
			return nil, err
		}
		return Summarize(username, records), nil
	})
	if err != nil {
		return nil, err
	}
	summary := *v.(*models.ScanSummary)
	return &summary, nil
}

// Backend names the storage in use
func (r *Recorder) Backend() string {
	return r.repo.Backend()
}

// Summarize computes verdict counts and bot confidence statistics
func Summarize(username string, records []*models.ScanRecord) *models.ScanSummary {
	summary := &models.ScanSummary{Username: username, Scans: len(records)}
	if len(records) == 0 {
		return summary
	}

	sorted := make([]*models.ScanRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ScannedAt.After(sorted[j].ScannedAt) })
	last := sorted[0].ScannedAt
	summary.LastScannedAt = &last

	confidences := make(stats.Float64Data, 0, len(sorted))
	for _, rec := range sorted {
		confidences = append(confidences, float64(rec.BotConfidence))
		if rec.Classification == models.ClassificationBot {
			summary.BotVerdicts++
		} else {
			summary.HumanVerdicts++
		}
		if rec.Feedback != nil {
			summary.FeedbackCount++
		}
	}

	if mean, err := stats.Mean(confidences); err == nil {
		summary.MeanBotConfidence, _ = stats.Round(mean, 2)
	}
	if median, err := stats.Median(confidences); err == nil {
		summary.MedianBotConfidence = median
	}
	if sd, err := stats.StandardDeviation(confidences); err == nil {
		summary.StdDevBotConfidence, _ = stats.Round(sd, 2)
	}
	return summary
}

func key(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
