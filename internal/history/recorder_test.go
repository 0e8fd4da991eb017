package history

import (
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"botscan/adapters/memory"
	"botscan/internal"
	"botscan/internal/errors"
	"botscan/internal/session"
	"botscan/internal/testkit"
	"botscan/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var scannedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func readyEvent(username string, bot int, at time.Time) session.Event {
	profile := testkit.Profile(username)
	st := session.Ready(username, 1, profile, models.Report{BotConfidence: bot, HumanConfidence: 100 - bot}, at)
	return session.Event{Type: session.EventState, Generation: 1, State: &st}
}

func sessionReady(sessionID, username string, bot int, at time.Time) session.Event {
	event := readyEvent(username, bot, at)
	event.SessionID = sessionID
	return event
}

// gatedRepo holds every save after the first until gate is closed
type gatedRepo struct {
	*memory.ScanRecordRepository
	saves atomic.Int32
	gate  chan struct{}
}

func (g *gatedRepo) SaveScan(ctx context.Context, record *models.ScanRecord) error {
	if g.saves.Add(1) > 1 {
		<-g.gate
	}
	return g.ScanRecordRepository.SaveScan(ctx, record)
}

func newRecorder() *Recorder {
	return NewRecorder(memory.NewScanRecordRepository(), nil, internal.NewLoggerTo(io.Discard, internal.LogLevelDebug))
}

func TestRecorder_PersistsReadyTransitionsOnly(t *testing.T) {
	r := newRecorder()

	scanning := session.Scanning("alice", 1, scannedAt)
	r.Publish(session.Event{Type: session.EventState, State: &scanning})
	r.Publish(session.Event{Type: session.EventLog})
	r.Publish(readyEvent("alice", 30, scannedAt))
	r.Publish(readyEvent("alice", 90, scannedAt.Add(time.Hour)))
	r.Close()

	records, err := r.Recent(context.Background(), "alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 90, records[0].BotConfidence)
	assert.Equal(t, models.ClassificationBot, records[0].Classification)
	assert.True(t, records[0].IsBot)
	assert.Equal(t, "alice", records[1].Profile.V.ScreenName)

	r.Publish(readyEvent("alice", 10, scannedAt))
	r.Close()
}

func TestRecorder_SummaryAndFeedback(t *testing.T) {
	ctx := context.Background()
	r := newRecorder()
	for i, bot := range []int{20, 40, 90} {
		r.Publish(readyEvent("alice", bot, scannedAt.Add(time.Duration(i)*time.Minute)))
	}
	r.Close()

	summary, err := r.Summary(ctx, "Alice")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Scans)
	assert.Equal(t, 1, summary.BotVerdicts)
	assert.Equal(t, 2, summary.HumanVerdicts)
	assert.Equal(t, 50.0, summary.MeanBotConfidence)
	assert.Equal(t, 40.0, summary.MedianBotConfidence)
	assert.Equal(t, 0, summary.FeedbackCount)
	require.NotNil(t, summary.LastScannedAt)
	assert.Equal(t, scannedAt.Add(2*time.Minute), *summary.LastScannedAt)

	require.NoError(t, r.AttachFeedback(ctx, models.FeedbackRecord{Username: "alice", Verdict: models.VerdictInaccurate, Comment: "nope"}))
	summary, err = r.Summary(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.FeedbackCount)

	latest, err := r.Recent(ctx, "alice", 1)
	require.NoError(t, err)
	require.NotNil(t, latest[0].Feedback)
	assert.Equal(t, models.VerdictInaccurate, *latest[0].Feedback)
}

func TestRecorder_FeedbackWaitsForSessionScan(t *testing.T) {
	ctx := context.Background()
	repo := &gatedRepo{ScanRecordRepository: memory.NewScanRecordRepository().(*memory.ScanRecordRepository), gate: make(chan struct{})}
	r := NewRecorder(repo, nil, internal.NewLoggerTo(io.Discard, internal.LogLevelDebug))
	defer r.Close()

	r.Publish(sessionReady("s1", "alice", 90, scannedAt))
	require.Eventually(t, func() bool {
		records, err := r.Recent(ctx, "alice", 10)
		return err == nil && len(records) == 1
	}, time.Second, 5*time.Millisecond)

	r.Publish(sessionReady("s1", "alice", 10, scannedAt.Add(time.Minute)))

	attached := make(chan error, 1)
	go func() {
		attached <- r.AttachFeedback(ctx, models.FeedbackRecord{SessionID: "s1", Username: "alice", Verdict: models.VerdictAccurate})
	}()
	select {
	case err := <-attached:
		t.Fatalf("feedback attached before the rated scan was saved: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(repo.gate)
	select {
	case err := <-attached:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("feedback never attached")
	}

	records, err := r.Recent(ctx, "alice", 10)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 10, records[0].BotConfidence)
	require.NotNil(t, records[0].Feedback)
	assert.Equal(t, models.VerdictAccurate, *records[0].Feedback)
	assert.Equal(t, 90, records[1].BotConfidence)
	assert.Nil(t, records[1].Feedback)
}

func TestRecorder_ResetForgetsSessionScan(t *testing.T) {
	ctx := context.Background()
	r := newRecorder()
	defer r.Close()

	r.Publish(sessionReady("s1", "alice", 90, scannedAt))
	r.Publish(session.Event{Type: session.EventReset, SessionID: "s1", Generation: 2})
	require.Eventually(t, func() bool {
		records, err := r.Recent(ctx, "alice", 10)
		return err == nil && len(records) == 1
	}, time.Second, 5*time.Millisecond)

	// with the session scan forgotten, feedback falls back to the latest stored scan
	r.Publish(readyEvent("alice", 20, scannedAt.Add(time.Minute)))
	require.Eventually(t, func() bool {
		records, err := r.Recent(ctx, "alice", 10)
		return err == nil && len(records) == 2
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, r.AttachFeedback(ctx, models.FeedbackRecord{SessionID: "s1", Username: "alice", Verdict: models.VerdictUnsure}))
	records, err := r.Recent(ctx, "alice", 10)
	require.NoError(t, err)
	require.NotNil(t, records[0].Feedback)
	assert.Equal(t, 20, records[0].BotConfidence)
	assert.Nil(t, records[1].Feedback)
}

func TestRecorder_Validation(t *testing.T) {
	r := newRecorder()
	defer r.Close()

	_, err := r.Summary(context.Background(), " ")
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
	_, err = r.Recent(context.Background(), "", 5)
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))

	err = r.AttachFeedback(context.Background(), models.FeedbackRecord{Username: "ghost", Verdict: models.VerdictUnsure})
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	assert.Equal(t, "memory", r.Backend())
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize("nobody", nil)
	assert.Equal(t, 0, s.Scans)
	assert.Nil(t, s.LastScannedAt)
}
