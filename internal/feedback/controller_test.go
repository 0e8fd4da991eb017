package feedback

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"botscan/internal"
	"botscan/internal/clock"
	"botscan/internal/errors"
	"botscan/internal/testkit"
	"botscan/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var submittedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newController(svc *testkit.MockService) *Controller {
	return NewController(svc, clock.NewManual(submittedAt), nil, internal.NewLoggerTo(io.Discard, internal.LogLevelDebug))
}

func TestController_SubmitSuccessClearsDraft(t *testing.T) {
	svc := &testkit.MockService{}
	svc.On("SubmitFeedback", mock.Anything, mock.MatchedBy(func(r *models.FeedbackRecord) bool {
		return r.Username == "alice" && r.Verdict == models.VerdictAccurate && r.SubmittedAt.Equal(submittedAt)
	})).Return(&models.FeedbackAck{Message: "Feedback submitted successfully"}, nil)

	c := newController(svc)
	var hooked []models.FeedbackRecord
	c.OnSubmitted(func(ctx context.Context, r models.FeedbackRecord) { hooked = append(hooked, r) })

	draft := &Draft{Username: "alice", Verdict: models.VerdictAccurate, Comment: "  looks right "}
	ack, err := c.Submit(context.Background(), draft)

	require.NoError(t, err)
	assert.Equal(t, "Feedback submitted successfully", ack.Message)
	assert.Empty(t, draft.Verdict)
	assert.Empty(t, draft.Comment)
	assert.Equal(t, "alice", draft.Username)
	require.Len(t, hooked, 1)
	assert.Equal(t, "looks right", hooked[0].Comment)
	svc.AssertExpectations(t)
}

func TestController_SubmitFailureKeepsDraft(t *testing.T) {
	svc := &testkit.MockService{}
	svc.On("SubmitFeedback", mock.Anything, mock.Anything).
		Return(nil, errors.ServiceError("database unavailable")).Once()
	svc.On("SubmitFeedback", mock.Anything, mock.Anything).
		Return(&models.FeedbackAck{Message: "ok"}, nil).Once()

	c := newController(svc)
	draft := &Draft{Username: "alice", Verdict: models.VerdictInaccurate, Comment: "it is a bot"}

	_, err := c.Submit(context.Background(), draft)
	require.Error(t, err)
	assert.Equal(t, errors.CodeFeedbackFailure, errors.GetCode(err))
	assert.True(t, errors.IsRetryable(err))
	assert.Equal(t, "database unavailable", errors.UserMessage(err))
	assert.Equal(t, Draft{Username: "alice", Verdict: models.VerdictInaccurate, Comment: "it is a bot"}, *draft)

	ack, err := c.Submit(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "ok", ack.Message)
	svc.AssertNumberOfCalls(t, "SubmitFeedback", 2)
}

func TestController_Validation(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		message string
	}{
		{name: "blank username", draft: Draft{Username: "  ", Verdict: models.VerdictUnsure}, message: "username is required"},
		{name: "missing verdict", draft: Draft{Username: "alice"}, message: "verdict must be one of accurate, inaccurate, unsure"},
		{name: "unknown verdict", draft: Draft{Username: "alice", Verdict: "maybe"}, message: "verdict must be one of accurate, inaccurate, unsure"},
		{name: "long comment", draft: Draft{Username: "alice", Verdict: models.VerdictUnsure, Comment: strings.Repeat("x", 2001)}, message: "comment must be at most 2000 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &testkit.MockService{}
			c := newController(svc)
			draft := tt.draft

			_, err := c.Submit(context.Background(), &draft)
			require.Error(t, err)
			assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
			assert.Equal(t, tt.message, errors.UserMessage(err))
			assert.Equal(t, tt.draft, draft)
			svc.AssertNotCalled(t, "SubmitFeedback", mock.Anything, mock.Anything)
		})
	}
}

func TestController_VerdictIsNormalized(t *testing.T) {
	svc := &testkit.MockService{}
	svc.On("SubmitFeedback", mock.Anything, mock.MatchedBy(func(r *models.FeedbackRecord) bool {
		return r.Verdict == models.VerdictUnsure
	})).Return(nil, nil)

	_, err := newController(svc).Submit(context.Background(), &Draft{Username: "alice", Verdict: " Unsure "})
	require.NoError(t, err)
}
