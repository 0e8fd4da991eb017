package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_KeepsCode(t *testing.T) {
	err := Wrap(NotFound("session"), "lookup failed")
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.Equal(t, "lookup failed", UserMessage(err))
	assert.True(t, HasCode(err, CodeNotFound))

	plain := Wrap(stderrors.New("boom"), "context")
	assert.Equal(t, CodeInternalError, GetCode(plain))
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestStageFailures_UseServiceMessage(t *testing.T) {
	cause := ServiceError("rate limited")

	tests := []struct {
		name string
		err  *AppError
		code string
	}{
		{"lookup", LookupFailure(cause), CodeLookupFailure},
		{"report", ReportFailure(cause), CodeReportFailure},
		{"feedback", FeedbackFailure(cause), CodeFeedbackFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, "rate limited", tt.err.Message)
			assert.True(t, HasCode(tt.err, CodeExternalService))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(FeedbackFailure(stderrors.New("x"))))
	assert.True(t, IsRetryable(ServiceError("down")))
	assert.False(t, IsRetryable(ValidationError("bad")))
	assert.False(t, IsRetryable(NotReady("idle")))
}

func TestAs_FindsWrappedAppError(t *testing.T) {
	err := fmt.Errorf("outer: %w", NotReady("cannot export"))
	appErr, ok := As(err)
	assert.True(t, ok)
	assert.Equal(t, CodeNotReady, appErr.Code)
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
	assert.Equal(t, "plain", UserMessage(stderrors.New("plain")))
}
