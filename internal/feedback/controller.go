package feedback

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"botscan/internal"
	"botscan/internal/clock"
	"botscan/internal/errors"
	"botscan/internal/metrics"
	"botscan/models"
	"botscan/ports"

	"github.com/go-playground/validator/v10"
)

// SuccessNotice is the banner shown after a submission is acknowledged
const SuccessNotice = "FEEDBACK RECEIVED // THANK YOU FOR YOUR INPUT"

// Draft is the feedback form's unsent content
type Draft struct {
	Username   string         `json:"username"`
	Verdict    models.Verdict `json:"verdict"`
	Comment    string         `json:"comment"`
	Prediction string         `json:"prediction,omitempty"`
	SessionID  string         `json:"-"`
}

// Clear empties the form. Username stays; it belongs to the session, not the form.
func (d *Draft) Clear() {
	d.Verdict = ""
	d.Comment = ""
	d.Prediction = ""
}

// Controller validates and sends feedback. It never reads or changes a
// session's analysis state.
type Controller struct {
	service     ports.AnalysisService
	validate    *validator.Validate
	clock       clock.Clock
	metrics     *metrics.Metrics
	logger      *internal.Logger
	onSubmitted []func(ctx context.Context, record models.FeedbackRecord)
}

// NewController creates a feedback controller over service
func NewController(service ports.AnalysisService, clk clock.Clock, m *metrics.Metrics, logger *internal.Logger) *Controller {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	v := validator.New()
	_ = v.RegisterValidation("notblank", validateNotBlank)
	return &Controller{
		service:  service,
		validate: v,
		clock:    clk,
		metrics:  m,
		logger:   logger.Named("Feedback"),
	}
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// OnSubmitted registers a hook run after every acknowledged submission
func (c *Controller) OnSubmitted(fn func(ctx context.Context, record models.FeedbackRecord)) {
	c.onSubmitted = append(c.onSubmitted, fn)
}

// Submit sends the draft. On success the draft is cleared and the ack
// returned. On failure the draft is left as it was so it can be resent.
func (c *Controller) Submit(ctx context.Context, draft *Draft) (*models.FeedbackAck, error) {
	if draft == nil {
		return nil, errors.ValidationError("feedback is required")
	}

	record := models.FeedbackRecord{
		Username:    strings.TrimSpace(draft.Username),
		Verdict:     models.Verdict(strings.ToLower(strings.TrimSpace(string(draft.Verdict)))),
		Comment:     strings.TrimSpace(draft.Comment),
		Prediction:  draft.Prediction,
		SubmittedAt: c.clock.Now().UTC(),
		SessionID:   draft.SessionID,
	}
	if err := c.Validate(&record); err != nil {
		c.metrics.Feedback("invalid")
		return nil, err
	}

	ack, err := c.service.SubmitFeedback(ctx, &record)
	if err != nil {
		c.metrics.Feedback("failed")
		c.logger.Warn("submit for %s failed: %v", record.Username, err)
		return nil, errors.FeedbackFailure(err)
	}
	if ack == nil {
		ack = &models.FeedbackAck{Message: "Feedback submitted successfully"}
	}

	draft.Clear()
	c.metrics.Feedback("ok")
	c.logger.Info("feedback %s recorded for %s", record.Verdict, record.Username)
	for _, fn := range c.onSubmitted {
		fn(ctx, record)
	}
	return ack, nil
}

// Validate checks a record against its struct tags
func (c *Controller) Validate(record *models.FeedbackRecord) error {
	err := c.validate.Struct(record)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) || len(verrs) == 0 {
		return errors.ValidationError(err.Error())
	}
	return errors.ValidationError(describe(verrs[0]))
}

func describe(fe validator.FieldError) string {
	switch fe.Field() {
	case "Username":
		if fe.Tag() == "max" {
			return fmt.Sprintf("username must be at most %s characters", fe.Param())
		}
		return "username is required"
	case "Verdict":
		return "verdict must be one of accurate, inaccurate, unsure"
	case "Comment":
		return fmt.Sprintf("comment must be at most %s characters", fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
}
