package models

import "time"

// Verdict is the user's judgment of a finished analysis
type Verdict string

const (
	VerdictAccurate   Verdict = "accurate"
	VerdictInaccurate Verdict = "inaccurate"
	VerdictUnsure     Verdict = "unsure"
)

// Verdicts lists the accepted verdicts in display order
var Verdicts = []Verdict{VerdictAccurate, VerdictInaccurate, VerdictUnsure}

// Valid reports whether v is one of the enumerated verdicts
func (v Verdict) Valid() bool {
	for _, known := range Verdicts {
		if v == known {
			return true
		}
	}
	return false
}

// FeedbackRecord is what gets sent to the feedback endpoint
type FeedbackRecord struct {
	Username    string    `json:"username" validate:"notblank,max=64"`
	Verdict     Verdict   `json:"verdict" validate:"required,oneof=accurate inaccurate unsure"`
	Comment     string    `json:"comment" validate:"max=2000"`
	Prediction  string    `json:"prediction,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`

	// SessionID names the session the form was sent from, when there is one
	SessionID string `json:"-"`
}

// FeedbackAck is the service's acknowledgment of a feedback submission
type FeedbackAck struct {
	Message string `json:"message"`
}
