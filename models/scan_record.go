package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ScanRecord is the local history entry for one completed analysis
type ScanRecord struct {
	ID              uuid.UUID      `json:"id" db:"id"`
	Username        string         `json:"username" db:"username"`
	Classification  Classification `json:"classification" db:"classification"`
	IsBot           bool           `json:"is_bot" db:"is_bot"`
	BotConfidence   int            `json:"bot_confidence" db:"bot_confidence"`
	HumanConfidence int            `json:"human_confidence" db:"human_confidence"`
	Profile         JSONB[Profile] `json:"profile" db:"profile"`
	Report          JSONB[Report]  `json:"report" db:"report"`
	Feedback        *Verdict       `json:"feedback,omitempty" db:"feedback"`
	FeedbackComment *string        `json:"feedback_comment,omitempty" db:"feedback_comment"`
	ScannedAt       time.Time      `json:"scanned_at" db:"scanned_at"`
}

// NewScanRecord captures a finished analysis
func NewScanRecord(username string, profile Profile, report Report, at time.Time) *ScanRecord {
	class := report.Classification()
	return &ScanRecord{
		ID:              uuid.New(),
		Username:        username,
		Classification:  class,
		IsBot:           class == ClassificationBot,
		BotConfidence:   report.BotConfidence,
		HumanConfidence: report.HumanConfidence,
		Profile:         JSONB[Profile]{V: profile},
		Report:          JSONB[Report]{V: report},
		ScannedAt:       at,
	}
}

// ScanSummary aggregates the history of one username
type ScanSummary struct {
	Username            string     `json:"username"`
	Scans               int        `json:"scans"`
	BotVerdicts         int        `json:"bot_verdicts"`
	HumanVerdicts       int        `json:"human_verdicts"`
	MeanBotConfidence   float64    `json:"mean_bot_confidence"`
	MedianBotConfidence float64    `json:"median_bot_confidence"`
	StdDevBotConfidence float64    `json:"stddev_bot_confidence"`
	FeedbackCount       int        `json:"feedback_count"`
	LastScannedAt       *time.Time `json:"last_scanned_at,omitempty"`
}

// JSONB stores V as a PostgreSQL JSONB column
type JSONB[T any] struct {
	V T
}

// Value implements driver.Valuer interface
func (j JSONB[T]) Value() (driver.Value, error) {
	return json.Marshal(j.V)
}

// Scan implements sql.Scanner interface
func (j *JSONB[T]) Scan(value interface{}) error {
	var bytes []byte
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported JSONB source %T", value)
	}
	if len(bytes) == 0 {
		return nil
	}
	return json.Unmarshal(bytes, &j.V)
}

func (j JSONB[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(j.V)
}

func (j *JSONB[T]) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.V)
}
