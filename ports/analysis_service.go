package ports

import (
	"context"

	"botscan/models"
)

// AnalysisService is the remote prediction, report and feedback API
type AnalysisService interface {
	// LookupProfile fetches the account data for username.
	// Fails with a NOT_FOUND or EXTERNAL_SERVICE_ERROR AppError.
	LookupProfile(ctx context.Context, username string) (*models.Profile, error)

	// GenerateReport produces the behavior analysis for a looked up profile.
	GenerateReport(ctx context.Context, profile *models.Profile) (*models.Report, error)

	// SubmitFeedback records a user's judgment of an analysis.
	SubmitFeedback(ctx context.Context, record *models.FeedbackRecord) (*models.FeedbackAck, error)
}
