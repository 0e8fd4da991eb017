package api

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"botscan/internal"
	"botscan/internal/errors"
	"botscan/models"
	"botscan/ports"

	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

const maxResponseBytes = 4 << 20

// ClientConfig configures the remote analysis service client
type ClientConfig struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, zero disables limiting
	Burst     int
	UserAgent string
}

// DefaultClientConfig matches the reference deployment
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   "http://localhost:5000/api",
		Timeout:   15 * time.Second,
		RateLimit: 5,
		Burst:     5,
		UserAgent: "botscan/1.0",
	}
}

// Client talks HTTP+JSON to the prediction, report and feedback endpoints
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *internal.Logger
}

var _ ports.AnalysisService = (*Client)(nil)

// NewClient creates a client for cfg.BaseURL
func NewClient(cfg ClientConfig, logger *internal.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultClientConfig().Timeout
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    limiter,
		logger:     logger.Named("Remote"),
	}
}

// LookupProfile calls POST /predict. The service may wrap the profile in a
// userData envelope alongside its own analysis.
func (c *Client) LookupProfile(ctx context.Context, username string) (*models.Profile, error) {
	body, err := c.post(ctx, "/predict", map[string]string{"screen_name": username})
	if err != nil {
		return nil, err
	}

	raw := gjson.GetBytes(body, "userData")
	if !raw.IsObject() {
		raw = gjson.ParseBytes(body)
	}
	var profile models.Profile
	if err := json.Unmarshal([]byte(raw.Raw), &profile); err != nil {
		return nil, errors.ExternalServiceError("predict", err)
	}
	profile.ApplyDefaults(username)
	return &profile, nil
}

// GenerateReport calls POST /generate-report and reads the report field. The
// report may arrive as an object or as JSON text.
func (c *Client) GenerateReport(ctx context.Context, profile *models.Profile) (*models.Report, error) {
	body, err := c.post(ctx, "/generate-report", map[string]interface{}{"userData": profile})
	if err != nil {
		return nil, err
	}

	raw := gjson.GetBytes(body, "report")
	if !raw.Exists() {
		raw = gjson.GetBytes(body, "analysis")
	}
	payload := raw.Raw
	switch {
	case raw.Type == gjson.String:
		payload = extractJSON(raw.Str)
	case !raw.Exists():
		payload = string(body)
	}

	var report models.Report
	if err := json.Unmarshal([]byte(payload), &report); err != nil {
		return nil, errors.ServiceError("report was not valid JSON")
	}
	report.ApplyDefaults()
	return &report, nil
}

// SubmitFeedback calls POST /feedback
func (c *Client) SubmitFeedback(ctx context.Context, record *models.FeedbackRecord) (*models.FeedbackAck, error) {
	body, err := c.post(ctx, "/feedback", map[string]interface{}{
		"username":     record.Username,
		"verdict":      record.Verdict,
		"feedback":     record.Verdict,
		"comment":      record.Comment,
		"prediction":   record.Prediction,
		"submitted_at": record.SubmittedAt,
	})
	if err != nil {
		return nil, err
	}
	return &models.FeedbackAck{Message: gjson.GetBytes(body, "message").String()}, nil
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &errors.AppError{Code: errors.CodeExternalService, Message: "rate limited", Cause: err}
		}
	}

	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return nil, errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("POST %s failed after %v: %v", path, time.Since(start), err)
		return nil, transportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &errors.AppError{Code: errors.CodeExternalService, Message: "failed to read response", Cause: err}
	}
	c.logger.Debug("POST %s -> %d in %v", path, resp.StatusCode, time.Since(start))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	message := gjson.GetBytes(body, "error").String()
	if message == "" {
		message = gjson.GetBytes(body, "message").String()
	}
	if resp.StatusCode == http.StatusNotFound {
		if message == "" {
			message = "user not found"
		}
		return nil, errors.New(errors.CodeNotFound, message)
	}
	if message == "" {
		message = fmt.Sprintf("remote service returned status %d", resp.StatusCode)
	}
	return nil, errors.ServiceError(message)
}

func transportError(err error) error {
	var timeout interface{ Timeout() bool }
	if stderrors.Is(err, context.DeadlineExceeded) || (stderrors.As(err, &timeout) && timeout.Timeout()) {
		return &errors.AppError{Code: errors.CodeExternalService, Message: "request timed out", Cause: err}
	}
	return &errors.AppError{Code: errors.CodeExternalService, Message: "remote service unavailable", Cause: err}
}

// extractJSON returns the outermost {...} of text, which is how the
// generator's free-text answers carry their payload.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return text
	}
	return text[start : end+1]
}
