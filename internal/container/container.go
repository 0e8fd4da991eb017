package container

import (
	"context"
	"fmt"

	"botscan/adapters/api"
	"botscan/adapters/memory"
	"botscan/adapters/postgres"
	"botscan/internal"
	sse "botscan/internal/api"
	"botscan/internal/clock"
	"botscan/internal/config"
	"botscan/internal/errors"
	"botscan/internal/export"
	"botscan/internal/feedback"
	"botscan/internal/history"
	"botscan/internal/metrics"
	"botscan/internal/migration"
	"botscan/internal/session"
	"botscan/models"
	"botscan/ports"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger
	Clock  clock.Clock

	// Infrastructure
	DB       *sqlx.DB
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	// Remote analysis service
	Service ports.AnalysisService

	// Scan history
	ScanRepo ports.ScanRecordRepository
	History  *history.Recorder

	// Session components
	SSEHub   *sse.SSEHub
	Sessions *session.Manager
	Script   session.Script
	Feedback *feedback.Controller
	Exporter *export.Exporter
}

// Option overrides a default dependency, mostly for tests
type Option func(*Container)

// WithService replaces the HTTP client with svc
func WithService(svc ports.AnalysisService) Option {
	return func(c *Container) { c.Service = svc }
}

// WithClock replaces the wall clock
func WithClock(clk clock.Clock) Option {
	return func(c *Container) { c.Clock = clk }
}

// New wires every component from cfg. With an empty database URL history is
// kept in memory.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLevel(cfg.LogLevel)),
		Clock:  clock.Real{},
	}
	for _, opt := range opts {
		opt(c)
	}

	c.initMetrics()

	if err := c.initRepositories(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to initialize repositories")
	}

	if c.Service == nil {
		c.Service = api.NewClient(api.ClientConfig{
			BaseURL:   cfg.Remote.URL,
			Timeout:   cfg.Remote.Timeout,
			RateLimit: cfg.Remote.RateLimit,
			Burst:     cfg.Remote.Burst,
			UserAgent: "botscan/1.0",
		}, c.Logger)
	}

	c.initSessions()

	c.Logger.Info("container initialized (history: %s, remote: %s)", c.ScanRepo.Backend(), cfg.Remote.URL)
	return c, nil
}

func (c *Container) initMetrics() {
	c.Registry = prometheus.NewRegistry()
	c.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	c.Metrics = metrics.New(c.Registry)
}

// initRepositories opens the scan history store
func (c *Container) initRepositories(ctx context.Context) error {
	if c.Config.Database.Offline() {
		c.ScanRepo = memory.NewScanRecordRepository()
		c.Logger.Warn("DATABASE_URL not set, scan history is kept in memory")
		return nil
	}

	db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
	if err != nil {
		return errors.DatabaseError("failed to connect to database", err)
	}
	if err := migration.NewRunner().Run(ctx, db); err != nil {
		db.Close()
		return errors.Wrap(err, "database migration failed")
	}
	c.DB = db
	c.ScanRepo = postgres.NewScanRecordRepository(db)
	return nil
}

// initSessions wires the per-session orchestrators to the SSE hub and the
// history recorder.
func (c *Container) initSessions() {
	c.History = history.NewRecorder(c.ScanRepo, c.Metrics, c.Logger)
	c.SSEHub = sse.NewSSEHub(c.Logger)
	c.Script = session.DefaultScript().Scaled(c.Config.Session.NarrationScale)
	c.Exporter = export.NewExporter(c.Clock, c.Metrics)

	c.Feedback = feedback.NewController(c.Service, c.Clock, c.Metrics, c.Logger)
	c.Feedback.OnSubmitted(func(ctx context.Context, record models.FeedbackRecord) {
		err := c.History.AttachFeedback(ctx, record)
		switch {
		case err == nil:
		case errors.HasCode(err, errors.CodeNotFound):
			c.Logger.Debug("no stored scan of %s to attach feedback to", record.Username)
		default:
			c.Logger.Warn("failed to attach feedback for %s: %v", record.Username, err)
		}
	})

	publisher := session.MultiPublisher{c.SSEHub, c.History}
	c.Sessions = session.NewManager(func(id string) *session.Orchestrator {
		return session.NewOrchestrator(session.Options{
			SessionID: id,
			Service:   c.Service,
			Clock:     c.Clock,
			Script:    &c.Script,
			Publisher: publisher,
			Metrics:   c.Metrics,
			Logger:    c.Logger,
		})
	}, c.Config.Session.TTL, c.Clock, c.Metrics, c.Logger)
	c.Sessions.OnRemove(c.History.ForgetSession)
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Sessions != nil {
		c.Sessions.Close()
	}
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	if c.History != nil {
		c.History.Close()
	}

	// Close database connection
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
